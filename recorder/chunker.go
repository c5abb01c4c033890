package recorder

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"sysrecorder/classify"
	"sysrecorder/store"
	"sysrecorder/wav"
)

// chunkerLoop drains the frame queue on a short fixed tick and, once
// the accumulator reaches a full chunk's worth of samples, splits off
// exactly one chunk at a time, carrying any remainder across ticks.
func (r *Recorder) chunkerLoop() {
	ticker := time.NewTicker(chunkerTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			close(r.chunkerDone)
			return
		case <-ticker.C:
			r.drainFrameQueue()
			r.emitReadyChunks()
		}
	}
}

func (r *Recorder) drainFrameQueue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		select {
		case samples := <-r.frameQueue:
			r.accumulator = append(r.accumulator, samples...)
		default:
			return
		}
	}
}

func (r *Recorder) chunkSampleCount() int {
	n := int(r.cfg.Recording.ChunkDurationSeconds*float64(r.cfg.Recording.SampleRate)) * r.cfg.Recording.Channels
	if n < 1 {
		n = 1
	}
	return n
}

// emitReadyChunks splits off every whole chunk currently available in
// the accumulator and processes each in turn.
func (r *Recorder) emitReadyChunks() {
	chunkSamples := r.chunkSampleCount()
	for {
		r.mu.Lock()
		if len(r.accumulator) < chunkSamples {
			r.mu.Unlock()
			return
		}

		slab := make([]float32, chunkSamples)
		copy(slab, r.accumulator[:chunkSamples])

		remainder := make([]float32, len(r.accumulator)-chunkSamples)
		copy(remainder, r.accumulator[chunkSamples:])
		r.accumulator = remainder

		index := r.chunkIndex + 1
		r.mu.Unlock()

		r.processChunk(slab, index, time.Now())
	}
}

// flushPartialLocked, called with r.mu held during Stop, writes any
// remaining partial buffer of at least 1s as a final chunk. Must be
// called with the chunker thread already joined so accumulator/
// chunkIndex are not concurrently mutated.
func (r *Recorder) flushPartialLocked() {
	// Frames the callback enqueued after the chunker's last tick are
	// still part of the recording.
drain:
	for {
		select {
		case samples := <-r.frameQueue:
			r.accumulator = append(r.accumulator, samples...)
		default:
			break drain
		}
	}

	minSamples := r.cfg.Recording.SampleRate * r.cfg.Recording.Channels
	if len(r.accumulator) < minSamples {
		return
	}

	slab := r.accumulator
	r.accumulator = nil
	index := r.chunkIndex + 1

	r.mu.Unlock()
	r.processChunk(slab, index, time.Now())
	r.mu.Lock()
}

// processChunk classifies and writes one chunk's samples, then
// updates the session state machine. The chunk's own OnChunkSaved
// fires before any session-lifecycle callback triggered by that same
// chunk, and OnSessionCreated for a session always fires strictly
// before OnChunkSaved for any later chunk (both hold because the
// session-machine step only reports its outcome, and all callbacks for
// this chunk are fired here afterwards, chunk first, before the next
// chunk is processed).
func (r *Recorder) processChunk(samples []float32, index int, now time.Time) {
	cfg := classify.Config{
		SampleRate:       r.cfg.Recording.SampleRate,
		SilenceThreshold: r.cfg.Recording.SilenceThreshold,
	}
	verdict := r.classifyFn(samples, r.cfg.Recording.SampleRate, cfg)

	durationSeconds := float64(len(samples)) / float64(r.cfg.Recording.Channels) / float64(r.cfg.Recording.SampleRate)

	path, err := wav.WriteChunk(r.cfg.Storage.DataDir, now, index, samples, r.cfg.Recording.SampleRate, r.cfg.Recording.Channels)
	if err != nil {
		log.Printf("recorder: chunk %d write failed, dropping: %v", index, err)
		return
	}
	relPath, err := filepath.Rel(r.cfg.Storage.DataDir, path)
	if err != nil {
		relPath = path
	}

	chunk := store.Chunk{
		FilePath:        relPath,
		Timestamp:       now,
		DurationSeconds: durationSeconds,
		Index:           index,
		RMSLevel:        verdict.RMS,
		IsSilent:        verdict.IsSilent,
		SpeechRatio:     verdict.SpeechRatio,
	}

	r.mu.Lock()
	r.chunkIndex = index
	lastChunkTime := chunk.Timestamp
	r.lastChunkTime = &lastChunkTime
	if !chunk.IsSilent {
		r.totalDuration += chunk.DurationSeconds
	}
	r.mu.Unlock()

	outcome := r.handleSession(chunk)

	if !outcome.chunkDiscarded {
		r.fireChunkSaved(chunk)
	}
	if outcome.created != nil {
		r.fireSessionCreated(outcome.created)
	}
	if outcome.completed != nil {
		r.fireSessionCompleted(outcome.completed)
	}

	r.maybeRequestSwitch(chunk)
}

// maybeRequestSwitch implements the per-chunk hot-swap trigger:
// independent of the session-completion check, a sustained run of
// silent chunks while auto_switch is enabled asks the supervisor to
// probe for a better device.
func (r *Recorder) maybeRequestSwitch(chunk store.Chunk) {
	if r.supervisor == nil || !r.cfg.Device.AutoSwitch || !chunk.IsSilent {
		return
	}

	switchChunks := int(r.cfg.Device.SilenceTimeoutForSwitch / r.cfg.Recording.ChunkDurationSeconds)
	r.mu.Lock()
	silent := r.consecutiveSilence
	current := r.deviceIndex
	r.mu.Unlock()

	if silent >= switchChunks {
		r.supervisor.MaybeProbe(current, r)
	}
}

func (r *Recorder) fireChunkSaved(chunk store.Chunk) {
	r.callbacksMu.Lock()
	handlers := append([]func(store.Chunk){}, r.onChunkSaved...)
	r.callbacksMu.Unlock()
	for _, h := range handlers {
		invokeSafely(func() { h(chunk) })
	}
}

func (r *Recorder) fireSessionCreated(s *store.Session) {
	r.callbacksMu.Lock()
	handlers := append([]func(*store.Session){}, r.onSessionCreated...)
	r.callbacksMu.Unlock()
	for _, h := range handlers {
		invokeSafely(func() { h(s) })
	}
}

func (r *Recorder) fireSessionCompleted(s *store.Session) {
	r.callbacksMu.Lock()
	handlers := append([]func(*store.Session){}, r.onSessionCompleted...)
	r.callbacksMu.Unlock()
	for _, h := range handlers {
		invokeSafely(func() { h(s) })
	}
}

// saveSession persists s through the recorder's store with a
// background context: catalog writes never gate the real-time path.
func (r *Recorder) saveSession(s *store.Session) {
	if err := r.store.Save(context.Background(), s); err != nil {
		log.Printf("recorder: failed to persist session %s (state remains authoritative in memory): %v", s.SessionID, err)
	}
}
