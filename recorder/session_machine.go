package recorder

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"sysrecorder/store"
)

// sessionOutcome reports what the session state machine decided for
// one chunk, so the caller can fire lifecycle callbacks in the
// guaranteed order.
type sessionOutcome struct {
	chunkDiscarded bool
	created        *store.Session
	completed      *store.Session
}

// nSilence is how many consecutive silent chunks close a session:
// floor(silence gap / chunk duration). A gap shorter than one chunk
// yields 0, so any silent chunk in an active session immediately
// completes it.
func (r *Recorder) nSilence() int {
	chunkDur := r.cfg.Recording.ChunkDurationSeconds
	if chunkDur <= 0 {
		return 0
	}
	return int(math.Floor(r.cfg.Session.SilenceGapSeconds / chunkDur))
}

// handleSession advances the session state machine by one chunk. It
// mutates r.currentSession/r.consecutiveSilence under
// r.mu, but all store I/O and callback firing happens with the lock
// released.
func (r *Recorder) handleSession(chunk store.Chunk) sessionOutcome {
	r.mu.Lock()

	if chunk.IsSilent {
		r.consecutiveSilence++
	} else {
		r.consecutiveSilence = 0
	}

	if r.currentSession == nil {
		if chunk.IsSilent {
			r.mu.Unlock()
			return sessionOutcome{}
		}

		session := &store.Session{
			SessionID:           store.NewSessionID(chunk.Timestamp),
			StartTime:           chunk.Timestamp,
			Status:              store.StatusRecording,
			TranscriptionStatus: store.TranscriptionPending,
			Chunks:              []store.Chunk{chunk},
		}

		if chunk.SpeechRatio < 0.05 {
			// Transient-opener guard: the session that a
			// single loud-but-unvoiced chunk would have opened is
			// discarded before it is ever persisted, so the catalog
			// never sees it; only the chunk file needs cleanup.
			r.currentSession = nil
			r.consecutiveSilence = 0
			r.mu.Unlock()
			r.removeChunkFile(chunk)
			return sessionOutcome{chunkDiscarded: true}
		}

		r.currentSession = session
		createdCopy := cloneSession(session)
		r.mu.Unlock()

		r.saveSession(createdCopy)
		return sessionOutcome{created: createdCopy}
	}

	r.currentSession.Chunks = append(r.currentSession.Chunks, chunk)
	silent := r.consecutiveSilence
	threshold := r.nSilence()

	if silent >= threshold {
		completedCopy := cloneSession(r.currentSession)
		r.currentSession = nil
		r.consecutiveSilence = 0
		r.mu.Unlock()

		return r.finalizeSession(completedCopy)
	}

	toSaveCopy := cloneSession(r.currentSession)
	r.mu.Unlock()
	r.saveSession(toSaveCopy)
	return sessionOutcome{}
}

// finalizeSession applies the completion rule: a session shorter than
// the minimum duration is deleted from the catalog without firing
// OnSessionCompleted; otherwise it is marked completed, its end time
// set from the last chunk, saved, and reported so the caller fires
// OnSessionCompleted.
func (r *Recorder) finalizeSession(s *store.Session) sessionOutcome {
	if s.DurationSeconds() < r.cfg.Session.MinSessionDuration {
		r.deleteSession(s.SessionID)
		return sessionOutcome{}
	}

	last := s.Chunks[len(s.Chunks)-1]
	endTime := last.Timestamp.Add(time.Duration(last.DurationSeconds * float64(time.Second)))
	s.EndTime = &endTime
	s.Status = store.StatusCompleted
	if s.Title == "" {
		s.Title = generateSessionTitle(s.StartTime, s.DurationSeconds())
	}
	r.saveSession(s)
	return sessionOutcome{completed: s}
}

// generateSessionTitle builds the default human-readable title assigned
// to a session on completion, for catalogs with no external titler
// configured.
func generateSessionTitle(start time.Time, durationSeconds float64) string {
	weekday := start.Format("Monday")
	clock := start.Format("15:04")
	minutes := int(durationSeconds / 60)
	if minutes > 0 {
		return fmt.Sprintf("%s %s recording (%d min)", weekday, clock, minutes)
	}
	return fmt.Sprintf("%s %s recording", weekday, clock)
}

// completeSessionLocked is used by Stop to close out an in-flight
// session with no further chunks arriving; r.mu must be held by the
// caller and is released here.
func (r *Recorder) completeSessionLocked() {
	s := r.currentSession
	r.currentSession = nil
	r.consecutiveSilence = 0
	r.mu.Unlock()

	outcome := r.finalizeSession(cloneSession(s))
	if outcome.completed != nil {
		r.fireSessionCompleted(outcome.completed)
	}

	r.mu.Lock()
}

func cloneSession(s *store.Session) *store.Session {
	cp := *s
	cp.Chunks = append([]store.Chunk(nil), s.Chunks...)
	cp.Tags = append([]string(nil), s.Tags...)
	return &cp
}

func (r *Recorder) deleteSession(sessionID string) {
	if err := r.store.Delete(context.Background(), sessionID, false); err != nil {
		log.Printf("recorder: failed to discard short session %s: %v", sessionID, err)
	}
}

func (r *Recorder) removeChunkFile(chunk store.Chunk) {
	path := filepath.Join(r.cfg.Storage.DataDir, chunk.FilePath)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("recorder: failed to remove transient-opener chunk file %s: %v", path, err)
	}
}
