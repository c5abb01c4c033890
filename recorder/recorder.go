// Package recorder implements the chunked audio recorder: it owns the
// capture device, drains incoming frames into fixed-duration chunks,
// classifies and persists them, and drives the session segmentation
// state machine.
package recorder

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"sysrecorder/capture"
	"sysrecorder/classify"
	"sysrecorder/config"
	"sysrecorder/device"
	"sysrecorder/probe"
	"sysrecorder/store"
	"sysrecorder/supervisor"
)

// frameQueueCapacity bounds the callback-to-chunker handoff. The
// real-time callback never blocks: once the queue is full, further
// frames are dropped rather than grown unbounded.
const frameQueueCapacity = 256

// chunkerTick is the chunker thread's wake interval, capped at 100ms.
const chunkerTick = 100 * time.Millisecond

// monitorTick is the monitor thread's wake interval, fixed at 1s.
const monitorTick = 1 * time.Second

// autoSelectProbeDuration is how long each candidate device is probed
// during auto-selection at Start(). Not a configurable field; chosen
// short enough that probing a handful of devices at
// startup is not perceptible.
const autoSelectProbeDuration = 500 * time.Millisecond

// Status is a snapshot of the recorder's current activity.
type Status struct {
	IsRecording          bool
	CurrentSessionID     string
	ChunkCount           int
	TotalDurationSeconds float64
	LastChunkTime        *time.Time
}

// Recorder is the chunked-recorder orchestrator. It owns a single
// capture.Source at a time, classifies and persists chunks, and drives
// session segmentation and device hot-swap.
type Recorder struct {
	cfg        *config.Config
	registry   *device.Registry
	ctx        *malgo.AllocatedContext
	store      store.Store
	classifier *classify.Classifier
	supervisor *supervisor.Supervisor

	mu                 sync.Mutex
	source             *capture.Source
	deviceIndex        string
	deviceName         string
	isRecording        bool
	chunkIndex         int
	accumulator        []float32
	currentSession     *store.Session
	consecutiveSilence int
	lastChunkTime      *time.Time
	totalDuration      float64

	stopCh      chan struct{}
	chunkerDone chan struct{}
	monitorDone chan struct{}
	frameQueue  chan []float32

	currentInstantRMS atomic.Uint64 // math.Float64bits
	lastSoundTime     atomic.Int64  // UnixNano

	callbacksMu        sync.Mutex
	onChunkSaved       []func(store.Chunk)
	onSessionCreated   []func(*store.Session)
	onSessionCompleted []func(*store.Session)
	onDeviceChanged    []func(index, name string)

	probeFn    func(d device.AudioDevice, duration time.Duration, threshold float64) probe.Result
	classifyFn func(samples []float32, sampleRate int, cfg classify.Config) classify.Verdict
}

// New constructs a Recorder. ctx is the malgo context used for opening
// capture streams and probes. sup may be nil,
// which disables device hot-swap even if cfg.Device.AutoSwitch is set.
func New(cfg *config.Config, registry *device.Registry, ctx *malgo.AllocatedContext, st store.Store, classifier *classify.Classifier, sup *supervisor.Supervisor) *Recorder {
	r := &Recorder{
		cfg:        cfg,
		registry:   registry,
		ctx:        ctx,
		store:      st,
		classifier: classifier,
		supervisor: sup,
		frameQueue: make(chan []float32, frameQueueCapacity),
	}
	r.probeFn = func(d device.AudioDevice, duration time.Duration, threshold float64) probe.Result {
		return probe.Run(r.ctx, d, r.cfg.Recording.SampleRate, duration, threshold)
	}
	r.classifyFn = classifier.Classify
	return r
}

// OnChunkSaved subscribes fn to fire, on the chunker thread, after
// every chunk is classified, written and accounted for. It does not
// fire for a chunk discarded as a transient session opener.
func (r *Recorder) OnChunkSaved(fn func(store.Chunk)) {
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	r.onChunkSaved = append(r.onChunkSaved, fn)
}

// OnSessionCreated subscribes fn to fire when a new session begins.
func (r *Recorder) OnSessionCreated(fn func(*store.Session)) {
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	r.onSessionCreated = append(r.onSessionCreated, fn)
}

// OnSessionCompleted subscribes fn to fire when a session is
// persisted as completed (never for a session discarded for brevity).
func (r *Recorder) OnSessionCompleted(fn func(*store.Session)) {
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	r.onSessionCompleted = append(r.onSessionCompleted, fn)
}

// OnDeviceChanged subscribes fn to fire after a successful hot-swap.
func (r *Recorder) OnDeviceChanged(fn func(index, name string)) {
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	r.onDeviceChanged = append(r.onDeviceChanged, fn)
}

// Start resolves the capture device, opens it and spawns
// the chunker and monitor threads. Returns false if the device could
// not be opened.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	if r.isRecording {
		r.mu.Unlock()
		return true
	}

	index, name := r.resolveDevice()
	src := capture.New(r.ctx, index, r.cfg.Recording.SampleRate, r.cfg.Recording.Channels)
	src.OnData(r.onFrames)
	if err := src.Start(); err != nil {
		log.Printf("recorder: failed to start capture on %q: %v", name, err)
		r.mu.Unlock()
		return false
	}

	r.source = src
	r.deviceIndex = index
	r.deviceName = name
	r.isRecording = true
	r.chunkIndex = 0
	r.accumulator = nil
	r.currentSession = nil
	r.consecutiveSilence = 0
	r.stopCh = make(chan struct{})
	r.chunkerDone = make(chan struct{})
	r.monitorDone = make(chan struct{})
	r.mu.Unlock()

	r.lastSoundTime.Store(time.Now().UnixNano())

	go r.chunkerLoop()
	go r.monitorLoop()

	log.Printf("recorder: started on device %q (index=%q)", name, index)
	return true
}

// Stop signals both worker threads, waits for the chunker to drain
// (bounded at 5s) and the monitor to stop (bounded at 2s), flushes any
// partial accumulator of at least 1s as a final chunk, completes the
// in-flight session, and closes the capture source. Safe to call when
// not recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.isRecording {
		r.mu.Unlock()
		return
	}
	r.isRecording = false
	stopCh := r.stopCh
	chunkerDone := r.chunkerDone
	monitorDone := r.monitorDone
	src := r.source
	r.mu.Unlock()

	close(stopCh)
	waitBounded(chunkerDone, 5*time.Second)
	waitBounded(monitorDone, 2*time.Second)

	r.mu.Lock()
	r.flushPartialLocked()
	if r.currentSession != nil {
		r.completeSessionLocked()
	}
	r.mu.Unlock()

	if src != nil {
		src.Stop()
	}
	log.Printf("recorder: stopped")
}

func waitBounded(done chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// SwitchDevice atomically stops the current source and opens a new one
// on index with the same stream parameters, resetting the
// consecutive-silence counter and firing OnDeviceChanged. Implements
// the supervisor.Swapper interface consumed by the device supervisor.
func (r *Recorder) SwitchDevice(index string) bool {
	r.mu.Lock()
	if !r.isRecording {
		r.mu.Unlock()
		return false
	}
	oldSource := r.source
	r.mu.Unlock()

	name := r.deviceNameFor(index)

	newSource := capture.New(r.ctx, index, r.cfg.Recording.SampleRate, r.cfg.Recording.Channels)
	newSource.OnData(r.onFrames)
	if err := newSource.Start(); err != nil {
		log.Printf("recorder: device switch failed to open %q: %v", name, err)
		return false
	}

	if oldSource != nil {
		oldSource.Stop()
	}

	r.mu.Lock()
	r.source = newSource
	r.deviceIndex = index
	r.deviceName = name
	r.consecutiveSilence = 0
	r.mu.Unlock()

	r.lastSoundTime.Store(time.Now().UnixNano())

	r.callbacksMu.Lock()
	handlers := append([]func(string, string){}, r.onDeviceChanged...)
	r.callbacksMu.Unlock()
	for _, h := range handlers {
		invokeSafely(func() { h(index, name) })
	}

	log.Printf("recorder: switched device to %q (index=%q)", name, index)
	return true
}

func (r *Recorder) deviceNameFor(index string) string {
	if d := r.registry.GetByIndex(index); d != nil {
		return d.Name
	}
	return index
}

// CurrentDeviceIndex reports the index currently in use, satisfying
// the supervisor's need to know when its scan result has gone stale.
func (r *Recorder) CurrentDeviceIndex() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceIndex
}

// InstantRMS reports the most recent frame RMS published by the
// capture callback, as a measure of the current device's activity.
func (r *Recorder) InstantRMS() float64 {
	return math.Float64frombits(r.currentInstantRMS.Load())
}

// IsRecording reports whether the recorder is currently active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRecording
}

// Status reports the current activity snapshot.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessionID string
	if r.currentSession != nil {
		sessionID = r.currentSession.SessionID
	}
	return Status{
		IsRecording:          r.isRecording,
		CurrentSessionID:     sessionID,
		ChunkCount:           r.chunkIndex,
		TotalDurationSeconds: r.totalDuration,
		LastChunkTime:        r.lastChunkTime,
	}
}

// onFrames is the real-time capture callback: it updates the atomic
// instant-RMS and last-sound-time scalars and enqueues the frame for
// the chunker. It never allocates beyond the slice it was given and
// never blocks — a full queue silently drops the frame.
func (r *Recorder) onFrames(samples []float32) {
	rms := instantRMS(samples)
	r.currentInstantRMS.Store(math.Float64bits(rms))
	if rms >= r.cfg.Recording.SilenceThreshold {
		r.lastSoundTime.Store(time.Now().UnixNano())
	}

	select {
	case r.frameQueue <- samples:
	default:
	}
}

func instantRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

func invokeSafely(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("recorder: lifecycle callback panicked: %v", rec)
		}
	}()
	fn()
}
