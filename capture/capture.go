// Package capture opens a single real-time audio input stream and
// delivers PCM frames to a registered callback.
package capture

import (
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"sysrecorder/device"
)

// State is the lifecycle stage of a Source. Sources are single-use:
// once Stopped, a new Source must be created to capture again.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const defaultBlocksize = 1024

// Callback receives one block of interleaved float32 PCM samples. It
// is invoked on malgo's real-time audio thread: it must not allocate,
// take a long-held lock, or perform I/O.
type Callback func(samples []float32)

// DeviceUnavailableError reports that the host rejected the requested
// device or stream parameters.
type DeviceUnavailableError struct {
	DeviceIndex string
	Reason      string
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("device %q unavailable: %s", e.DeviceIndex, e.Reason)
}

// Source wraps a single malgo capture device, targeting any one
// capture or loopback endpoint selected by the caller.
type Source struct {
	ctx         *malgo.AllocatedContext
	deviceIndex string
	sampleRate  int
	channels    int
	blocksize   uint32

	mu       sync.Mutex
	state    State
	callback Callback
	device   *malgo.Device
}

// New creates a Source bound to ctx (owned by the caller) targeting
// deviceIndex. An empty
// deviceIndex opens the host default capture device.
func New(ctx *malgo.AllocatedContext, deviceIndex string, sampleRate, channels int) *Source {
	return &Source{
		ctx:         ctx,
		deviceIndex: deviceIndex,
		sampleRate:  sampleRate,
		channels:    channels,
		blocksize:   defaultBlocksize,
		state:       StateIdle,
	}
}

// OnData registers the frame callback. Call it before Start so no
// frames are missed; calling it on a running stream replaces the
// callback from the next delivered block onward.
func (s *Source) OnData(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// State reports the current lifecycle stage.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the device and begins delivering frames to the
// registered callback. Returns *DeviceUnavailableError if the host
// rejects the device or parameters.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("capture source is %s, not idle", s.state)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.channels)
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.PeriodSizeInFrames = s.blocksize
	deviceConfig.Alsa.NoMMap = 1

	if s.deviceIndex != "" {
		id, err := device.ParseIndex(s.deviceIndex)
		if err != nil {
			return &DeviceUnavailableError{DeviceIndex: s.deviceIndex, Reason: err.Error()}
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	channels := int(deviceConfig.Capture.Channels)
	onRecvFrames := func(pOutput, pInput []byte, framecount uint32) {
		sampleCount := int(framecount) * channels
		if len(pInput) != sampleCount*4 {
			return
		}
		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			samples[i] = bytesToFloat32(pInput[i*4 : i*4+4])
		}
		s.mu.Lock()
		cb := s.callback
		s.mu.Unlock()
		if cb != nil {
			cb(samples)
		}
	}

	dev, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return &DeviceUnavailableError{DeviceIndex: s.deviceIndex, Reason: err.Error()}
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return &DeviceUnavailableError{DeviceIndex: s.deviceIndex, Reason: err.Error()}
	}

	s.device = dev
	s.state = StateRunning
	return nil
}

// Stop halts capture and releases the device. Idempotent: calling it
// on an already-stopped or never-started Source is a no-op.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.state = StateStopped
		return nil
	}

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	s.state = StateStopped
	return nil
}

func bytesToFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
