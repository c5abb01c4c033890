// Package supervisor, when the recorder reports prolonged silence,
// probes alternate devices and, on a better match, hot-swaps the
// recorder's active capture source.
package supervisor

import (
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"sysrecorder/device"
	"sysrecorder/probe"
)

// scanRateLimit bounds how often MaybeProbe actually runs a scan.
const scanRateLimit = 5 * time.Second

// probeDuration is how long each candidate device is sampled during a
// scan.
const probeDuration = 500 * time.Millisecond

// thresholdMultiplier biases the scan threshold above the one used for
// initial auto-selection, so a hot-swap only happens for a clearly
// better source, not a marginal one.
const thresholdMultiplier = 1.5

// Swapper is the capability the supervisor needs from the recorder: an
// atomic stop-old/start-new device switch. Satisfied by
// *recorder.Recorder without either package importing the other.
type Swapper interface {
	SwitchDevice(index string) bool
}

// activityReporter is optionally implemented by a Swapper to expose the
// incumbent device's recent signal level; a candidate must beat it for
// a swap to be worthwhile.
type activityReporter interface {
	InstantRMS() float64
}

// deviceLister is the capability the supervisor needs for scanning.
// Satisfied by *device.Registry; narrowed to an interface so a scan
// can be exercised against a fixed device list in tests.
type deviceLister interface {
	ListDevices() []device.AudioDevice
}

// Supervisor probes peer devices and requests a hot-swap through a
// Swapper when one clearly outperforms the current source.
type Supervisor struct {
	registry   deviceLister
	ctx        *malgo.AllocatedContext
	sampleRate int
	threshold  float64

	mu       sync.Mutex
	lastScan time.Time
	scanning bool

	probeFn func(ctx *malgo.AllocatedContext, dev device.AudioDevice, sampleRate int, duration time.Duration, threshold float64) probe.Result
}

// New constructs a Supervisor. sampleRate and threshold mirror the
// recorder's recording configuration so probes are judged by the same
// silence_threshold.
func New(registry *device.Registry, ctx *malgo.AllocatedContext, sampleRate int, threshold float64) *Supervisor {
	return &Supervisor{
		registry:   registry,
		ctx:        ctx,
		sampleRate: sampleRate,
		threshold:  threshold,
		probeFn:    probe.Run,
	}
}

// MaybeProbe requests an asynchronous scan for a better device than
// currentIndex, subject to the 5s rate limit. Runs on its own
// goroutine so it never stalls the caller (chunker or monitor
// thread). A probe outliving the recorder's interest in it is
// harmless: Swapper.SwitchDevice is itself idempotent against a
// no-longer-recording recorder, and a scan result is dropped when the
// swapper reports (via CurrentDeviceIndex) that the device has already
// changed from currentIndex.
func (s *Supervisor) MaybeProbe(currentIndex string, swapper Swapper) {
	s.mu.Lock()
	if s.scanning || time.Since(s.lastScan) < scanRateLimit {
		s.mu.Unlock()
		return
	}
	s.scanning = true
	s.lastScan = time.Now()
	s.mu.Unlock()

	go s.scan(currentIndex, swapper)
}

func (s *Supervisor) scan(currentIndex string, swapper Swapper) {
	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	devices := s.registry.ListDevices()

	var best *device.AudioDevice
	var bestRMS float64
	for i := range devices {
		d := devices[i]
		if d.Index == currentIndex {
			continue
		}
		if !d.CanCapture() {
			continue
		}
		if device.LooksLikeMicrophone(d.Name) {
			continue
		}

		result := s.probeFn(s.ctx, d, s.sampleRate, probeDuration, s.threshold*thresholdMultiplier)
		if result.Err != nil {
			log.Printf("supervisor: probe of %q failed: %v", d.Name, result.Err)
			continue
		}
		if result.HasSignal && result.RMS > bestRMS {
			found := d
			best = &found
			bestRMS = result.RMS
		}
	}

	if best == nil {
		return
	}
	if ar, ok := swapper.(activityReporter); ok && bestRMS <= ar.InstantRMS() {
		return
	}
	if cr, ok := swapper.(interface{ CurrentDeviceIndex() string }); ok && cr.CurrentDeviceIndex() != currentIndex {
		return
	}

	log.Printf("supervisor: candidate device %q rms=%.4f beats incumbent, requesting switch", best.Name, bestRMS)
	swapper.SwitchDevice(best.Index)
}
