package recorder

import (
	"time"
)

// monitorLoop watches the instantaneous last-sound time and, after a
// configured silence timeout, asks the supervisor to probe for a
// better device. Independent of the chunker's own per-chunk trigger
// in maybeRequestSwitch; both funnel through the supervisor's rate
// limit.
func (r *Recorder) monitorLoop() {
	ticker := time.NewTicker(monitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			close(r.monitorDone)
			return
		case <-ticker.C:
			r.checkSilenceTimeout()
		}
	}
}

func (r *Recorder) checkSilenceTimeout() {
	if r.supervisor == nil || !r.cfg.Device.AutoSwitch {
		return
	}

	timeout := time.Duration(r.cfg.Device.SilenceTimeoutForSwitch * float64(time.Second))
	lastSound := time.Unix(0, r.lastSoundTime.Load())
	if time.Since(lastSound) <= timeout {
		return
	}

	r.mu.Lock()
	recording := r.isRecording
	current := r.deviceIndex
	r.mu.Unlock()
	if !recording {
		return
	}

	r.supervisor.MaybeProbe(current, r)

	// Push last-sound-time forward by half the timeout so repeated
	// ticks don't re-trigger a probe every second while one is still
	// in flight; the supervisor's own rate limit is the real guard,
	// this just keeps this loop from hammering it.
	r.lastSoundTime.Store(lastSound.Add(timeout / 2).UnixNano())
}
