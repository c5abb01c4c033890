package classify

import (
	"log"
	"math"
	"sync"
)

var (
	loggedDegradeOnce sync.Once
)

// Classifier runs chunk classification with a selectable VAD backend.
// Each Classify call builds a fresh VAD session and ring hysteresis,
// so no state carries over from one chunk to the next.
type Classifier struct {
	engine FrameVADEngine
}

// New returns a Classifier that prefers the given engine for frame
// voicing decisions and degrades to the energy backend if engine is
// nil or fails to construct a session.
func New(engine FrameVADEngine) *Classifier {
	return &Classifier{engine: engine}
}

// Default returns a Classifier wired to the documented-but-unavailable
// Silero backend, so it always degrades to the energy backend. This
// is the zero-configuration entry point used by the recorder.
func Default() *Classifier {
	return New(sileroEngine{})
}

// Classify computes the RMS and voiced-fraction verdict for one chunk
// of mono float32 PCM samples at sampleRate.
func (c *Classifier) Classify(samples []float32, sampleRate int, cfg Config) Verdict {
	rms := computeRMS(samples)
	speechRatio, vadRan := c.speechRatio(samples, sampleRate, cfg.SilenceThreshold)

	// The speech-ratio gate only participates when the VAD stage
	// actually produced a measurement. When it degrades (unsupported
	// sample rate, unframable input, backend failure) speechRatio is
	// forced to 0 and RMS alone governs silence.
	isSilent := rms < cfg.SilenceThreshold
	if vadRan {
		isSilent = isSilent || speechRatio < 0.05
	}
	return Verdict{
		RMS:         rms,
		SpeechRatio: speechRatio,
		IsSilent:    isSilent,
	}
}

func computeRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// speechRatio returns the voiced fraction of samples, by sample count,
// and whether the VAD stage actually produced a measurement. If
// sampleRate is unsupported, the input can't be framed, or the VAD
// backend fails mid-stream, it returns (0, false) so the caller knows
// to let the RMS gate alone govern silence.
func (c *Classifier) speechRatio(samples []float32, sampleRate int, silenceThreshold float64) (float64, bool) {
	if !supportedSampleRate(sampleRate) || len(samples) == 0 {
		return 0, false
	}

	session, err := c.newSession(sampleRate, silenceThreshold)
	if err != nil {
		return 0, false
	}

	frameSamples := sampleRate * frameMs / 1000
	if frameSamples <= 0 {
		return 0, false
	}

	hyst := newRingHysteresis(session, frameMs)

	voicedSamples := 0
	evaluatedSamples := 0
	for start := 0; start+frameSamples <= len(samples); start += frameSamples {
		frame := toInt16(samples[start : start+frameSamples])
		voiced, err := hyst.process(frame)
		if err != nil {
			return 0, false
		}
		evaluatedSamples += frameSamples
		if voiced {
			voicedSamples += frameSamples
		}
	}

	if evaluatedSamples == 0 {
		return 0, false
	}
	return float64(voicedSamples) / float64(evaluatedSamples), true
}

func (c *Classifier) newSession(sampleRate int, silenceThreshold float64) (FrameVAD, error) {
	if c.engine != nil {
		if session, err := c.engine.NewSession(sampleRate); err == nil {
			return session, nil
		} else {
			loggedDegradeOnce.Do(func() {
				log.Printf("classify: VAD backend unavailable (%v), using energy fallback", err)
			})
		}
	}
	return newEnergyEngine(silenceThreshold).NewSession(sampleRate)
}

func toInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		clamped := s
		if clamped > 1 {
			clamped = 1
		} else if clamped < -1 {
			clamped = -1
		}
		out[i] = int16(clamped * 32767)
	}
	return out
}
