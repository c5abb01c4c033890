package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// frameMs is the fixed VAD analysis window. Matches the 30ms frame
// size the voice-activity stage is defined over.
const frameMs = 30

// paddingMs sizes the hysteresis ring buffer used to open and close
// voiced segments. 300ms (10 frames at 30ms each) is the ring length
// commonly used by frame-level VADs of this shape to avoid flapping
// on single noisy frames.
const paddingMs = 300

// FrameVAD classifies individual 16-bit PCM frames as voiced or not.
// A session holds its own per-chunk state so independent chunks never
// interfere.
type FrameVAD interface {
	// ProcessFrame reports whether frame contains voiced audio. frame
	// holds exactly one 30ms window of mono int16 PCM at the session's
	// configured sample rate.
	ProcessFrame(frame []int16) (voiced bool, err error)
	// Reset clears hysteresis/energy-average state between chunks.
	Reset()
}

// FrameVADEngine is the factory for a FrameVAD backend.
type FrameVADEngine interface {
	NewSession(sampleRate int) (FrameVAD, error)
}

// maxSpectralFlatness is the voicing cutoff on the geometric/arithmetic
// power-spectrum mean ratio. Broadband noise measures near 0.56, voiced
// speech and tonal content well under 0.1, so 0.35 separates the two
// with margin on both sides.
const maxSpectralFlatness = 0.35

// energyEngine is the always-available fallback backend: a frame is
// voiced when its RMS clears the silence floor with margin AND its
// spectrum is peaked rather than flat. The spectral gate rejects loud
// broadband noise (fans, room tone) that an energy check alone would
// call voiced.
type energyEngine struct {
	threshold float64
}

func newEnergyEngine(silenceThreshold float64) *energyEngine {
	return &energyEngine{threshold: silenceThreshold}
}

func (e *energyEngine) NewSession(sampleRate int) (FrameVAD, error) {
	frameLen := sampleRate * frameMs / 1000
	if frameLen < 2 {
		return nil, fmt.Errorf("sample rate %d yields unusable %dms frames", sampleRate, frameMs)
	}
	return &energySession{
		threshold: e.threshold,
		fft:       fourier.NewFFT(frameLen),
		window:    hannWindow(frameLen),
		buf:       make([]float64, frameLen),
	}, nil
}

type energySession struct {
	threshold float64
	fft       *fourier.FFT
	window    []float64
	buf       []float64
}

func (s *energySession) ProcessFrame(frame []int16) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}
	var sumSquares float64
	for _, sample := range frame {
		v := float64(sample) / 32768.0
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(frame)))
	// Bias toward silence: require meaningfully above the configured
	// silence floor, not merely nonzero, before examining the spectrum.
	if rms < s.threshold*1.5 {
		return false, nil
	}

	if len(frame) != len(s.buf) {
		return false, fmt.Errorf("frame length %d does not match session frame size %d", len(frame), len(s.buf))
	}
	for i, sample := range frame {
		s.buf[i] = float64(sample) / 32768.0 * s.window[i]
	}
	coeffs := s.fft.Coefficients(nil, s.buf)
	return spectralFlatness(coeffs) < maxSpectralFlatness, nil
}

func (s *energySession) Reset() {}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// spectralFlatness is the ratio of the geometric to the arithmetic mean
// of the power spectrum: 1 for a perfectly flat spectrum, near 0.56 for
// a frame of random broadband noise, near 0 for peaked (tonal or
// voiced) spectra.
func spectralFlatness(coeffs []complex128) float64 {
	const eps = 1e-12
	var logSum, sum float64
	for _, c := range coeffs {
		p := real(c)*real(c) + imag(c)*imag(c) + eps
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(coeffs))
	return math.Exp(logSum/n) / (sum / n)
}

// sileroEngine documents where a neural VAD backend would plug in.
// It always fails to construct a session so callers fall back to the
// energy backend.
type sileroEngine struct{}

func (sileroEngine) NewSession(sampleRate int) (FrameVAD, error) {
	return nil, fmt.Errorf("silero VAD backend not configured")
}

// ringHysteresis wraps a FrameVAD with segment open/close hysteresis:
// a voiced segment opens once more than 90% of the ring is voiced, and
// closes once more than 90% is unvoiced.
type ringHysteresis struct {
	backend  FrameVAD
	ring     []bool
	pos      int
	filled   int
	inSpeech bool
}

func newRingHysteresis(backend FrameVAD, frameDurationMs int) *ringHysteresis {
	ringLen := paddingMs / frameDurationMs
	if ringLen < 1 {
		ringLen = 1
	}
	return &ringHysteresis{backend: backend, ring: make([]bool, ringLen)}
}

// process feeds one frame through the backend and hysteresis, and
// reports whether the frame should count toward the voiced total.
func (h *ringHysteresis) process(frame []int16) (voicedFrame bool, err error) {
	voiced, err := h.backend.ProcessFrame(frame)
	if err != nil {
		return false, err
	}

	h.ring[h.pos] = voiced
	h.pos = (h.pos + 1) % len(h.ring)
	if h.filled < len(h.ring) {
		h.filled++
	}

	voicedCount := 0
	for i := 0; i < h.filled; i++ {
		if h.ring[i] {
			voicedCount++
		}
	}
	ratio := float64(voicedCount) / float64(h.filled)

	switch {
	case !h.inSpeech && ratio > 0.9:
		h.inSpeech = true
	case h.inSpeech && ratio < 0.1:
		h.inSpeech = false
	}

	return h.inSpeech, nil
}
