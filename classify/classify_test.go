package classify

import (
	"math"
	"math/rand"
	"testing"
)

func sineWave(freqHz float64, sampleRate, n int, amplitude float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestClassifySilence(t *testing.T) {
	samples := make([]float32, 16000) // 1s of digital silence at 16kHz
	v := Default().Classify(samples, 16000, Config{SampleRate: 16000, SilenceThreshold: 0.01})
	if v.RMS != 0 {
		t.Errorf("RMS = %v, want 0 for silence", v.RMS)
	}
	if !v.IsSilent {
		t.Error("expected silent verdict for digital silence")
	}
	if v.SpeechRatio != 0 {
		t.Errorf("SpeechRatio = %v, want 0 for silence", v.SpeechRatio)
	}
}

func TestClassifyLoudTone(t *testing.T) {
	samples := sineWave(220, 16000, 16000, 0.8)
	v := Default().Classify(samples, 16000, Config{SampleRate: 16000, SilenceThreshold: 0.01})
	if v.RMS <= 0.01 {
		t.Errorf("RMS = %v, want > silence threshold for a loud tone", v.RMS)
	}
	if v.SpeechRatio <= 0 {
		t.Error("expected nonzero speech ratio for a sustained loud tone")
	}
	if v.IsSilent {
		t.Error("loud, sustained tone should not classify as silent")
	}
}

func TestClassifyUnsupportedSampleRate(t *testing.T) {
	samples := sineWave(220, 44100, 44100, 0.8)
	v := Default().Classify(samples, 44100, Config{SampleRate: 44100, SilenceThreshold: 0.01})
	if v.SpeechRatio != 0 {
		t.Errorf("SpeechRatio = %v, want 0 for unsupported sample rate", v.SpeechRatio)
	}
	// RMS gate still applies regardless of VAD availability.
	if v.IsSilent {
		t.Error("expected RMS gate alone to mark a loud tone non-silent")
	}
}

func TestClassifyLoudNoiseIsSilent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.2 * float32(2*rng.Float64()-1)
	}

	v := Default().Classify(samples, 16000, Config{SampleRate: 16000, SilenceThreshold: 0.01})
	if v.RMS <= 0.01 {
		t.Fatalf("RMS = %v, want above the silence threshold for loud noise", v.RMS)
	}
	if v.SpeechRatio >= 0.05 {
		t.Errorf("SpeechRatio = %v, want < 0.05 for broadband noise", v.SpeechRatio)
	}
	if !v.IsSilent {
		t.Error("loud broadband noise should still classify as silent")
	}
}

func TestComputeRMSEmpty(t *testing.T) {
	if got := computeRMS(nil); got != 0 {
		t.Errorf("computeRMS(nil) = %v, want 0", got)
	}
}

func TestRingHysteresisOpensAndCloses(t *testing.T) {
	session, err := newEnergyEngine(0.01).NewSession(16000)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h := newRingHysteresis(session, 30)

	voicedFrame := make([]int16, 480) // 30ms at 16kHz
	for i := range voicedFrame {
		voicedFrame[i] = 20000
	}
	silentFrame := make([]int16, 480)

	// Feed enough voiced frames to open the segment.
	var lastVoiced bool
	for i := 0; i < 15; i++ {
		v, err := h.process(voicedFrame)
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		lastVoiced = v
	}
	if !lastVoiced {
		t.Fatal("expected segment to open after sustained voiced frames")
	}

	for i := 0; i < 15; i++ {
		lastVoiced, _ = h.process(silentFrame)
	}
	if lastVoiced {
		t.Fatal("expected segment to close after sustained silent frames")
	}
}

func TestSileroEngineAlwaysDegrades(t *testing.T) {
	if _, err := (sileroEngine{}).NewSession(16000); err == nil {
		t.Error("expected the unconfigured silero backend to fail session construction")
	}
}
