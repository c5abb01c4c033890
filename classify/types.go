// Package classify computes the loudness and voice-activity verdict
// for one chunk of captured audio.
package classify

// Config parameterizes classification. SampleRate must be one of
// 8000, 16000, 32000, 48000 for the VAD stage to run; any other rate
// still yields a usable RMS-only verdict (SpeechRatio forced to 0).
type Config struct {
	SampleRate       int
	SilenceThreshold float64
}

// Verdict is the classification result for one chunk.
type Verdict struct {
	RMS         float64
	SpeechRatio float64
	IsSilent    bool
}

func supportedSampleRate(rate int) bool {
	switch rate {
	case 8000, 16000, 32000, 48000:
		return true
	default:
		return false
	}
}
