// Package store provides the durable session catalog: a single
// SQLite file with one row per session, metadata columns projected
// for query plus an opaque canonical document column.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusExported  = "exported"
)

// Transcription statuses.
const (
	TranscriptionPending    = "pending"
	TranscriptionProcessing = "processing"
	TranscriptionCompleted  = "completed"
	TranscriptionFailed     = "failed"
)

// Chunk is one recorded, immutable segment belonging to a Session.
type Chunk struct {
	FilePath        string    `json:"file_path"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	Index           int       `json:"index"`
	RMSLevel        float64   `json:"rms_level"`
	IsSilent        bool      `json:"is_silent"`
	SpeechRatio     float64   `json:"speech_ratio"`
}

// Session is a contiguous run of audio delimited by silence.
type Session struct {
	SessionID           string     `json:"session_id"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	Chunks              []Chunk    `json:"chunks"`
	Status              string     `json:"status"`
	Tags                []string   `json:"tags"`
	TranscriptionStatus string     `json:"transcription_status"`
	TranscriptionPath   string     `json:"transcription_path,omitempty"`
	Notes               string     `json:"notes"`
	Title               string     `json:"title"`
	Summary             string     `json:"summary"`
}

// NewSessionID formats the sess_YYYYMMDD_HHMMSS_<6-hex> identifier
// using the first 6 hex digits of a random UUID as trailing entropy, so
// two sessions starting in the same second are unlikely to collide.
func NewSessionID(t time.Time) string {
	suffix := uuid.New().String()
	return fmt.Sprintf("sess_%s_%s", t.Format("20060102_150405"), suffix[:6])
}

// DurationSeconds sums the duration of every non-silent chunk.
func (s *Session) DurationSeconds() float64 {
	var total float64
	for _, c := range s.Chunks {
		if !c.IsSilent {
			total += c.DurationSeconds
		}
	}
	return total
}

// TotalChunks is the count of all chunks, silent or not.
func (s *Session) TotalChunks() int {
	return len(s.Chunks)
}

// AvgRMS is the mean RMS level over non-silent chunks, or 0 if there
// are none.
func (s *Session) AvgRMS() float64 {
	var sum float64
	var n int
	for _, c := range s.Chunks {
		if !c.IsSilent {
			sum += c.RMSLevel
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// HasTag reports whether tag is a member of the session's tag set.
func (s *Session) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag inserts tag into the session's tag set if not already present.
func (s *Session) AddTag(tag string) {
	if !s.HasTag(tag) {
		s.Tags = append(s.Tags, tag)
	}
}

// Stats summarizes the catalog as a whole.
type Stats struct {
	TotalSessions       int
	RecordingSessions   int
	TranscribedSessions int
	DiskUsageBytes      int64
}

// ListOptions filters a catalog listing. A zero value lists everything
// up to the default limit, newest first.
type ListOptions struct {
	Date   *time.Time // matches calendar day
	Status string     // exact match when non-empty
	Tag    string     // membership when non-empty
	Limit  int        // defaults to 100
}
