package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// record is the GORM-mapped row. Metadata columns are
// denormalized for query; Data is the canonical document and is what
// save/get actually round-trip through.
type record struct {
	SessionID           string     `gorm:"column:session_id;primaryKey"`
	StartTime           time.Time  `gorm:"column:start_time;index"`
	EndTime             *time.Time `gorm:"column:end_time"`
	Status              string     `gorm:"column:status;index"`
	Tags                string     `gorm:"column:tags"`
	TranscriptionStatus string     `gorm:"column:transcription_status"`
	TranscriptionPath   string     `gorm:"column:transcription_path"`
	Notes               string     `gorm:"column:notes"`
	Title               string     `gorm:"column:title"`
	Summary             string     `gorm:"column:summary"`
	Data                string     `gorm:"column:data"`
}

func (record) TableName() string {
	return "sessions"
}

func toRecord(s *Session) (*record, error) {
	tags := make([]string, len(s.Tags))
	copy(tags, s.Tags)
	sort.Strings(tags)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tags: %w", err)
	}

	docJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session document: %w", err)
	}

	return &record{
		SessionID:           s.SessionID,
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		Status:              s.Status,
		Tags:                string(tagsJSON),
		TranscriptionStatus: s.TranscriptionStatus,
		TranscriptionPath:   s.TranscriptionPath,
		Notes:               s.Notes,
		Title:               s.Title,
		Summary:             s.Summary,
		Data:                string(docJSON),
	}, nil
}

// fromRecord reconstructs a Session from its canonical Data column.
// The projected columns exist for query only and are not consulted
// here.
func fromRecord(r *record) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(r.Data), &s); err != nil {
		return nil, fmt.Errorf("failed to parse session document %s: %w", r.SessionID, err)
	}
	return &s, nil
}
