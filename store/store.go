package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sysrecorder/wav"
)

// ErrSessionNotFound is wrapped into any error returned for a session
// ID absent from the catalog, so callers can test for it with
// errors.Is rather than string-matching.
var ErrSessionNotFound = errors.New("session not found")

// Store is the durable session catalog.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context, opts ListOptions) ([]*Session, error)
	Delete(ctx context.Context, sessionID string, deleteFiles bool) error
	GetOlderThan(ctx context.Context, days int) ([]*Session, error)
	Cleanup(ctx context.Context, retentionDays int, deleteFiles bool) (int, error)
	Export(ctx context.Context, sessionID string, outPath string) (string, error)
	Stats(ctx context.Context) (Stats, error)
}

type sqliteStore struct {
	db      *gorm.DB
	dataDir string
}

// Open opens (creating if necessary) the catalog at dbPath in WAL
// journal mode and runs AutoMigrate, which adds any
// missing optional columns (title, summary) without data loss.
func Open(dbPath, dataDir string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session catalog: %w", err)
	}

	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session catalog: %w", err)
	}

	return &sqliteStore{db: db, dataDir: dataDir}, nil
}

// Save upserts session by session_id. The Data column is written as
// the canonical document; the other columns are denormalized copies
// used only for query.
func (s *sqliteStore) Save(ctx context.Context, session *Session) error {
	rec, err := toRecord(session)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	if err := db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}

	log.Printf("store: saved session %s (status=%s, chunks=%d)", session.SessionID, session.Status, len(session.Chunks))
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var rec record
	db := s.db.WithContext(ctx)
	if err := db.Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	}
	return fromRecord(&rec)
}

// List returns sessions newest-first by start_time, filtered by the
// given options.
func (s *sqliteStore) List(ctx context.Context, opts ListOptions) ([]*Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Order("start_time DESC").Limit(limit)
	if opts.Date != nil {
		dayStart := time.Date(opts.Date.Year(), opts.Date.Month(), opts.Date.Day(), 0, 0, 0, 0, opts.Date.Location())
		dayEnd := dayStart.Add(24 * time.Hour)
		query = query.Where("start_time >= ? AND start_time < ?", dayStart, dayEnd)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var records []record
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []*Session
	for _, rec := range records {
		session, err := fromRecord(&rec)
		if err != nil {
			log.Printf("store: skipping corrupt session record %s: %v", rec.SessionID, err)
			continue
		}
		if opts.Tag != "" && !session.HasTag(opts.Tag) {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Delete removes a session row and, if deleteFiles is true, every
// chunk file it owns under the data directory.
func (s *sqliteStore) Delete(ctx context.Context, sessionID string, deleteFiles bool) error {
	if deleteFiles {
		session, err := s.Get(ctx, sessionID)
		if err == nil {
			removeChunkFiles(s.dataDir, session.Chunks)
		}
	}

	db := s.db.WithContext(ctx)
	if err := db.Where("session_id = ?", sessionID).Delete(&record{}).Error; err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	log.Printf("store: deleted session %s (delete_files=%v)", sessionID, deleteFiles)
	return nil
}

// GetOlderThan returns every session whose start_time is more than
// days old.
func (s *sqliteStore) GetOlderThan(ctx context.Context, days int) ([]*Session, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var records []record
	db := s.db.WithContext(ctx)
	if err := db.Where("start_time < ?", cutoff).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query expired sessions: %w", err)
	}

	var sessions []*Session
	for _, rec := range records {
		session, err := fromRecord(&rec)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Cleanup deletes every session older than retentionDays and returns
// the count removed.
func (s *sqliteStore) Cleanup(ctx context.Context, retentionDays int, deleteFiles bool) (int, error) {
	expired, err := s.GetOlderThan(ctx, retentionDays)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, session := range expired {
		if err := s.Delete(ctx, session.SessionID, deleteFiles); err != nil {
			log.Printf("store: cleanup failed to delete session %s: %v", session.SessionID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Export concatenates every non-silent chunk of session_id into one
// WAV file at outPath (or a generated default path under the data
// directory) and transitions the session to "exported".
func (s *sqliteStore) Export(ctx context.Context, sessionID, outPath string) (string, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var paths []string
	for _, c := range session.Chunks {
		if c.IsSilent {
			continue
		}
		paths = append(paths, filepath.Join(s.dataDir, c.FilePath))
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("session %s has no non-silent chunks to export", sessionID)
	}

	if outPath == "" {
		outPath = filepath.Join(s.dataDir, "exports", sessionID+".wav")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	if err := wav.Export(paths, outPath); err != nil {
		return "", fmt.Errorf("failed to export session %s: %w", sessionID, err)
	}

	session.Status = StatusExported
	if err := s.Save(ctx, session); err != nil {
		return "", err
	}

	return outPath, nil
}

// Stats summarizes the catalog.
func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)

	var stats Stats
	var total, recording int64
	if err := db.Model(&record{}).Count(&total).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	if err := db.Model(&record{}).Where("status = ?", StatusRecording).Count(&recording).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count recording sessions: %w", err)
	}
	var transcribed int64
	if err := db.Model(&record{}).Where("transcription_status = ?", TranscriptionCompleted).Count(&transcribed).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count transcribed sessions: %w", err)
	}

	stats.TotalSessions = int(total)
	stats.RecordingSessions = int(recording)
	stats.TranscribedSessions = int(transcribed)
	stats.DiskUsageBytes = diskUsage(s.dataDir)

	return stats, nil
}

func removeChunkFiles(dataDir string, chunks []Chunk) {
	for _, c := range chunks {
		path := filepath.Join(dataDir, c.FilePath)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("store: failed to remove chunk file %s: %v", path, err)
		}
	}
}

func diskUsage(dataDir string) int64 {
	var total int64
	filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
