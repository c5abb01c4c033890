package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")
	s, err := Open(dbPath, dir)
	require.NoError(t, err)
	return s, dir
}

func sampleSession(start time.Time) *Session {
	return &Session{
		SessionID:           NewSessionID(start),
		StartTime:           start,
		Status:              StatusRecording,
		Tags:                []string{"work", "standup"},
		TranscriptionStatus: TranscriptionPending,
		Chunks: []Chunk{
			{FilePath: "2026-07-29/10-00-00_0001.wav", Timestamp: start, DurationSeconds: 30, Index: 1, RMSLevel: 0.2, SpeechRatio: 0.8},
			{FilePath: "2026-07-29/10-00-30_0002.wav", Timestamp: start.Add(30 * time.Second), DurationSeconds: 30, Index: 2, RMSLevel: 0.0, IsSilent: true},
		},
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	session := sampleSession(time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, session))

	got, err := s.Get(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.SessionID, got.SessionID)
	require.Equal(t, session.Status, got.Status)
	require.ElementsMatch(t, session.Tags, got.Tags)
	require.Len(t, got.Chunks, 2)
}

func TestGetUnknownSessionReturnsErrSessionNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Get(ctx, "sess_does_not_exist")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDerivedFieldsIgnoreSilentChunks(t *testing.T) {
	session := sampleSession(time.Now())
	require.Equal(t, 30.0, session.DurationSeconds())
	require.Equal(t, 2, session.TotalChunks())
	require.Equal(t, 0.2, session.AvgRMS())
}

func TestListFiltersByStatusAndTag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	recording := sampleSession(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC))
	completed := sampleSession(time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC))
	completed.Status = StatusCompleted
	completed.Tags = []string{"personal"}

	require.NoError(t, s.Save(ctx, recording))
	require.NoError(t, s.Save(ctx, completed))

	byStatus, err := s.List(ctx, ListOptions{Status: StatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	require.Equal(t, completed.SessionID, byStatus[0].SessionID)

	byTag, err := s.List(ctx, ListOptions{Tag: "standup"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	require.Equal(t, recording.SessionID, byTag[0].SessionID)
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	older := sampleSession(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	newer := sampleSession(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, newer.SessionID, all[0].SessionID)
	require.Equal(t, older.SessionID, all[1].SessionID)
}

func TestCleanupRemovesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	old := sampleSession(time.Now().AddDate(0, 0, -40))
	recent := sampleSession(time.Now())
	require.NoError(t, s.Save(ctx, old))
	require.NoError(t, s.Save(ctx, recent))

	removed, err := s.Cleanup(ctx, 30, false)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = s.Get(ctx, old.SessionID)
	require.Error(t, err)

	got, err := s.Get(ctx, recent.SessionID)
	require.NoError(t, err)
	require.Equal(t, recent.SessionID, got.SessionID)
}

func TestStatsCountsByStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	recording := sampleSession(time.Now())
	completed := sampleSession(time.Now().Add(-time.Hour))
	completed.Status = StatusCompleted
	require.NoError(t, s.Save(ctx, recording))
	require.NoError(t, s.Save(ctx, completed))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 1, stats.RecordingSessions)
}

func TestHasTagAndAddTag(t *testing.T) {
	s := &Session{}
	s.AddTag("a")
	s.AddTag("b")
	s.AddTag("a")
	require.True(t, s.HasTag("a"))
	require.False(t, s.HasTag("c"))
	require.Len(t, s.Tags, 2)
}
