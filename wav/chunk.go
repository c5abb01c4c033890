package wav

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ChunkPath builds the date-partitioned YYYY-MM-DD/HH-MM-SS_NNNN.wav
// path under dataDir for the 1-based chunk index written at t.
func ChunkPath(dataDir string, t time.Time, index int) string {
	day := t.Format("2006-01-02")
	name := fmt.Sprintf("%s_%04d.wav", t.Format("15-04-05"), index)
	return filepath.Join(dataDir, day, name)
}

// WriteChunk persists samples as 16-bit PCM at sampleRate/channels to
// the date-partitioned path for (t, index), creating parent
// directories on demand. Returns the path written. On any failure the
// file is not left behind, so the caller's chunk counter should not
// advance.
func WriteChunk(dataDir string, t time.Time, index int, samples []float32, sampleRate, channels int) (string, error) {
	path := ChunkPath(dataDir, t, index)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create chunk directory: %w", err)
	}

	w, err := NewWriter(path, sampleRate, channels)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if err := w.Write(samples); err != nil {
		w.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write chunk samples: %w", err)
	}
	if err := w.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to finalize chunk file: %w", err)
	}
	return path, nil
}
