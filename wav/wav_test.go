package wav

import (
	"path/filepath"
	"testing"
	"time"
)

func TestChunkPathFormat(t *testing.T) {
	ts := time.Date(2026, 7, 29, 14, 5, 9, 0, time.UTC)
	got := ChunkPath("data", ts, 3)
	want := filepath.Join("data", "2026-07-29", "14-05-09_0003.wav")
	if got != want {
		t.Errorf("ChunkPath = %q, want %q", got, want)
	}
}

func TestWriteChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	samples := []float32{0, 0.5, -0.5, 1, -1}

	path, err := WriteChunk(dir, ts, 1, samples, 16000, 1)
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	info, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Errorf("format = %d Hz / %d ch, want 16000/1", info.SampleRate, info.Channels)
	}
	if len(info.PCM) != len(samples)*2 {
		t.Errorf("pcm length = %d bytes, want %d", len(info.PCM), len(samples)*2)
	}
}

func TestWriterFlushHeaderMidStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.wav")

	w, err := NewWriter(path, 16000, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write([]float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}

	info, err := Read(path)
	if err != nil {
		t.Fatalf("Read before Close: %v", err)
	}
	if len(info.PCM) != 6 {
		t.Errorf("pcm length after flush = %d, want 6", len(info.PCM))
	}

	if err := w.Write([]float32{0.4}); err != nil {
		t.Fatalf("Write after flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err = Read(path)
	if err != nil {
		t.Fatalf("Read after Close: %v", err)
	}
	if len(info.PCM) != 8 {
		t.Errorf("final pcm length = %d, want 8", len(info.PCM))
	}
}

func TestExportConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	path1, err := WriteChunk(dir, ts, 1, []float32{0.5, 0.5}, 16000, 1)
	if err != nil {
		t.Fatalf("WriteChunk 1: %v", err)
	}
	path2, err := WriteChunk(dir, ts, 2, []float32{-0.5}, 16000, 1)
	if err != nil {
		t.Fatalf("WriteChunk 2: %v", err)
	}

	outPath := filepath.Join(dir, "export.wav")
	if err := Export([]string{path1, path2}, outPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	info, err := Read(outPath)
	if err != nil {
		t.Fatalf("Read export: %v", err)
	}
	if len(info.PCM) != 6 {
		t.Errorf("exported pcm length = %d, want 6 (3 samples)", len(info.PCM))
	}
}

func TestExportSkipsUnreadableChunks(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	path1, err := WriteChunk(dir, ts, 1, []float32{0.1}, 16000, 1)
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	outPath := filepath.Join(dir, "export.wav")
	missing := filepath.Join(dir, "does-not-exist.wav")
	if err := Export([]string{missing, path1}, outPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	info, err := Read(outPath)
	if err != nil {
		t.Fatalf("Read export: %v", err)
	}
	if len(info.PCM) != 2 {
		t.Errorf("exported pcm length = %d, want 2", len(info.PCM))
	}
}
