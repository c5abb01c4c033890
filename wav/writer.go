// Package wav persists PCM audio as 16-bit RIFF/WAVE files and reads
// them back for export concatenation.
package wav

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

const bitsPerSample = 16

// Writer is a streaming WAV writer: it reserves a placeholder header,
// appends samples as they arrive, and patches the header with the
// final size on Finalize.
type Writer struct {
	file           *os.File
	filePath       string
	sampleRate     int
	channels       int
	samplesWritten int64
	mu             sync.Mutex
}

// NewWriter creates filePath (its parent directory must already exist)
// and reserves a placeholder header for streamed int16 PCM at sampleRate/channels.
func NewWriter(filePath string, sampleRate, channels int) (*Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &Writer{
		file:       file,
		filePath:   filePath,
		sampleRate: sampleRate,
		channels:   channels,
	}
	if err := w.writeHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}

	byteRate := w.sampleRate * w.channels * bitsPerSample / 8
	blockAlign := w.channels * bitsPerSample / 8
	dataSize := uint32(w.samplesWritten * int64(bitsPerSample/8))

	w.file.WriteString("RIFF")
	binary.Write(w.file, binary.LittleEndian, uint32(36+dataSize))
	w.file.WriteString("WAVE")

	w.file.WriteString("fmt ")
	binary.Write(w.file, binary.LittleEndian, uint32(16))
	binary.Write(w.file, binary.LittleEndian, uint16(1))
	binary.Write(w.file, binary.LittleEndian, uint16(w.channels))
	binary.Write(w.file, binary.LittleEndian, uint32(w.sampleRate))
	binary.Write(w.file, binary.LittleEndian, uint32(byteRate))
	binary.Write(w.file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(w.file, binary.LittleEndian, uint16(bitsPerSample))

	w.file.WriteString("data")
	return binary.Write(w.file, binary.LittleEndian, dataSize)
}

// Write clips samples to [-1, 1], scales by 32767 and appends them as
// signed 16-bit little-endian PCM.
func (w *Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		if err := binary.Write(w.file, binary.LittleEndian, int16(s*32767)); err != nil {
			return fmt.Errorf("failed to write wav sample: %w", err)
		}
		w.samplesWritten++
	}
	return nil
}

// SamplesWritten reports how many samples have been appended so far.
func (w *Writer) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

// FlushHeader rewrites the header in place with the current size
// without disturbing the write position, so a reader opening the file
// mid-recording sees a valid WAV even if the process crashes before
// Finalize runs.
func (w *Writer) FlushHeader() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, err := w.file.Seek(0, 1)
	if err != nil {
		return err
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	_, err = w.file.Seek(pos, 0)
	return err
}

// Finalize rewrites the header with the final size. Safe to call more
// than once; typically followed immediately by Close.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeHeader()
}

// Close finalizes the header and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.Finalize(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// FilePath returns the path this writer was created with.
func (w *Writer) FilePath() string {
	return w.filePath
}
