package wav

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Export concatenates the PCM payloads of the WAV files at paths, in
// order, into a single WAV file at outPath. Sample rate and channel
// count are taken from the first readable file; files that fail to
// read are skipped rather than aborting the whole export, so one
// missing chunk file is not fatal to the rest.
func Export(paths []string, outPath string) error {
	var sampleRate, channels int
	var pcm []byte

	for _, path := range paths {
		info, err := Read(path)
		if err != nil {
			continue
		}
		if sampleRate == 0 {
			sampleRate = info.SampleRate
			channels = info.Channels
		}
		pcm = append(pcm, info.PCM...)
	}

	if sampleRate == 0 {
		return fmt.Errorf("no readable chunk files to export")
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	f.WriteString("RIFF")
	binary.Write(f, binary.LittleEndian, uint32(36+len(pcm)))
	f.WriteString("WAVE")

	f.WriteString("fmt ")
	binary.Write(f, binary.LittleEndian, uint32(16))
	binary.Write(f, binary.LittleEndian, uint16(1))
	binary.Write(f, binary.LittleEndian, uint16(channels))
	binary.Write(f, binary.LittleEndian, uint32(sampleRate))
	binary.Write(f, binary.LittleEndian, uint32(byteRate))
	binary.Write(f, binary.LittleEndian, uint16(blockAlign))
	binary.Write(f, binary.LittleEndian, uint16(bitsPerSample))

	f.WriteString("data")
	binary.Write(f, binary.LittleEndian, uint32(len(pcm)))
	_, err = f.Write(pcm)
	return err
}
