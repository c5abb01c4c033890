// Package probe takes a short, non-disruptive RMS measurement of a
// device without touching the running capture stream.
package probe

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"sysrecorder/device"
)

// Result is the outcome of probing one device.
type Result struct {
	DeviceIndex string
	DeviceName  string
	RMS         float64
	Peak        float64
	HasSignal   bool
	Err         error
}

// Run opens a short-lived input stream on dev, collects frames for
// duration, and reports its RMS/peak. It opens the device with its
// reported input channel count, capped at 2. The
// stream is always closed before Run returns, so it never
// holds the device beyond the probe window.
func Run(ctx *malgo.AllocatedContext, dev device.AudioDevice, sampleRate int, duration time.Duration, threshold float64) Result {
	result := Result{DeviceIndex: dev.Index, DeviceName: dev.Name}

	if dev.MaxInputChannels == 0 {
		result.Err = fmt.Errorf("device %q has no input channels", dev.Name)
		return result
	}
	channels := dev.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	id, err := device.ParseIndex(dev.Index)
	if err != nil {
		result.Err = fmt.Errorf("failed to resolve device id: %w", err)
		return result
	}
	deviceConfig.Capture.DeviceID = id.Pointer()

	var mu sync.Mutex
	var sumSquares float64
	var count int
	var peak float64

	onRecvFrames := func(pOutput, pInput []byte, framecount uint32) {
		n := len(pInput) / 4
		mu.Lock()
		for i := 0; i < n; i++ {
			s := bytesToFloat32(pInput[i*4 : i*4+4])
			v := float64(s)
			sumSquares += v * v
			count++
			if math.Abs(v) > peak {
				peak = math.Abs(v)
			}
		}
		mu.Unlock()
	}

	dev2, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		result.Err = fmt.Errorf("failed to open probe device %q: %w", dev.Name, err)
		return result
	}
	defer dev2.Uninit()

	if err := dev2.Start(); err != nil {
		result.Err = fmt.Errorf("failed to start probe device %q: %w", dev.Name, err)
		return result
	}
	time.Sleep(duration)
	dev2.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		result.Err = fmt.Errorf("probe of %q collected no samples", dev.Name)
		return result
	}

	result.RMS = math.Sqrt(sumSquares / float64(count))
	result.Peak = peak
	result.HasSignal = result.RMS > threshold
	return result
}

func bytesToFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
