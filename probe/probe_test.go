package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sysrecorder/device"
)

// Run's channel-count check happens before it ever touches malgo, so
// it is exercisable without real audio hardware.
func TestRunRejectsDeviceWithNoInputChannels(t *testing.T) {
	dev := device.AudioDevice{Index: "out-only", Name: "Speakers", MaxInputChannels: 0}

	result := Run(nil, dev, 16000, 50*time.Millisecond, 0.01)

	require.Error(t, result.Err)
	require.False(t, result.HasSignal)
	require.Equal(t, dev.Index, result.DeviceIndex)
	require.Equal(t, dev.Name, result.DeviceName)
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	// Little-endian IEEE-754 encoding of 0.5.
	b := []byte{0x00, 0x00, 0x00, 0x3f}
	got := bytesToFloat32(b)
	require.InDelta(t, 0.5, float64(got), 1e-6)
}
