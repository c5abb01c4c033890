// Package device enumerates host audio endpoints and classifies them
// as input, output, loopback or virtual devices.
package device

import (
	"fmt"
	"log"
	"strings"

	"github.com/gen2brain/malgo"
)

// AudioDevice identifies a host audio endpoint as of the moment it was
// enumerated. Entries are ephemeral views of the host enumeration and
// may no longer exist by the time a caller acts on them.
type AudioDevice struct {
	Index             string
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate int
	IsInput           bool
	IsOutput          bool
	IsLoopback        bool
	IsVirtual         bool
}

// CanCapture reports whether a stream can be opened for reading from
// this device: it must be an input device or a loopback of an output.
func (d AudioDevice) CanCapture() bool {
	return d.IsInput || d.IsLoopback
}

var virtualNamePatterns = []string{
	"blackhole",
	"soundflower",
	"loopback",
	"virtual",
	"vb-audio",
	"cable",
	"aggregate",
}

// microphoneNamePatterns names substrings that mark a device as a
// physical microphone rather than a loopback/system-audio source.
// Auto-selection and the device supervisor both exclude
// devices matching these before probing, so neither ever "hot-swaps"
// onto the user's own mic.
var microphoneNamePatterns = []string{
	"microphone",
	"mic",
	"headset",
	"webcam",
	"built-in input",
	"internal microphone",
}

// LooksLikeMicrophone reports whether name matches a microphone-like
// naming pattern, case-insensitively.
func LooksLikeMicrophone(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range microphoneNamePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// classify derives IsLoopback/IsVirtual from a device's display name,
// following the platform-specific naming conventions used by the host
// audio backends malgo wraps: PulseAudio monitor sources on Linux-ish
// hosts, BlackHole/Loopback devices on macOS-ish hosts, and the
// VB-Audio "CABLE Output" on Windows-ish hosts.
func classify(name string) (isLoopback, isVirtual bool) {
	lower := strings.ToLower(name)

	isLoopback = strings.HasSuffix(lower, ".monitor") ||
		strings.Contains(lower, "blackhole") ||
		strings.Contains(lower, "loopback") ||
		strings.Contains(lower, "cable output")

	for _, pattern := range virtualNamePatterns {
		if strings.Contains(lower, pattern) {
			isVirtual = true
			break
		}
	}
	return isLoopback, isVirtual
}

// Registry enumerates and looks up host audio devices through a malgo
// context. It holds no open streams of its own.
type Registry struct {
	ctx *malgo.AllocatedContext
}

// New allocates the backing malgo context used for enumeration.
func New() (*Registry, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &Registry{ctx: ctx}, nil
}

// Close releases the backing malgo context.
func (r *Registry) Close() {
	if r.ctx != nil {
		r.ctx.Free()
	}
}

// ListDevices returns a snapshot of the host's capture and playback
// devices. It never fails hard: a failure to enumerate one direction
// is logged and yields an empty result for that direction rather than
// an error.
func (r *Registry) ListDevices() []AudioDevice {
	var devices []AudioDevice

	if captureInfos, err := r.ctx.Devices(malgo.Capture); err == nil {
		for _, info := range captureInfos {
			isLoopback, isVirtual := classify(info.Name())
			channels, sampleRate := bestNativeFormat(info)
			devices = append(devices, AudioDevice{
				Index:             deviceIDToString(info.ID),
				Name:              info.Name(),
				MaxInputChannels:  channels,
				DefaultSampleRate: sampleRate,
				IsInput:           true,
				IsLoopback:        isLoopback,
				IsVirtual:         isVirtual,
			})
		}
	} else {
		log.Printf("device: failed to enumerate capture devices: %v", err)
	}

	if playbackInfos, err := r.ctx.Devices(malgo.Playback); err == nil {
		for _, info := range playbackInfos {
			channels, sampleRate := bestNativeFormat(info)
			found := false
			for i := range devices {
				if devices[i].Name == info.Name() {
					devices[i].IsOutput = true
					devices[i].MaxOutputChannels = channels
					found = true
					break
				}
			}
			if found {
				continue
			}
			isLoopback, isVirtual := classify(info.Name())
			devices = append(devices, AudioDevice{
				Index:             deviceIDToString(info.ID),
				Name:              info.Name(),
				MaxOutputChannels: channels,
				DefaultSampleRate: sampleRate,
				IsOutput:          true,
				IsLoopback:        isLoopback,
				IsVirtual:         isVirtual,
			})
		}
	} else {
		log.Printf("device: failed to enumerate playback devices: %v", err)
	}

	return devices
}

// bestNativeFormat summarizes a device's native data formats as one
// channel count and sample rate. miniaudio reports 0 for either field
// to mean "anything is supported", so zeros fall back to stereo/48kHz.
func bestNativeFormat(info malgo.DeviceInfo) (channels, sampleRate int) {
	n := int(info.FormatCount)
	if n > len(info.Formats) {
		n = len(info.Formats)
	}
	for _, f := range info.Formats[:n] {
		if int(f.Channels) > channels {
			channels = int(f.Channels)
		}
		if int(f.SampleRate) > sampleRate {
			sampleRate = int(f.SampleRate)
		}
	}
	if channels == 0 {
		channels = 2
	}
	if sampleRate == 0 {
		sampleRate = 48000
	}
	return channels, sampleRate
}

// GetByIndex returns the device whose Index matches i exactly, or nil
// if none does (including if the device has since disappeared).
func (r *Registry) GetByIndex(i string) *AudioDevice {
	for _, d := range r.ListDevices() {
		if d.Index == i {
			return &d
		}
	}
	return nil
}

// GetByName returns the first device whose name contains name,
// case-insensitively, or nil if none matches.
func (r *Registry) GetByName(name string) *AudioDevice {
	lower := strings.ToLower(name)
	for _, d := range r.ListDevices() {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return &d
		}
	}
	return nil
}

// FindBestLoopback returns the best guess at a system-audio loopback
// device, trying platform-specific conventions in a fixed order before
// falling back to any device classified as virtual.
func (r *Registry) FindBestLoopback() *AudioDevice {
	return bestLoopback(r.ListDevices())
}

// bestLoopback applies FindBestLoopback's preference order to devices.
func bestLoopback(devices []AudioDevice) *AudioDevice {
	if d := firstMatch(devices, func(d AudioDevice) bool {
		return d.IsInput && strings.HasSuffix(strings.ToLower(d.Name), ".monitor")
	}); d != nil {
		return d
	}
	if d := firstMatch(devices, func(d AudioDevice) bool {
		return d.IsInput && strings.Contains(strings.ToLower(d.Name), "blackhole")
	}); d != nil {
		return d
	}
	if d := firstMatch(devices, func(d AudioDevice) bool {
		return d.IsInput && d.IsLoopback
	}); d != nil {
		return d
	}
	if d := firstMatch(devices, func(d AudioDevice) bool {
		return d.IsInput && strings.Contains(strings.ToLower(d.Name), "cable output")
	}); d != nil {
		return d
	}
	return firstMatch(devices, func(d AudioDevice) bool {
		return d.IsInput && d.IsVirtual
	})
}

func firstMatch(devices []AudioDevice, pred func(AudioDevice) bool) *AudioDevice {
	for _, d := range devices {
		if pred(d) {
			return &d
		}
	}
	return nil
}

// DefaultInput returns the first capture device in the host's
// enumeration order, or nil if there is none. It does not consult the
// host's own default-device flag.
func (r *Registry) DefaultInput() *AudioDevice {
	devices := r.ListDevices()
	if len(devices) == 0 {
		return nil
	}
	for _, d := range devices {
		if d.IsInput {
			return &d
		}
	}
	return nil
}

// DefaultOutput returns the first playback device in the host's
// enumeration order, or nil if there is none. It does not consult the
// host's own default-device flag.
func (r *Registry) DefaultOutput() *AudioDevice {
	devices := r.ListDevices()
	for _, d := range devices {
		if d.IsOutput {
			return &d
		}
	}
	return nil
}

// ParseIndex converts a device index string back into a malgo.DeviceID
// for opening a stream. It is the inverse of deviceIDToString.
func ParseIndex(index string) (*malgo.DeviceID, error) {
	return stringToDeviceID(index)
}

// deviceIDToString encodes a malgo.DeviceID as an opaque string index.
// malgo exposes devices by a fixed-size byte array rather than a small
// integer, so the round-trip through this encoding is how the rest of
// the system gets a stable, comparable "index" for a device without
// assuming host-assigned small integers that malgo doesn't provide.
func deviceIDToString(id malgo.DeviceID) string {
	var b strings.Builder
	for _, c := range id[:] {
		if c == 0 {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	if len(s) > len(malgo.DeviceID{}) {
		return nil, fmt.Errorf("device index too long: %q", s)
	}
	var id malgo.DeviceID
	copy(id[:], []byte(s))
	return &id, nil
}
