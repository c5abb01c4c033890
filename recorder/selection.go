package recorder

import (
	"sort"

	"sysrecorder/device"
)

// resolveDevice implements the device-resolution order: preferred
// name, then explicit index, then auto-detect, then
// "no device" (host default).
func (r *Recorder) resolveDevice() (index, name string) {
	devCfg := r.cfg.Device

	if devCfg.PreferredDevice != "" {
		if d := r.registry.GetByName(devCfg.PreferredDevice); d != nil {
			return d.Index, d.Name
		}
	}

	if devCfg.HasDevice {
		candidates := capturable(r.registry.ListDevices())
		if devCfg.Device >= 0 && devCfg.Device < len(candidates) {
			d := candidates[devCfg.Device]
			return d.Index, d.Name
		}
	}

	if devCfg.AutoDetect {
		if d := r.autoSelect(); d != nil {
			return d.Index, d.Name
		}
	}

	return "", ""
}

// autoSelect composes the fallbacks: probe every non-microphone
// capture-capable device (virtual devices first) and take the loudest
// above threshold; else the platform's best loopback; else the first
// present device from the configured fallback names; else the
// registry's DefaultInput (the first enumerated capture device).
func (r *Recorder) autoSelect() *device.AudioDevice {
	candidates := capturable(r.registry.ListDevices())

	var probeable []device.AudioDevice
	for _, d := range candidates {
		if device.LooksLikeMicrophone(d.Name) {
			continue
		}
		probeable = append(probeable, d)
	}
	sort.SliceStable(probeable, func(i, j int) bool {
		return probeable[i].IsVirtual && !probeable[j].IsVirtual
	})

	var best *device.AudioDevice
	var bestRMS float64
	for i := range probeable {
		d := probeable[i]
		result := r.probeFn(d, autoSelectProbeDuration, r.cfg.Recording.SilenceThreshold)
		if result.Err != nil {
			continue
		}
		if result.HasSignal && result.RMS > bestRMS {
			found := d
			best = &found
			bestRMS = result.RMS
		}
	}
	if best != nil {
		return best
	}

	if d := r.registry.FindBestLoopback(); d != nil {
		return d
	}

	for _, name := range r.cfg.Device.FallbackDevices {
		if d := r.registry.GetByName(name); d != nil && d.CanCapture() {
			return d
		}
	}
	return r.registry.DefaultInput()
}

func capturable(devices []device.AudioDevice) []device.AudioDevice {
	var out []device.AudioDevice
	for _, d := range devices {
		if d.CanCapture() {
			out = append(out, d)
		}
	}
	return out
}
