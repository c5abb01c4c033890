package device

import (
	"testing"

	"github.com/gen2brain/malgo"
)

func TestClassifyLoopback(t *testing.T) {
	cases := []struct {
		name         string
		wantLoopback bool
		wantVirtual  bool
	}{
		{"Monitor of Built-in Audio.monitor", true, false},
		{"BlackHole 2ch", true, true},
		{"CABLE Output (VB-Audio Virtual Cable)", true, true},
		{"Soundflower (2ch)", false, true},
		{"Built-in Microphone", false, false},
		{"Aggregate Device", false, true},
	}

	for _, c := range cases {
		gotLoopback, gotVirtual := classify(c.name)
		if gotLoopback != c.wantLoopback {
			t.Errorf("classify(%q).isLoopback = %v, want %v", c.name, gotLoopback, c.wantLoopback)
		}
		if gotVirtual != c.wantVirtual {
			t.Errorf("classify(%q).isVirtual = %v, want %v", c.name, gotVirtual, c.wantVirtual)
		}
	}
}

func TestCanCapture(t *testing.T) {
	cases := []struct {
		d    AudioDevice
		want bool
	}{
		{AudioDevice{IsInput: true}, true},
		{AudioDevice{IsLoopback: true}, true},
		{AudioDevice{IsOutput: true}, false},
		{AudioDevice{}, false},
	}
	for _, c := range cases {
		if got := c.d.CanCapture(); got != c.want {
			t.Errorf("CanCapture() = %v, want %v for %+v", got, c.want, c.d)
		}
	}
}

func TestDeviceIDRoundTrip(t *testing.T) {
	const name = "hw:0,0"
	id, err := stringToDeviceID(name)
	if err != nil {
		t.Fatalf("stringToDeviceID: %v", err)
	}
	got := deviceIDToString(*id)
	if got != name {
		t.Errorf("round trip = %q, want %q", got, name)
	}
}

func TestStringToDeviceIDTooLong(t *testing.T) {
	long := make([]byte, len(malgo.DeviceID{})+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := stringToDeviceID(string(long)); err == nil {
		t.Error("expected error for oversized device index")
	}
}

func TestFindBestLoopbackPrefersMonitor(t *testing.T) {
	devices := []AudioDevice{
		{Name: "blackhole-ish device", IsInput: true, IsLoopback: true, IsVirtual: true},
		{Name: "default.monitor", IsInput: true, IsLoopback: true, IsVirtual: false},
	}
	got := bestLoopback(devices)
	if got == nil || got.Name != "default.monitor" {
		t.Fatalf("expected monitor device preferred, got %+v", got)
	}
}
