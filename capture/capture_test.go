package capture

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:    "idle",
		StateRunning: "running",
		StateStopped: "stopped",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestStopBeforeStartIsIdempotent(t *testing.T) {
	s := New(nil, "", 16000, 1)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop on idle source: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("state = %s, want stopped", s.State())
	}
}

func TestDeviceUnavailableErrorMessage(t *testing.T) {
	err := &DeviceUnavailableError{DeviceIndex: "hw:9,0", Reason: "no such device"}
	want := `device "hw:9,0" unavailable: no such device`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBytesToFloat32Zero(t *testing.T) {
	if got := bytesToFloat32([]byte{0, 0, 0, 0}); got != 0 {
		t.Errorf("bytesToFloat32(zero bytes) = %v, want 0", got)
	}
}
