package gpio

import (
	"errors"
	"testing"
)

func TestFakeInputRead(t *testing.T) {
	f := NewFake([]bool{true, false, true}, nil)

	in, err := f.ConfigureInput(5, PullUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []bool{true, false, true, true}
	for i, w := range want {
		got, err := in.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeNoSamples(t *testing.T) {
	f := NewFake(nil, nil)
	in, _ := f.ConfigureInput(5, PullNone)

	if _, err := in.Read(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReadError(t *testing.T) {
	f := NewFake([]bool{true}, []float64{20})
	f.ReadError = errors.New("simulated error")

	in, _ := f.ConfigureInput(5, PullNone)
	if _, err := in.Read(); err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}

	s, _ := f.ConfigureSensor("28-1")
	if _, err := s.Read(); err == nil {
		t.Error("expected sensor read error")
	}
}

func TestFakeSensorValues(t *testing.T) {
	f := NewFake(nil, []float64{21.5, 30})
	s, err := f.ConfigureSensor("28-0000075a3b21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID() != "28-0000075a3b21" {
		t.Errorf("ID: got %q", s.ID())
	}

	for i, w := range []float64{21.5, 30, 30} {
		v, err := s.Read()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if v != w {
			t.Errorf("read %d: expected %v, got %v", i, w, v)
		}
	}
}

func TestFakeRecordsWrites(t *testing.T) {
	f := NewFake(nil, nil)
	out, err := f.ConfigureOutput(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Level(20) {
		t.Error("output should start LOW")
	}

	out.Write(true)
	out.Write(false)

	log := f.WriteLog()
	if len(log) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(log))
	}
	if log[0] != (Write{Pin: 20, On: true}) || log[1] != (Write{Pin: 20, On: false}) {
		t.Errorf("unexpected write log: %+v", log)
	}
}

func TestFakeRejectsDoubleClaim(t *testing.T) {
	f := NewFake(nil, nil)
	if _, err := f.ConfigureOutput(20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.ConfigureOutput(20)
	if !errors.Is(err, ErrPinClaimed) {
		t.Errorf("expected ErrPinClaimed, got %v", err)
	}

	_, err = f.ConfigureInput(20, PullUp)
	if !errors.Is(err, ErrPinClaimed) {
		t.Errorf("expected ErrPinClaimed for input on output pin, got %v", err)
	}
}

func TestFakeSensorDefaultID(t *testing.T) {
	f := NewFake(nil, []float64{24.5})

	s, err := f.ConfigureSensor("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID() != FakeSensorID {
		t.Errorf("id: got %q, want %q", s.ID(), FakeSensorID)
	}
	if v, err := s.Read(); err != nil || v != 24.5 {
		t.Errorf("read: got %v, %v", v, err)
	}

	for _, id := range []string{"auto", FakeSensorID} {
		if _, err := f.ConfigureSensor(id); !errors.Is(err, ErrPinClaimed) {
			t.Errorf("ConfigureSensor(%q): expected ErrPinClaimed, got %v", id, err)
		}
	}

	s.Release()
	if _, err := f.ConfigureSensor("auto"); err != nil {
		t.Errorf("sensor should be claimable after release: %v", err)
	}
}

func TestFakeReleaseFreesPin(t *testing.T) {
	f := NewFake(nil, nil)
	out, _ := f.ConfigureOutput(20)

	if err := out.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := out.Release(); err != nil {
		t.Fatalf("second release: unexpected error: %v", err)
	}
	if f.Released(20) != 1 {
		t.Errorf("expected 1 release, got %d", f.Released(20))
	}
	if err := out.Write(true); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased after release, got %v", err)
	}
	if _, err := f.ConfigureOutput(20); err != nil {
		t.Errorf("pin should be claimable after release: %v", err)
	}
}

func TestFakeFailWriteAfter(t *testing.T) {
	f := NewFake(nil, nil)
	f.FailWriteAfter = 2
	out, _ := f.ConfigureOutput(20)

	if err := out.Write(true); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := out.Write(false); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if err := out.Write(true); err == nil {
		t.Error("write 3: expected failure")
	}
	if err := out.Write(false); err != nil {
		t.Errorf("write 4: failure should not repeat: %v", err)
	}
	if n := len(f.WriteLog()); n != 3 {
		t.Errorf("expected 3 recorded writes, got %d", n)
	}
}

func TestFakeInvalidPin(t *testing.T) {
	f := NewFake(nil, nil)
	f.InvalidPins = map[int]bool{99: true}

	if _, err := f.ConfigureOutput(99); err == nil {
		t.Error("expected error for invalid pin")
	}
	if _, err := f.ConfigureOutput(-1); err == nil {
		t.Error("expected error for negative pin")
	}
}

func TestParsePull(t *testing.T) {
	tests := []struct {
		in   string
		want Pull
		err  bool
	}{
		{"", PullNone, false},
		{"up", PullUp, false},
		{"DOWN", PullDown, false},
		{"none", PullNone, false},
		{"sideways", PullNone, true},
	}
	for _, tt := range tests {
		got, err := ParsePull(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParsePull(%q): err=%v, want err=%v", tt.in, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("ParsePull(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
