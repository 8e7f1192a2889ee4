package gpio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const sampleW1 = "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"

func TestParseW1Slave(t *testing.T) {
	c, err := ParseW1Slave([]byte(sampleW1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 23.125 {
		t.Errorf("expected 23.125, got %v", c)
	}
}

func TestParseW1SlaveNegative(t *testing.T) {
	data := "5e ff 55 00 7f ff 0c 10 21 : crc=21 YES\n5e ff 55 00 7f ff 0c 10 21 t=-10125\n"
	c, err := ParseW1Slave([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != -10.125 {
		t.Errorf("expected -10.125, got %v", c)
	}
}

func TestParseW1SlaveErrors(t *testing.T) {
	tests := map[string]string{
		"short":   "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n",
		"bad crc": "72 01 4b 46 7f ff 0e 10 57 : crc=57 NO\n72 01 4b 46 7f ff 0e 10 57 t=23125\n",
		"no temp": "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57\n",
		"garbage": "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 t=abc\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseW1Slave([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func writeSensor(t *testing.T, dir, id, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, id, "w1_slave"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestW1BusOpenAndRead(t *testing.T) {
	dir := t.TempDir()
	writeSensor(t, dir, "28-0000075a3b21", sampleW1)

	bus := NewW1Bus(dir)
	ids, err := bus.Sensors()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "28-0000075a3b21" {
		t.Fatalf("unexpected sensors: %v", ids)
	}

	s, err := bus.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.ID() != "28-0000075a3b21" {
		t.Errorf("auto-selected id: got %q", s.ID())
	}
	c, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c != 23.125 {
		t.Errorf("expected 23.125, got %v", c)
	}

	s.Release()
	if _, err := s.Read(); err == nil {
		t.Error("expected error after release")
	}
}

func TestW1BusMissingSensor(t *testing.T) {
	bus := NewW1Bus(t.TempDir())
	if _, err := bus.Open("28-missing"); err == nil {
		t.Error("expected error for missing sensor")
	}
	if _, err := bus.Open(""); err == nil {
		t.Error("expected error for empty bus")
	}
}

func TestOpenClaimedAutoAndExplicitShareClaim(t *testing.T) {
	dir := t.TempDir()
	writeSensor(t, dir, "28-abc", sampleW1)

	var mu sync.Mutex
	c := newClaims()
	bus := NewW1Bus(dir)

	auto, err := openClaimed(&mu, c, bus, "auto")
	if err != nil {
		t.Fatalf("open auto: %v", err)
	}
	if auto.ID() != "28-abc" {
		t.Errorf("resolved id: got %q, want 28-abc", auto.ID())
	}
	if _, err := openClaimed(&mu, c, bus, "28-abc"); !errors.Is(err, ErrPinClaimed) {
		t.Errorf("explicit id after auto: expected ErrPinClaimed, got %v", err)
	}
	if _, err := openClaimed(&mu, c, bus, ""); !errors.Is(err, ErrPinClaimed) {
		t.Errorf("empty id after auto: expected ErrPinClaimed, got %v", err)
	}

	if err := auto.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	s, err := openClaimed(&mu, c, bus, "28-abc")
	if err != nil {
		t.Fatalf("sensor should be claimable after release: %v", err)
	}
	if v, err := s.Read(); err != nil || v != 23.125 {
		t.Errorf("read: got %v, %v", v, err)
	}
}

func TestOpenClaimedEmptyBus(t *testing.T) {
	var mu sync.Mutex
	c := newClaims()
	if _, err := openClaimed(&mu, c, NewW1Bus(t.TempDir()), ""); err == nil {
		t.Fatal("expected error for empty bus")
	}
	if len(c.sensors) != 0 {
		t.Errorf("failed open left claims: %v", c.sensors)
	}
}
