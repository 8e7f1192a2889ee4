package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/gpio-sequencer/internal/engine"
)

func testConfig() Config {
	threshold := 29.0
	return Config{
		RunID:     "7b0c7f5e-4a1d-4a8e-9d55-0c1e2f3a4b5c",
		Program:   "thermo",
		Driver:    "sim",
		Outputs:   []int{20, 21},
		PollMs:    1000,
		Threshold: &threshold,
		Broker:    "tcp://localhost:1883",
		HTTPAddr:  ":8080",
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 1000 {
		t.Errorf("Config.PollMs: got %d, want 1000", snap.Config.PollMs)
	}
	if len(snap.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(snap.Lines))
	}
	if snap.Lines[1].Pin != 21 || snap.Lines[1].State {
		t.Errorf("line 1: got %+v, want pin 21 LOW", snap.Lines[1])
	}
	if !snap.Running {
		t.Error("expected Running=true initially")
	}
	if snap.HasReading {
		t.Error("expected no reading initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	tr.Update(engine.CycleStatus{
		Cycle:   7,
		Counter: 2,
		Reading: engine.Reading{Kind: engine.InputScalar, Value: 30.5},
		Lines: []engine.OutputLine{
			{Index: 0, Pin: 20, State: false},
			{Index: 1, Pin: 21, State: true},
		},
	})

	snap := tr.Snapshot()
	if snap.Cycles != 7 {
		t.Errorf("Cycles: got %d, want 7", snap.Cycles)
	}
	if snap.Counter != 2 {
		t.Errorf("Counter: got %d, want 2", snap.Counter)
	}
	if !snap.HasReading || snap.Reading.Value != 30.5 {
		t.Errorf("Reading: got %+v", snap.Reading)
	}
	if !snap.Lines[1].State {
		t.Error("expected line 1 HIGH")
	}
}

func TestUpdateWithoutInputKeepsNoReading(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Outputs: []int{20}})
	tr.Update(engine.CycleStatus{Cycle: 1, Lines: []engine.OutputLine{{Pin: 20}}})

	if tr.Snapshot().HasReading {
		t.Error("a cycle without input should not set a reading")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.RecordEvent(engine.Event{Type: engine.EventOverheat, Count: 1})

	snap := tr.Snapshot()
	snap.Lines[0].State = true
	snap.LastEvent.Count = 99

	again := tr.Snapshot()
	if again.Lines[0].State {
		t.Error("mutating a snapshot changed the tracker's lines")
	}
	if again.LastEvent.Count != 1 {
		t.Error("mutating a snapshot changed the tracker's last event")
	}
}

func TestSetStopped(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.SetStopped("engine: write pin 20: bus fault", []engine.OutputLine{{Index: 0, Pin: 20}, {Index: 1, Pin: 21}})

	snap := tr.Snapshot()
	if snap.Running {
		t.Error("expected Running=false")
	}
	if snap.Fault == "" {
		t.Error("expected fault text")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, Config{})

	up := tr.Snapshot().Uptime()
	if up < 90*time.Second || up > 95*time.Second {
		t.Errorf("Uptime: got %v, want ~90s", up)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.Update(engine.CycleStatus{Cycle: uint64(i), Lines: []engine.OutputLine{{Pin: 20, State: i%2 == 0}}})
			tr.RecordEvent(engine.Event{Type: engine.EventReading, Value: float64(i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = FormatJSON(tr.Snapshot())
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())
	tr.Update(engine.CycleStatus{
		Cycle:   3,
		Counter: 1,
		Reading: engine.Reading{Kind: engine.InputScalar, Value: 29},
		Lines:   []engine.OutputLine{{Index: 0, Pin: 20}, {Index: 1, Pin: 21}},
	})
	tr.RecordEvent(engine.Event{Type: engine.EventOverheat, Count: 1, Value: 29, Timestamp: start.Add(3 * time.Second)})
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := sj.Status
	if s.Program != "thermo" {
		t.Errorf("Program: got %q", s.Program)
	}
	if s.RunID != "7b0c7f5e-4a1d-4a8e-9d55-0c1e2f3a4b5c" {
		t.Errorf("RunID: got %q", s.RunID)
	}
	if len(s.Lines) != 2 || s.Lines[0].State != "OFF" {
		t.Errorf("Lines: got %+v", s.Lines)
	}
	if s.Reading == nil || s.Reading.Value == nil || *s.Reading.Value != 29 {
		t.Errorf("Reading: got %+v", s.Reading)
	}
	if s.Reading.Level != nil {
		t.Error("scalar reading should not carry a level")
	}
	if s.LastEvent == nil || s.LastEvent.Type != "OVERHEAT" {
		t.Errorf("LastEvent: got %+v", s.LastEvent)
	}
	if s.Config.Threshold == nil || *s.Config.Threshold != 29 {
		t.Errorf("Config.Threshold: got %v", s.Config.Threshold)
	}
	if s.Network == nil || s.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", s.Network)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event/reason")
	}
}

func TestFormatJSONDigitalReading(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Program: "count", Outputs: []int{8}})
	tr.Update(engine.CycleStatus{
		Reading: engine.Reading{Kind: engine.InputDigital, Level: false},
		Lines:   []engine.OutputLine{{Pin: 8}},
	})

	var sj StatusJSON
	json.Unmarshal(FormatJSON(tr.Snapshot()), &sj)
	if sj.Status.Reading == nil || sj.Status.Reading.Level == nil || *sj.Status.Reading.Level != "LOW" {
		t.Errorf("Reading: got %+v", sj.Status.Reading)
	}
	if sj.Status.Reading.Value != nil {
		t.Error("digital reading should not carry a value")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.SetStopped("", nil)

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGINT"), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGINT" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if sj.Status.Running {
		t.Error("expected running=false")
	}
	if len(sj.Status.Lines) != 2 {
		t.Error("SetStopped with nil lines should keep the existing lines")
	}
}

func TestLevelString(t *testing.T) {
	if LevelString(true) != "ON" || LevelString(false) != "OFF" {
		t.Error("unexpected level strings")
	}
}
