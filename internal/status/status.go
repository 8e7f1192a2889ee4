// Package status provides a thread-safe status tracker for the sequencer.
// The engine goroutine writes it; HTTP handlers and MQTT lifecycle events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gpio-sequencer/internal/engine"
)

// NetworkInfo contains network state as reported by the host's helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains the run configuration for display.
type Config struct {
	RunID       string
	Program     string
	Driver      string
	Outputs     []int
	PollMs      int64
	Threshold   *float64
	Broker      string
	HTTPAddr    string
	TopicPrefix string
}

// Snapshot is a point-in-time view of the sequencer.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Lines         []engine.OutputLine
	Counter       uint64
	Cycles        uint64
	Instructions  int
	Reading       engine.Reading
	HasReading    bool
	LastEvent     *engine.Event
	Running       bool
	Fault         string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the sequencer started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// Lines start LOW, as Initialize leaves them.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	lines := make([]engine.OutputLine, len(cfg.Outputs))
	for i, pin := range cfg.Outputs {
		lines[i] = engine.OutputLine{Index: i, Pin: pin}
	}
	return &Tracker{
		snap: Snapshot{
			Lines:     lines,
			StartTime: startTime,
			Config:    cfg,
			Running:   true,
		},
	}
}

// Update records a completed engine cycle.
func (t *Tracker) Update(s engine.CycleStatus) {
	lines := append([]engine.OutputLine(nil), s.Lines...)
	t.mu.Lock()
	t.snap.Lines = lines
	t.snap.Counter = s.Counter
	t.snap.Cycles = s.Cycle
	t.snap.Instructions = s.Instructions
	if s.Reading.Kind != engine.InputNone {
		t.snap.Reading = s.Reading
		t.snap.HasReading = true
	}
	t.mu.Unlock()
}

// RecordEvent remembers the most recent engine event.
func (t *Tracker) RecordEvent(e engine.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
	t.snap.Counter = e.Count
	t.mu.Unlock()
}

// SetStopped marks the engine as no longer running. A non-empty fault
// describes why it failed.
func (t *Tracker) SetStopped(fault string, lines []engine.OutputLine) {
	lines = append([]engine.OutputLine(nil), lines...)
	t.mu.Lock()
	t.snap.Running = false
	t.snap.Fault = fault
	if lines != nil {
		t.snap.Lines = lines
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Lines = append([]engine.OutputLine(nil), t.snap.Lines...)
	if t.snap.LastEvent != nil {
		e := *t.snap.LastEvent
		s.LastEvent = &e
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
