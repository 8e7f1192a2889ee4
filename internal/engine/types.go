// Package engine runs the poll loop that drives a set of digital output lines
// from an optional input: acquire, decide, act, wait, repeated until cancelled.
//
// Decisions are made by a Policy, a pure function of the current reading and a
// running counter. Hardware is reached only through gpio.Hardware and time only
// through Clock, so the loop can be exercised deterministically with fakes.
package engine

import (
	"time"

	"github.com/sweeney/gpio-sequencer/internal/gpio"
)

// OutputLine is one owned digital output.
type OutputLine struct {
	Index int
	Pin   int
	State bool // true = HIGH
}

// InputKind selects the variant of an InputSource.
type InputKind int

const (
	InputNone InputKind = iota
	InputDigital
	InputScalar
)

func (k InputKind) String() string {
	switch k {
	case InputDigital:
		return "digital"
	case InputScalar:
		return "scalar"
	default:
		return "none"
	}
}

// InputSource describes the optional input polled once per cycle.
type InputSource struct {
	Kind InputKind

	// Pin and Pull apply to InputDigital.
	Pin  int
	Pull gpio.Pull

	// SensorID applies to InputScalar (e.g. "28-0000075a3b21").
	SensorID string
}

// Reading is the value acquired at the start of a cycle.
type Reading struct {
	Kind  InputKind
	Level bool    // raw digital level, true = HIGH
	Value float64 // scalar sample
}

// Instruction drives one line and then holds for Delay.
type Instruction struct {
	Line  int // index into the configured outputs
	On    bool
	Delay time.Duration
}

// Decision is what a Policy wants done for one cycle.
type Decision struct {
	Instructions []Instruction
	Counter      uint64
	Events       []Event
}

// Policy maps a reading and the running counter to a Decision.
type Policy interface {
	// Name identifies the policy in logs and status output.
	Name() string

	// Input reports the input kind the policy consumes.
	Input() InputKind

	// Decide must not touch hardware or sleep.
	Decide(r Reading, counter uint64, lines int) Decision
}

// EventType names something worth reporting outside the engine.
type EventType string

const (
	EventDetected EventType = "OBJECT_DETECTED"
	EventReading  EventType = "READING"
	EventOverheat EventType = "OVERHEAT"
)

// Event is reported to the Reporter before the cycle's instructions run.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Count     uint64
	Value     float64
}

// CycleStatus is reported after every completed cycle.
type CycleStatus struct {
	Time         time.Time
	Cycle        uint64
	Counter      uint64
	Instructions int
	Reading      Reading
	Lines        []OutputLine
}

// Reporter receives events and cycle summaries. Calls happen on the engine's
// goroutine; implementations must not block for long.
type Reporter interface {
	Event(Event)
	Cycle(CycleStatus)
}

type nopReporter struct{}

func (nopReporter) Event(Event)       {}
func (nopReporter) Cycle(CycleStatus) {}

// Config is everything Initialize needs.
type Config struct {
	// Outputs are the output pins in index order. Must be non-empty and unique.
	Outputs []int

	Input  InputSource
	Policy Policy

	// PollInterval is slept after a cycle whose instructions held for no
	// time. A cycle that already slept reads again straight away.
	PollInterval time.Duration

	// Burst, if > 0, drives all outputs HIGH for this long before the loop starts.
	Burst time.Duration

	// MaxCycles and MaxInstructions bound the run when > 0.
	MaxCycles       uint64
	MaxInstructions int
}
