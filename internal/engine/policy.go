package engine

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// validator is implemented by policies with parameters to check at Initialize.
type validator interface {
	validate(lines int) error
}

// RoundRobin blinks each line in index order: HIGH, hold, LOW, hold.
// The counter counts completed passes.
type RoundRobin struct {
	Delay time.Duration
}

func (p RoundRobin) Name() string     { return "round-robin" }
func (p RoundRobin) Input() InputKind { return InputNone }

func (p RoundRobin) Decide(_ Reading, counter uint64, lines int) Decision {
	ins := make([]Instruction, 0, 2*lines)
	for i := 0; i < lines; i++ {
		ins = append(ins,
			Instruction{Line: i, On: true, Delay: p.Delay},
			Instruction{Line: i, On: false, Delay: p.Delay},
		)
	}
	return Decision{Instructions: ins, Counter: counter + 1}
}

func (p RoundRobin) validate(int) error {
	if p.Delay <= 0 {
		return errors.New("delay must be positive")
	}
	return nil
}

// EdgeCount counts reads at the detected level. Each detection flashes the
// indicator line for Flash and then holds Debounce so one object is not
// counted twice.
type EdgeCount struct {
	// ActiveLow means a LOW read is a detection (IR modules with pull-up).
	ActiveLow bool
	Indicator int
	Flash     time.Duration
	Debounce  time.Duration
}

func (p EdgeCount) Name() string     { return "edge-count" }
func (p EdgeCount) Input() InputKind { return InputDigital }

// Detected reports whether a raw level counts as a detection.
func (p EdgeCount) Detected(level bool) bool {
	return level != p.ActiveLow
}

func (p EdgeCount) Decide(r Reading, counter uint64, _ int) Decision {
	if !p.Detected(r.Level) {
		return Decision{Counter: counter}
	}
	counter++
	return Decision{
		Counter: counter,
		Events:  []Event{{Type: EventDetected, Count: counter}},
		Instructions: []Instruction{
			{Line: p.Indicator, On: true, Delay: p.Flash},
			{Line: p.Indicator, On: false, Delay: p.Debounce},
		},
	}
}

func (p EdgeCount) validate(lines int) error {
	if p.Indicator < 0 || p.Indicator >= lines {
		return fmt.Errorf("indicator line %d out of range [0,%d)", p.Indicator, lines)
	}
	if p.Flash < 0 || p.Debounce < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

// ThresholdBulk sets every line at once from a scalar reading: all LOW when
// the reading is at or above Threshold, all HIGH below it. The counter counts
// over-threshold readings.
type ThresholdBulk struct {
	Threshold float64
}

func (p ThresholdBulk) Name() string     { return "threshold-bulk" }
func (p ThresholdBulk) Input() InputKind { return InputScalar }

// Exceeded reports whether v is at or above the threshold.
func (p ThresholdBulk) Exceeded(v float64) bool {
	return v >= p.Threshold
}

func (p ThresholdBulk) Decide(r Reading, counter uint64, lines int) Decision {
	on := true
	events := []Event{{Type: EventReading, Value: r.Value, Count: counter}}
	if p.Exceeded(r.Value) {
		on = false
		counter++
		events = append(events, Event{Type: EventOverheat, Value: r.Value, Count: counter})
	}
	ins := make([]Instruction, lines)
	for i := range ins {
		ins[i] = Instruction{Line: i, On: on}
	}
	return Decision{Instructions: ins, Counter: counter, Events: events}
}

func (p ThresholdBulk) validate(int) error {
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("threshold %v is not finite", p.Threshold)
	}
	return nil
}
