package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/sweeney/gpio-sequencer/internal/gpio"
)

// Option customises an Engine at Initialize.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with a fake in tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithReporter sets where events and cycle summaries go.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// Engine owns its output lines and input for its whole lifetime.
// Run and Cancel may be called from different goroutines; everything else
// must not be called while Run is active.
type Engine struct {
	cfg      Config
	clock    Clock
	reporter Reporter

	lines   []OutputLine
	outputs []gpio.Output
	input   gpio.Input
	sensor  gpio.Sensor

	counter      uint64
	cycles       uint64
	instructions int

	mu        sync.Mutex
	started   bool
	requested bool
	stop      context.CancelFunc
	done      chan struct{}

	teardownOnce sync.Once
	teardownErr  error
}

// Initialize validates cfg, claims every output (driven LOW) and the input.
// On failure everything already claimed is released and a
// *ConfigurationError is returned.
func Initialize(hw gpio.Hardware, cfg Config, opts ...Option) (*Engine, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		clock:    RealClock{},
		reporter: nopReporter{},
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	for i, pin := range cfg.Outputs {
		out, err := hw.ConfigureOutput(pin)
		if err != nil {
			e.releaseAll()
			return nil, &ConfigurationError{Field: fmt.Sprintf("outputs[%d]", i), Err: err}
		}
		e.outputs = append(e.outputs, out)
		e.lines = append(e.lines, OutputLine{Index: i, Pin: pin})
	}

	switch cfg.Input.Kind {
	case InputDigital:
		in, err := hw.ConfigureInput(cfg.Input.Pin, cfg.Input.Pull)
		if err != nil {
			e.releaseAll()
			return nil, &ConfigurationError{Field: "input", Err: err}
		}
		e.input = in
	case InputScalar:
		s, err := hw.ConfigureSensor(cfg.Input.SensorID)
		if err != nil {
			e.releaseAll()
			return nil, &ConfigurationError{Field: "input", Err: err}
		}
		e.sensor = s
	}

	return e, nil
}

func validate(cfg Config) error {
	if len(cfg.Outputs) == 0 {
		return configErr("outputs", "at least one output line is required")
	}
	seen := make(map[int]bool, len(cfg.Outputs))
	for i, pin := range cfg.Outputs {
		if pin < 0 {
			return configErr(fmt.Sprintf("outputs[%d]", i), "invalid pin %d", pin)
		}
		if seen[pin] {
			return configErr(fmt.Sprintf("outputs[%d]", i), "duplicate pin %d", pin)
		}
		seen[pin] = true
	}
	if cfg.Input.Kind == InputDigital && seen[cfg.Input.Pin] {
		return configErr("input", "pin %d is also an output", cfg.Input.Pin)
	}

	if cfg.Policy == nil {
		return configErr("policy", "no policy set")
	}
	if want := cfg.Policy.Input(); want != cfg.Input.Kind {
		return configErr("input", "policy %s needs %s input, got %s", cfg.Policy.Name(), want, cfg.Input.Kind)
	}
	if v, ok := cfg.Policy.(validator); ok {
		if err := v.validate(len(cfg.Outputs)); err != nil {
			return &ConfigurationError{Field: "policy", Err: err}
		}
	}

	if cfg.PollInterval < 0 || cfg.Burst < 0 {
		return configErr("delays", "durations must not be negative")
	}
	if cfg.Input.Kind != InputNone && cfg.PollInterval == 0 {
		return configErr("poll_interval", "must be positive when polling an input")
	}
	if cfg.MaxInstructions < 0 {
		return configErr("max_instructions", "must not be negative")
	}
	return nil
}

// Run executes the loop until cancellation, a configured bound, or a fault.
// Teardown has completed by the time Run returns.
//
// It returns ErrCancelled after Cancel or ctx cancellation, nil when
// MaxCycles/MaxInstructions is reached, and a *HardwareIOError (or a policy
// fault) otherwise.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine: already run")
	}
	e.started = true
	if e.requested {
		// Cancel beat us; it has already torn down.
		e.mu.Unlock()
		close(e.done)
		return ErrCancelled
	}
	ctx, stop := context.WithCancel(ctx)
	e.stop = stop
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: fault: %v", r)
		}
		if err != nil && !errors.Is(err, ErrCancelled) {
			log.Printf("engine: fault, tearing down: %v", err)
		}
		if terr := e.teardown(); terr != nil {
			err = errors.Join(err, terr)
		}
		stop()
		close(e.done)
	}()

	return e.loop(ctx)
}

// Cancel asks Run to stop at the next safe point and waits for teardown.
// It never interrupts a write. Calling it again, or before Run, is safe; the
// teardown runs exactly once and its result is returned every time.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	e.requested = true
	started := e.started
	stop := e.stop
	e.mu.Unlock()

	if !started {
		return e.teardown()
	}
	if stop != nil {
		stop()
	}
	<-e.done
	return e.teardown()
}

func (e *Engine) loop(ctx context.Context) error {
	if e.cfg.Burst > 0 {
		if err := e.burst(ctx); err != nil {
			return err
		}
	}

	for {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if e.boundReached() {
			return nil
		}

		reading, err := e.acquire()
		if err != nil {
			return err
		}

		d := e.cfg.Policy.Decide(reading, e.counter, len(e.lines))
		e.counter = d.Counter

		now := e.clock.Now()
		for _, ev := range d.Events {
			ev.Timestamp = now
			e.reporter.Event(ev)
		}

		var held time.Duration
		for _, in := range d.Instructions {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			if e.instructionBoundReached() {
				return nil
			}
			if err := e.apply(in); err != nil {
				return err
			}
			e.instructions++
			held += in.Delay
			if err := e.clock.Sleep(ctx, in.Delay); err != nil {
				return ErrCancelled
			}
		}

		e.cycles++
		e.reporter.Cycle(e.status(reading))

		if e.boundReached() {
			return nil
		}
		if held > 0 {
			continue
		}
		if err := e.clock.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return ErrCancelled
		}
	}
}

// burst drives every line HIGH for the burst duration, then LOW again so the
// loop starts from a known all-off state.
func (e *Engine) burst(ctx context.Context) error {
	for i := range e.lines {
		if err := e.apply(Instruction{Line: i, On: true}); err != nil {
			return err
		}
	}
	if err := e.clock.Sleep(ctx, e.cfg.Burst); err != nil {
		return ErrCancelled
	}
	for i := range e.lines {
		if err := e.apply(Instruction{Line: i, On: false}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) acquire() (Reading, error) {
	r := Reading{Kind: e.cfg.Input.Kind}
	switch e.cfg.Input.Kind {
	case InputDigital:
		lvl, err := e.input.Read()
		if err != nil {
			return r, &HardwareIOError{Op: "read", Target: fmt.Sprintf("pin %d", e.input.Pin()), Err: err}
		}
		r.Level = lvl
	case InputScalar:
		v, err := e.sensor.Read()
		if err != nil {
			return r, &HardwareIOError{Op: "read", Target: "sensor " + e.sensor.ID(), Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return r, &HardwareIOError{Op: "read", Target: "sensor " + e.sensor.ID(), Err: fmt.Errorf("non-finite value %v", v)}
		}
		r.Value = v
	}
	return r, nil
}

func (e *Engine) apply(in Instruction) error {
	if in.Line < 0 || in.Line >= len(e.outputs) {
		return fmt.Errorf("engine: policy fault: line %d out of range", in.Line)
	}
	if err := e.outputs[in.Line].Write(in.On); err != nil {
		return &HardwareIOError{Op: "write", Target: fmt.Sprintf("pin %d", e.lines[in.Line].Pin), Err: err}
	}
	e.lines[in.Line].State = in.On
	return nil
}

func (e *Engine) instructionBoundReached() bool {
	return e.cfg.MaxInstructions > 0 && e.instructions >= e.cfg.MaxInstructions
}

func (e *Engine) boundReached() bool {
	if e.cfg.MaxCycles > 0 && e.cycles >= e.cfg.MaxCycles {
		return true
	}
	return e.instructionBoundReached()
}

func (e *Engine) status(r Reading) CycleStatus {
	return CycleStatus{
		Time:         e.clock.Now(),
		Cycle:        e.cycles,
		Counter:      e.counter,
		Instructions: e.instructions,
		Reading:      r,
		Lines:        e.Lines(),
	}
}

// teardown forces every line LOW and releases all handles, once.
func (e *Engine) teardown() error {
	e.teardownOnce.Do(func() {
		var errs []error
		for i, out := range e.outputs {
			if err := out.Write(false); err != nil {
				errs = append(errs, fmt.Errorf("pin %d: %w", e.lines[i].Pin, err))
				continue
			}
			e.lines[i].State = false
		}
		errs = append(errs, e.releaseAll()...)
		if len(errs) > 0 {
			e.teardownErr = &HardwareIOError{Op: "teardown", Err: errors.Join(errs...)}
		}
	})
	return e.teardownErr
}

func (e *Engine) releaseAll() []error {
	var errs []error
	if e.input != nil {
		if err := e.input.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release input: %w", err))
		}
	}
	if e.sensor != nil {
		if err := e.sensor.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sensor: %w", err))
		}
	}
	for i, out := range e.outputs {
		if err := out.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", e.lines[i].Pin, err))
		}
	}
	return errs
}

// Lines returns a copy of the output lines and their last written state.
func (e *Engine) Lines() []OutputLine {
	return append([]OutputLine(nil), e.lines...)
}

// Counter returns the policy counter (passes, detections or over-threshold readings).
func (e *Engine) Counter() uint64 {
	return e.counter
}

// Cycles returns the number of completed cycles.
func (e *Engine) Cycles() uint64 {
	return e.cycles
}

// Instructions returns the number of instructions applied, excluding the burst.
func (e *Engine) Instructions() int {
	return e.instructions
}
