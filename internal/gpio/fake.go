package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeSensorID is the sensor an empty or "auto" id resolves to on a Fake.
const FakeSensorID = "28-00000000f4ce"

// Write is one recorded output write.
type Write struct {
	Pin int
	On  bool
}

// Fake is a test double that records output writes and returns scripted inputs.
// It is also used by the "sim" driver to run without hardware.
type Fake struct {
	mu sync.Mutex

	// Samples contains scripted raw levels for digital inputs.
	// Each Read() consumes the next sample; the last one repeats.
	Samples []bool

	// Values contains scripted scalar sensor readings, consumed like Samples.
	Values []float64

	// Writes records every successful output write in order.
	Writes []Write

	// ReadError, if set, is returned by input and sensor reads.
	ReadError error

	// WriteError, if set, is returned by output writes.
	WriteError error

	// FailWriteAfter, if > 0, makes the write after that many successful
	// writes fail once. Later writes succeed again.
	FailWriteAfter int

	// InvalidPins are rejected by ConfigureOutput/ConfigureInput.
	InvalidPins map[int]bool

	// OnWrite, if set, is called after each recorded write.
	OnWrite func(Write)

	// Closed tracks if Close was called.
	Closed bool

	claims    claims
	levels    map[int]bool
	released  map[int]int
	sampleIdx int
	valueIdx  int
}

// NewFake creates a Fake with the given scripted input samples and sensor values.
func NewFake(samples []bool, values []float64) *Fake {
	return &Fake{
		Samples:  samples,
		Values:   values,
		claims:   newClaims(),
		levels:   make(map[int]bool),
		released: make(map[int]int),
	}
}

// Level returns the last written level of pin.
func (f *Fake) Level(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Released reports how many times the handle for pin was released.
func (f *Fake) Released(pin int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[pin]
}

// WriteLog returns a copy of the recorded writes.
func (f *Fake) WriteLog() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.Writes...)
}

// ConfigureOutput claims pin and drives it LOW. The initial LOW is not recorded in Writes.
func (f *Fake) ConfigureOutput(pin int) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InvalidPins[pin] {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	if err := f.claims.claimPin(pin); err != nil {
		return nil, err
	}
	f.levels[pin] = false
	return &fakeOutput{f: f, pin: pin}, nil
}

// ConfigureInput claims pin as an input.
func (f *Fake) ConfigureInput(pin int, pull Pull) (Input, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InvalidPins[pin] {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	if err := f.claims.claimPin(pin); err != nil {
		return nil, err
	}
	return &fakeInput{f: f, pin: pin}, nil
}

// ConfigureSensor claims the sensor id. An empty or "auto" id selects
// FakeSensorID, the way a single-sensor bus resolves.
func (f *Fake) ConfigureSensor(id string) (Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" || id == "auto" {
		id = FakeSensorID
	}
	if err := f.claims.claimSensor(id); err != nil {
		return nil, err
	}
	return &fakeSensor{f: f, id: id}, nil
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) write(pin int, on bool) error {
	f.mu.Lock()
	if f.WriteError != nil {
		f.mu.Unlock()
		return f.WriteError
	}
	if f.FailWriteAfter > 0 && len(f.Writes) >= f.FailWriteAfter {
		f.FailWriteAfter = 0
		f.mu.Unlock()
		return errors.New("simulated write failure")
	}
	w := Write{Pin: pin, On: on}
	f.Writes = append(f.Writes, w)
	f.levels[pin] = on
	hook := f.OnWrite
	f.mu.Unlock()

	if hook != nil {
		hook(w)
	}
	return nil
}

func (f *Fake) nextSample() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	s := f.Samples[f.sampleIdx]
	if f.sampleIdx < len(f.Samples)-1 {
		f.sampleIdx++
	}
	return s, nil
}

func (f *Fake) nextValue() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	v := f.Values[f.valueIdx]
	if f.valueIdx < len(f.Values)-1 {
		f.valueIdx++
	}
	return v, nil
}

func (f *Fake) release(pin int) {
	f.mu.Lock()
	f.released[pin]++
	delete(f.claims.pins, pin)
	f.mu.Unlock()
}

type fakeOutput struct {
	f        *Fake
	pin      int
	released bool
}

func (o *fakeOutput) Pin() int { return o.pin }

func (o *fakeOutput) Write(on bool) error {
	if o.released {
		return ErrReleased
	}
	return o.f.write(o.pin, on)
}

func (o *fakeOutput) Release() error {
	if o.released {
		return nil
	}
	o.released = true
	o.f.release(o.pin)
	return nil
}

type fakeInput struct {
	f        *Fake
	pin      int
	released bool
}

func (i *fakeInput) Pin() int { return i.pin }

func (i *fakeInput) Read() (bool, error) {
	if i.released {
		return false, ErrReleased
	}
	return i.f.nextSample()
}

func (i *fakeInput) Release() error {
	if i.released {
		return nil
	}
	i.released = true
	i.f.release(i.pin)
	return nil
}

type fakeSensor struct {
	f        *Fake
	id       string
	released bool
}

func (s *fakeSensor) ID() string { return s.id }

func (s *fakeSensor) Read() (float64, error) {
	if s.released {
		return 0, ErrReleased
	}
	return s.f.nextValue()
}

func (s *fakeSensor) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	s.f.mu.Lock()
	delete(s.f.claims.sensors, s.id)
	s.f.mu.Unlock()
	return nil
}
