package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives lines through periph.io's host drivers. Pins are addressed by
// their BCM numbers ("GPIO17").
type Periph struct {
	mu     sync.Mutex
	claims claims
	w1     *W1Bus
}

// NewPeriph initialises the periph host drivers. host.Init can safely be
// called more than once.
func NewPeriph(w1Dir string) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &Periph{claims: newClaims(), w1: NewW1Bus(w1Dir)}, nil
}

func (p *Periph) lookup(pin int) (pgpio.PinIO, error) {
	io := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if io == nil {
		return nil, fmt.Errorf("gpio: no such pin GPIO%d", pin)
	}
	return io, nil
}

// ConfigureOutput claims pin as an output driven LOW.
func (p *Periph) ConfigureOutput(pin int) (Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.claims.claimPin(pin); err != nil {
		return nil, err
	}
	io, err := p.lookup(pin)
	if err == nil {
		err = io.Out(pgpio.Low)
	}
	if err != nil {
		delete(p.claims.pins, pin)
		return nil, err
	}
	return &periphOutput{p: p, io: io, pin: pin}, nil
}

// ConfigureInput claims pin as an input with the given bias.
func (p *Periph) ConfigureInput(pin int, pull Pull) (Input, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.claims.claimPin(pin); err != nil {
		return nil, err
	}
	bias := pgpio.Float
	switch pull {
	case PullUp:
		bias = pgpio.PullUp
	case PullDown:
		bias = pgpio.PullDown
	}
	io, err := p.lookup(pin)
	if err == nil {
		err = io.In(bias, pgpio.NoEdge)
	}
	if err != nil {
		delete(p.claims.pins, pin)
		return nil, err
	}
	return &periphInput{p: p, io: io, pin: pin}, nil
}

// ConfigureSensor opens and claims a w1-therm sensor. An empty or "auto" id
// selects the first sensor on the bus.
func (p *Periph) ConfigureSensor(id string) (Sensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return openClaimed(&p.mu, p.claims, p.w1, id)
}

// Close is a no-op; periph keeps no per-process handle to close.
func (p *Periph) Close() error {
	return nil
}

func (p *Periph) unclaim(pin int) {
	p.mu.Lock()
	delete(p.claims.pins, pin)
	p.mu.Unlock()
}

type periphOutput struct {
	p   *Periph
	io  pgpio.PinIO
	pin int
}

func (o *periphOutput) Pin() int { return o.pin }

func (o *periphOutput) Write(on bool) error {
	if o.io == nil {
		return ErrReleased
	}
	if err := o.io.Out(pgpio.Level(on)); err != nil {
		return fmt.Errorf("write pin %d: %w", o.pin, err)
	}
	return nil
}

// Release returns the pin to an input with pull-down, like the cdev backend.
func (o *periphOutput) Release() error {
	if o.io == nil {
		return nil
	}
	io := o.io
	o.io = nil
	defer o.p.unclaim(o.pin)
	if err := io.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		return fmt.Errorf("reconfigure pin %d: %w", o.pin, err)
	}
	return io.Halt()
}

type periphInput struct {
	p   *Periph
	io  pgpio.PinIO
	pin int
}

func (i *periphInput) Pin() int { return i.pin }

func (i *periphInput) Read() (bool, error) {
	if i.io == nil {
		return false, ErrReleased
	}
	return i.io.Read() == pgpio.High, nil
}

func (i *periphInput) Release() error {
	if i.io == nil {
		return nil
	}
	io := i.io
	i.io = nil
	defer i.p.unclaim(i.pin)
	return io.Halt()
}
