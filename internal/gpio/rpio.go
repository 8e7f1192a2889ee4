//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// maxRPIOPin is the highest BCM line the BCM283x register block exposes.
const maxRPIOPin = 53

// RPIO drives lines by memory-mapping the BCM283x GPIO registers through
// /dev/gpiomem. It needs no kernel line requests, so claims are tracked here.
type RPIO struct {
	mu     sync.Mutex
	claims claims
	w1     *W1Bus
}

// NewRPIO maps the GPIO registers.
func NewRPIO(w1Dir string) (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &RPIO{claims: newClaims(), w1: NewW1Bus(w1Dir)}, nil
}

func (r *RPIO) claim(pin int) error {
	if pin > maxRPIOPin {
		return fmt.Errorf("gpio: no such pin GPIO%d", pin)
	}
	return r.claims.claimPin(pin)
}

// ConfigureOutput claims pin as an output driven LOW.
func (r *RPIO) ConfigureOutput(pin int) (Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(pin); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return &rpioOutput{r: r, pin: p}, nil
}

// ConfigureInput claims pin as an input with the given pull resistor.
func (r *RPIO) ConfigureInput(pin int, pull Pull) (Input, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(pin); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		p.PullOff()
	}
	return &rpioInput{r: r, pin: p}, nil
}

// ConfigureSensor opens and claims a w1-therm sensor. An empty or "auto" id
// selects the first sensor on the bus.
func (r *RPIO) ConfigureSensor(id string) (Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return openClaimed(&r.mu, r.claims, r.w1, id)
}

// Close unmaps the registers.
func (r *RPIO) Close() error {
	return rpio.Close()
}

func (r *RPIO) unclaim(pin int) {
	r.mu.Lock()
	delete(r.claims.pins, pin)
	r.mu.Unlock()
}

type rpioOutput struct {
	r        *RPIO
	pin      rpio.Pin
	released bool
}

func (o *rpioOutput) Pin() int { return int(o.pin) }

// Write cannot fail: register writes have no error path.
func (o *rpioOutput) Write(on bool) error {
	if o.released {
		return ErrReleased
	}
	if on {
		o.pin.High()
	} else {
		o.pin.Low()
	}
	return nil
}

// Release returns the pin to an input with pull-down, like the other backends.
func (o *rpioOutput) Release() error {
	if o.released {
		return nil
	}
	o.released = true
	o.pin.Input()
	o.pin.PullDown()
	o.r.unclaim(int(o.pin))
	return nil
}

type rpioInput struct {
	r        *RPIO
	pin      rpio.Pin
	released bool
}

func (i *rpioInput) Pin() int { return int(i.pin) }

func (i *rpioInput) Read() (bool, error) {
	if i.released {
		return false, ErrReleased
	}
	return i.pin.Read() == rpio.High, nil
}

func (i *rpioInput) Release() error {
	if i.released {
		return nil
	}
	i.released = true
	i.r.unclaim(int(i.pin))
	return nil
}
