//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/warthog618/go-gpiocdev"
)

// Consumer is the label the kernel shows for lines held by this process.
const Consumer = "gpio-sequencer"

// Chip drives lines through the Linux GPIO character device.
type Chip struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	claims claims
	w1     *W1Bus
}

// NewChip opens the named chip (e.g. "gpiochip0"). Sensors are read from w1Dir.
func NewChip(name, w1Dir string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{
		chip:   chip,
		claims: newClaims(),
		w1:     NewW1Bus(w1Dir),
	}, nil
}

// ConfigureOutput requests pin as an output initialised LOW.
func (c *Chip) ConfigureOutput(pin int) (Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.claims.claimPin(pin); err != nil {
		return nil, err
	}
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		delete(c.claims.pins, pin)
		return nil, requestError(pin, err)
	}
	return &cdevOutput{c: c, line: line, pin: pin}, nil
}

// ConfigureInput requests pin as an input with the given bias.
func (c *Chip) ConfigureInput(pin int, pull Pull) (Input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.claims.claimPin(pin); err != nil {
		return nil, err
	}
	var bias gpiocdev.LineReqOption
	switch pull {
	case PullUp:
		bias = gpiocdev.WithPullUp
	case PullDown:
		bias = gpiocdev.WithPullDown
	default:
		bias = gpiocdev.WithBiasDisabled
	}
	line, err := c.chip.RequestLine(pin, gpiocdev.AsInput, bias)
	if err != nil {
		delete(c.claims.pins, pin)
		return nil, requestError(pin, err)
	}
	return &cdevInput{c: c, line: line, pin: pin}, nil
}

// ConfigureSensor opens and claims a w1-therm sensor. An empty or "auto" id
// selects the first sensor on the bus.
func (c *Chip) ConfigureSensor(id string) (Sensor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return openClaimed(&c.mu, c.claims, c.w1, id)
}

// Close releases the chip.
func (c *Chip) Close() error {
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

func (c *Chip) unclaim(pin int) {
	c.mu.Lock()
	delete(c.claims.pins, pin)
	c.mu.Unlock()
}

func requestError(pin int, err error) error {
	if errors.Is(err, syscall.EBUSY) {
		return fmt.Errorf("request pin %d: %w (%v)", pin, ErrPinClaimed, err)
	}
	return fmt.Errorf("request pin %d: %w", pin, err)
}

type cdevOutput struct {
	c    *Chip
	line *gpiocdev.Line
	pin  int
}

func (o *cdevOutput) Pin() int { return o.pin }

func (o *cdevOutput) Write(on bool) error {
	if o.line == nil {
		return ErrReleased
	}
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", o.pin, err)
	}
	return nil
}

// Release reconfigures the line to input with pull-down (matching Pi boot
// defaults) before closing it.
func (o *cdevOutput) Release() error {
	if o.line == nil {
		return nil
	}
	line := o.line
	o.line = nil
	defer o.c.unclaim(o.pin)

	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.pin, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}
	return errors.Join(errs...)
}

type cdevInput struct {
	c    *Chip
	line *gpiocdev.Line
	pin  int
}

func (i *cdevInput) Pin() int { return i.pin }

func (i *cdevInput) Read() (bool, error) {
	if i.line == nil {
		return false, ErrReleased
	}
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", i.pin, err)
	}
	return v == 1, nil
}

func (i *cdevInput) Release() error {
	if i.line == nil {
		return nil
	}
	line := i.line
	i.line = nil
	defer i.c.unclaim(i.pin)
	if err := line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", i.pin, err)
	}
	return nil
}
