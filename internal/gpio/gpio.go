// Package gpio provides digital line and sensor access behind a hardware abstraction.
// The real implementations use the Linux GPIO character device (go-gpiocdev),
// periph.io or the memory-mapped BCM283x registers (go-rpio). All of them read
// temperature sensors through the kernel w1-therm sysfs interface.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPinClaimed is returned when a pin or sensor is already owned by another handle.
var ErrPinClaimed = errors.New("gpio: already claimed")

// ErrReleased is returned by operations on a handle after Release.
var ErrReleased = errors.New("gpio: handle released")

// Pull selects the bias resistor of an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// ParsePull converts "up", "down", "none" (or empty) into a Pull.
func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(s) {
	case "", "none", "off":
		return PullNone, nil
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	}
	return PullNone, fmt.Errorf("gpio: unknown pull mode %q", s)
}

// Hardware hands out exclusive handles to lines and sensors.
type Hardware interface {
	// ConfigureOutput claims pin as an output driven LOW.
	ConfigureOutput(pin int) (Output, error)

	// ConfigureInput claims pin as an input with the given bias.
	ConfigureInput(pin int, pull Pull) (Input, error)

	// ConfigureSensor claims the scalar sensor with the given id.
	ConfigureSensor(id string) (Sensor, error)

	// Close releases the chip or host resources. Handles should be released first.
	Close() error
}

// Output is a claimed digital output line.
type Output interface {
	Pin() int
	// Write drives the line HIGH (true) or LOW (false).
	Write(on bool) error
	Release() error
}

// Input is a claimed digital input line.
type Input interface {
	Pin() int
	// Read returns the raw level, true = HIGH.
	Read() (bool, error)
	Release() error
}

// Sensor is a claimed scalar sensor.
type Sensor interface {
	ID() string
	// Read returns one sample, in degrees Celsius for temperature sensors.
	Read() (float64, error)
	Release() error
}

// claims tracks which pins and sensors a backend has handed out.
type claims struct {
	pins    map[int]bool
	sensors map[string]bool
}

func newClaims() claims {
	return claims{pins: make(map[int]bool), sensors: make(map[string]bool)}
}

func (c claims) claimPin(pin int) error {
	if pin < 0 {
		return fmt.Errorf("gpio: invalid pin %d", pin)
	}
	if c.pins[pin] {
		return fmt.Errorf("pin %d: %w", pin, ErrPinClaimed)
	}
	c.pins[pin] = true
	return nil
}

func (c claims) claimSensor(id string) error {
	if id == "" {
		return errors.New("gpio: empty sensor id")
	}
	if c.sensors[id] {
		return fmt.Errorf("sensor %s: %w", id, ErrPinClaimed)
	}
	c.sensors[id] = true
	return nil
}
