//go:build !linux

package gpio

import "errors"

// Chip is not available on non-Linux platforms.
type Chip struct{}

// NewChip returns an error on non-Linux platforms.
func NewChip(name, w1Dir string) (*Chip, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

// ConfigureOutput is not implemented on non-Linux platforms.
func (c *Chip) ConfigureOutput(pin int) (Output, error) {
	return nil, errors.New("gpio: not supported")
}

// ConfigureInput is not implemented on non-Linux platforms.
func (c *Chip) ConfigureInput(pin int, pull Pull) (Input, error) {
	return nil, errors.New("gpio: not supported")
}

// ConfigureSensor is not implemented on non-Linux platforms.
func (c *Chip) ConfigureSensor(id string) (Sensor, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// RPIO is not available on non-Linux platforms.
type RPIO struct{}

// NewRPIO returns an error on non-Linux platforms.
func NewRPIO(w1Dir string) (*RPIO, error) {
	return nil, errors.New("gpio: gpiomem not supported on this platform (requires Linux)")
}

// ConfigureOutput is not implemented on non-Linux platforms.
func (r *RPIO) ConfigureOutput(pin int) (Output, error) {
	return nil, errors.New("gpio: not supported")
}

// ConfigureInput is not implemented on non-Linux platforms.
func (r *RPIO) ConfigureInput(pin int, pull Pull) (Input, error) {
	return nil, errors.New("gpio: not supported")
}

// ConfigureSensor is not implemented on non-Linux platforms.
func (r *RPIO) ConfigureSensor(id string) (Sensor, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is a no-op on non-Linux platforms.
func (r *RPIO) Close() error {
	return nil
}
