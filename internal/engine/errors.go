package engine

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Run after a requested stop. It is a clean
// termination, not a fault.
var ErrCancelled = errors.New("engine: cancelled")

// ConfigurationError reports an invalid configuration or a pin the hardware
// refused to hand over. Only Initialize returns it.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("engine: invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// HardwareIOError reports a failed read or write. It always ends the run.
type HardwareIOError struct {
	Op     string // "read", "write" or "teardown"
	Target string // e.g. "pin 20"
	Err    error
}

func (e *HardwareIOError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine: %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *HardwareIOError) Unwrap() error { return e.Err }

func configErr(field string, format string, args ...any) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}
