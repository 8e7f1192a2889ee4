// Package config loads the sequencer's YAML configuration and turns it into
// an engine configuration. Each program starts from a preset that matches the
// classic Raspberry Pi lab wiring; a file and then flags override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/gpio-sequencer/internal/engine"
	"github.com/sweeney/gpio-sequencer/internal/gpio"
)

// Program selects which policy drives the outputs.
type Program string

const (
	ProgramBlink  Program = "blink"
	ProgramCount  Program = "count"
	ProgramThermo Program = "thermo"
)

// Drivers
const (
	DriverGPIOCDev = "gpiocdev"
	DriverPeriph   = "periph"
	DriverRPIO     = "rpio"
	DriverSim      = "sim"
)

// DefaultTopicPrefix is the MQTT topic prefix when none is configured.
const DefaultTopicPrefix = "gpio-sequencer"

// Config is the on-disk configuration.
type Config struct {
	Program   Program `yaml:"program"`
	Driver    string  `yaml:"driver"`
	Chip      string  `yaml:"chip"`
	Outputs   []int   `yaml:"outputs"`
	Input     Input   `yaml:"input"`
	Sensor    Sensor  `yaml:"sensor"`
	Threshold float64 `yaml:"threshold"`
	Delays    Delays  `yaml:"delays"`
	MaxCycles uint64  `yaml:"max_cycles"`
	MQTT      MQTT    `yaml:"mqtt"`
	HTTP      string  `yaml:"http"`
	MDNS      bool    `yaml:"mdns"`
	Sim       Sim     `yaml:"sim"`
}

// Input is the digital input of the count program.
type Input struct {
	Pin       int    `yaml:"pin"`
	Pull      string `yaml:"pull"`
	ActiveLow bool   `yaml:"active_low"`
}

// Sensor is the scalar sensor of the thermo program.
type Sensor struct {
	ID    string `yaml:"id"`
	W1Dir string `yaml:"w1_dir"`
}

// Delays holds every configurable wait. Values are Go duration strings.
type Delays struct {
	Step     time.Duration `yaml:"step"`
	Flash    time.Duration `yaml:"flash"`
	Debounce time.Duration `yaml:"debounce"`
	Poll     time.Duration `yaml:"poll"`
	Burst    time.Duration `yaml:"burst"`
}

// MQTT configures optional event publishing. An empty broker disables it and
// an empty client ID is generated per run.
type MQTT struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// Sim scripts the inputs of the sim driver.
type Sim struct {
	Samples []bool    `yaml:"samples"`
	Values  []float64 `yaml:"values"`
}

var ledBank = []int{20, 21, 22, 23, 24, 25, 26, 27}

// Preset returns the defaults for program.
func Preset(p Program) (Config, error) {
	c := Config{
		Program: p,
		Driver:  DriverGPIOCDev,
		Chip:    "gpiochip0",
		MQTT:    MQTT{TopicPrefix: DefaultTopicPrefix},
		Sensor:  Sensor{W1Dir: gpio.DefaultW1Dir},
	}
	switch p {
	case ProgramBlink:
		c.Outputs = append([]int(nil), ledBank...)
		c.Delays = Delays{Step: 500 * time.Millisecond, Burst: time.Second}
	case ProgramCount:
		c.Outputs = []int{8}
		c.Input = Input{Pin: 5, Pull: "up", ActiveLow: true}
		c.Delays = Delays{Flash: 500 * time.Millisecond, Debounce: time.Second, Poll: 50 * time.Millisecond}
		c.Sim = Sim{Samples: []bool{true}}
	case ProgramThermo:
		c.Outputs = append([]int(nil), ledBank...)
		c.Threshold = 29
		c.Delays = Delays{Poll: time.Second}
		c.Sim = Sim{Values: []float64{24.5}}
	default:
		return Config{}, fmt.Errorf("unknown program %q", p)
	}
	return c, nil
}

// Parse decodes YAML on top of the preset named by its program field
// (or fallback when the field is absent).
func Parse(data []byte, fallback Program) (Config, error) {
	var head struct {
		Program Program `yaml:"program"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if head.Program == "" {
		head.Program = fallback
	}

	c, err := Preset(head.Program)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads path and parses it. An empty path returns the fallback preset.
func Load(path string, fallback Program) (Config, error) {
	if path == "" {
		return Preset(fallback)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data, fallback)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks fields that do not depend on hardware.
func (c Config) Validate() error {
	var errs []error
	switch c.Program {
	case ProgramBlink, ProgramCount, ProgramThermo:
	default:
		errs = append(errs, fmt.Errorf("unknown program %q", c.Program))
	}
	switch c.Driver {
	case DriverGPIOCDev, DriverPeriph, DriverRPIO, DriverSim:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if len(c.Outputs) == 0 {
		errs = append(errs, errors.New("no outputs configured"))
	}
	if _, err := gpio.ParsePull(c.Input.Pull); err != nil {
		errs = append(errs, err)
	}
	d := c.Delays
	for name, v := range map[string]time.Duration{
		"step": d.Step, "flash": d.Flash, "debounce": d.Debounce, "poll": d.Poll, "burst": d.Burst,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("delay %s is negative", name))
		}
	}
	return errors.Join(errs...)
}

// Engine builds the engine configuration for the selected program.
func (c Config) Engine() (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	ec := engine.Config{
		Outputs:      append([]int(nil), c.Outputs...),
		PollInterval: c.Delays.Poll,
		MaxCycles:    c.MaxCycles,
	}
	switch c.Program {
	case ProgramBlink:
		ec.Policy = engine.RoundRobin{Delay: c.Delays.Step}
		ec.Burst = c.Delays.Burst
	case ProgramCount:
		pull, _ := gpio.ParsePull(c.Input.Pull)
		ec.Input = engine.InputSource{Kind: engine.InputDigital, Pin: c.Input.Pin, Pull: pull}
		ec.Policy = engine.EdgeCount{
			ActiveLow: c.Input.ActiveLow,
			Indicator: 0,
			Flash:     c.Delays.Flash,
			Debounce:  c.Delays.Debounce,
		}
	case ProgramThermo:
		ec.Input = engine.InputSource{Kind: engine.InputScalar, SensorID: c.Sensor.ID}
		ec.Policy = engine.ThresholdBulk{Threshold: c.Threshold}
	}
	return ec, nil
}
