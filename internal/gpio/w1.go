package gpio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultW1Dir is where the kernel w1 bus exposes its slave devices.
const DefaultW1Dir = "/sys/bus/w1/devices"

// W1Bus reads temperature sensors (DS18B20 family 28-) through the kernel
// w1-therm driver.
type W1Bus struct {
	dir string
}

// NewW1Bus returns a bus rooted at dir; empty means DefaultW1Dir.
func NewW1Bus(dir string) *W1Bus {
	if dir == "" {
		dir = DefaultW1Dir
	}
	return &W1Bus{dir: dir}
}

// Sensors lists the temperature sensor ids present on the bus.
func (b *W1Bus) Sensors() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "28-*"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, filepath.Base(m))
	}
	return ids, nil
}

// Open returns a sensor for id. An empty id selects the first sensor found,
// which mirrors how single-sensor setups are usually wired.
func (b *W1Bus) Open(id string) (Sensor, error) {
	if id == "" || id == "auto" {
		ids, err := b.Sensors()
		if err != nil {
			return nil, fmt.Errorf("scan w1 bus: %w", err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no w1 temperature sensor under %s", b.dir)
		}
		id = ids[0]
	}
	path := filepath.Join(b.dir, id, "w1_slave")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sensor %s: %w", id, err)
	}
	return &w1Sensor{id: id, path: path}, nil
}

type w1Sensor struct {
	id       string
	path     string
	released bool
}

func (s *w1Sensor) ID() string { return s.id }

func (s *w1Sensor) Read() (float64, error) {
	if s.released {
		return 0, ErrReleased
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read sensor %s: %w", s.id, err)
	}
	c, err := ParseW1Slave(data)
	if err != nil {
		return 0, fmt.Errorf("sensor %s: %w", s.id, err)
	}
	return c, nil
}

func (s *w1Sensor) Release() error {
	s.released = true
	return nil
}

// ParseW1Slave decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
//
// and returns degrees Celsius.
func ParseW1Slave(data []byte) (float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return 0, errors.New("w1: short read")
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, errors.New("w1: crc check failed")
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, errors.New("w1: no temperature field")
	}
	milli, err := strconv.Atoi(lines[1][i+2:])
	if err != nil {
		return 0, fmt.Errorf("w1: bad temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}

// openClaimed opens id on bus and claims the sensor it resolves to, so an
// auto-selected sensor and the same sensor named explicitly share one claim.
// The caller holds mu; the returned sensor retakes it to drop the claim.
func openClaimed(mu *sync.Mutex, c claims, bus *W1Bus, id string) (Sensor, error) {
	s, err := bus.Open(id)
	if err != nil {
		return nil, err
	}
	resolved := s.ID()
	if err := c.claimSensor(resolved); err != nil {
		s.Release()
		return nil, err
	}
	return &releasingSensor{Sensor: s, release: func() {
		mu.Lock()
		delete(c.sensors, resolved)
		mu.Unlock()
	}}, nil
}

// releasingSensor runs release after the wrapped sensor is released, once.
type releasingSensor struct {
	Sensor
	release func()
	done    bool
}

func (r *releasingSensor) Release() error {
	if r.done {
		return nil
	}
	r.done = true
	err := r.Sensor.Release()
	r.release()
	return err
}
