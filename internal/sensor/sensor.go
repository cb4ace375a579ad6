// Package sensor reads the pool and collector DS18B20 probes through the
// Linux one-wire sysfs interface (w1-gpio + w1-therm).
package sensor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DisconnectedC is the value the probe driver stack reports for a probe
// that did not answer.
const DisconnectedC = -127

// Plausible DS18B20 range; anything outside is treated as a fault.
const (
	minC = -55
	maxC = 125
)

var (
	// ErrDisconnected is returned for the disconnected sentinel or an
	// out-of-range reading.
	ErrDisconnected = errors.New("sensor: probe disconnected")

	// ErrCRC is returned when the probe's scratchpad failed its CRC check.
	ErrCRC = errors.New("sensor: crc mismatch")
)

// W1 reads two probes from their w1_slave files, e.g.
// /sys/bus/w1/devices/28-0316a2794cff/w1_slave.
type W1 struct {
	poolPath      string
	collectorPath string
}

// NewW1 returns a reader for the given device files.
func NewW1(poolPath, collectorPath string) *W1 {
	return &W1{poolPath: poolPath, collectorPath: collectorPath}
}

// Read returns both temperatures in degrees Celsius. The kernel performs
// the conversion, so the call blocks for the conversion time of each probe.
// If one probe fails the other value is still returned.
func (w *W1) Read() (pool, collector float32, err error) {
	pool, perr := readFile(w.poolPath)
	collector, cerr := readFile(w.collectorPath)
	switch {
	case perr != nil && cerr != nil:
		return pool, collector, fmt.Errorf("pool: %w; collector: %v", perr, cerr)
	case perr != nil:
		return pool, collector, fmt.Errorf("pool: %w", perr)
	case cerr != nil:
		return pool, collector, fmt.Errorf("collector: %w", cerr)
	}
	return pool, collector, nil
}

func readFile(path string) (float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DisconnectedC, fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		return DisconnectedC, err
	}
	return Parse(data)
}

// Parse decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func Parse(data []byte) (float32, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return DisconnectedC, fmt.Errorf("%w: short read (%d lines)", ErrDisconnected, len(lines))
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return DisconnectedC, ErrCRC
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return DisconnectedC, fmt.Errorf("%w: no temperature field", ErrDisconnected)
	}
	milli, err := strconv.Atoi(lines[1][i+2:])
	if err != nil {
		return DisconnectedC, fmt.Errorf("parse temperature: %w", err)
	}
	c := float32(milli) / 1000
	if c <= DisconnectedC || c < minC || c > maxC {
		return c, fmt.Errorf("%w: %.3f C", ErrDisconnected, c)
	}
	return c, nil
}
