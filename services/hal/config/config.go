package config

import (
	"fmt"
	"os"
	"regexp"

	toml "github.com/pelletier/go-toml"
	"go.uber.org/zap/zapcore"

	"f7hal/x/mathx"
)

// HALConfig is the daemon's TOML configuration. Zero fields in a file keep
// the board default.
type HALConfig struct {
	DevicePath     string   `toml:"device_path"`
	InterruptQueue string   `toml:"interrupt_queue"`
	LogLevel       string   `toml:"log_level"`
	InvertedPins   []string `toml:"inverted_pins"`
	IRQBuffer      int      `toml:"irq_buffer"`
	Outputs        []Output `toml:"outputs"`
	SPI            SPI      `toml:"spi"`
	WiFi           WiFi     `toml:"wifi"`
}

// Output is one start-up line.
type Output struct {
	Pin   string `toml:"pin"`
	Level bool   `toml:"level"`
}

type SPI struct {
	SpeedKHz int `toml:"speed_khz"`
	Mode     int `toml:"mode"`
}

type WiFi struct {
	ScanFrequencyMS int  `toml:"scan_frequency_ms"`
	EventBuffer     int  `toml:"event_buffer"`
	StartNetwork    bool `toml:"start_network"`
}

const (
	minScanMS = 1000
	maxScanMS = 60000
)

// Default is the F7 board: status LEDs high (off), unallocated header pins
// and the coprocessor control lines low.
func Default() HALConfig {
	return HALConfig{
		DevicePath:     "/dev/upd",
		InterruptQueue: "/mdw_int",
		LogLevel:       "info",
		InvertedPins:   []string{"PA0", "PA1", "PA2"},
		IRQBuffer:      64,
		Outputs: []Output{
			{"PA0", true}, {"PA1", true}, {"PA2", true},

			{"PI9", false}, {"PH13", false}, {"PC6", false},
			{"PB8", false}, {"PB9", false}, {"PC7", false},
			{"PB0", false}, {"PB1", false}, {"PH10", false},
			{"PC9", false}, {"PB14", false}, {"PB15", false},
			{"PG3", false}, {"PE3", false},

			{"PI3", false}, {"PI2", false}, {"PD3", false},
			{"PI0", false}, {"PI10", false}, {"PF7", false},
			{"PD2", false}, {"PB13", false},
		},
		SPI:  SPI{SpeedKHz: 375, Mode: 0},
		WiFi: WiFi{ScanFrequencyMS: 5000, EventBuffer: 16},
	}
}

// Parse overlays file onto Default and validates the result.
func Parse(file string) (*HALConfig, error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("config.Parse(): %w", err)
	}
	return ParseBytes(contents)
}

func ParseBytes(contents []byte) (*HALConfig, error) {
	c := Default()
	var file HALConfig
	if err := toml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("config.Parse(): %w", err)
	}
	c.merge(file)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config.Parse(): %w", err)
	}
	return &c, nil
}

func (c *HALConfig) merge(f HALConfig) {
	if f.DevicePath != "" {
		c.DevicePath = f.DevicePath
	}
	if f.InterruptQueue != "" {
		c.InterruptQueue = f.InterruptQueue
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.InvertedPins != nil {
		c.InvertedPins = f.InvertedPins
	}
	if f.IRQBuffer != 0 {
		c.IRQBuffer = f.IRQBuffer
	}
	if f.Outputs != nil {
		c.Outputs = f.Outputs
	}
	if f.SPI.SpeedKHz != 0 {
		c.SPI.SpeedKHz = f.SPI.SpeedKHz
	}
	if f.SPI.Mode != 0 {
		c.SPI.Mode = f.SPI.Mode
	}
	if f.WiFi.ScanFrequencyMS != 0 {
		c.WiFi.ScanFrequencyMS = f.WiFi.ScanFrequencyMS
	}
	if f.WiFi.EventBuffer != 0 {
		c.WiFi.EventBuffer = f.WiFi.EventBuffer
	}
	c.WiFi.StartNetwork = c.WiFi.StartNetwork || f.WiFi.StartNetwork
}

var pinKey = regexp.MustCompile(`^P[A-K](?:[0-9]|1[0-5])$`)

// Validate checks ranges and pin keys.
func (c *HALConfig) Validate() error {
	if c.DevicePath == "" {
		return fmt.Errorf("device_path is empty")
	}
	if len(c.InterruptQueue) < 2 || c.InterruptQueue[0] != '/' {
		return fmt.Errorf("interrupt_queue %q must be a /name", c.InterruptQueue)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for _, p := range c.InvertedPins {
		if !pinKey.MatchString(p) {
			return fmt.Errorf("inverted_pins: bad pin %q", p)
		}
	}
	for _, o := range c.Outputs {
		if !pinKey.MatchString(o.Pin) {
			return fmt.Errorf("outputs: bad pin %q", o.Pin)
		}
	}
	if c.IRQBuffer < 0 {
		return fmt.Errorf("irq_buffer %d is negative", c.IRQBuffer)
	}
	if !mathx.Between(c.SPI.SpeedKHz, 1, 24000) {
		return fmt.Errorf("spi.speed_khz %d outside 1..24000", c.SPI.SpeedKHz)
	}
	if !mathx.Between(c.SPI.Mode, 0, 3) {
		return fmt.Errorf("spi.mode %d outside 0..3", c.SPI.Mode)
	}
	if !mathx.Between(c.WiFi.ScanFrequencyMS, minScanMS, maxScanMS) {
		return fmt.Errorf("wifi.scan_frequency_ms %d outside %d..%d", c.WiFi.ScanFrequencyMS, minScanMS, maxScanMS)
	}
	if c.WiFi.EventBuffer < 0 {
		return fmt.Errorf("wifi.event_buffer %d is negative", c.WiFi.EventBuffer)
	}
	return nil
}
