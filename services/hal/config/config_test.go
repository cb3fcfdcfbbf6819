package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(c.Outputs) != 25 {
		t.Fatalf("%d start-up outputs", len(c.Outputs))
	}
	for _, o := range c.Outputs[:3] {
		if !o.Level {
			t.Fatalf("%s should start high", o.Pin)
		}
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hal.toml")
	src := `
device_path = "/dev/upd1"
log_level = "debug"

[spi]
speed_khz = 6000
mode = 3

[wifi]
scan_frequency_ms = 10000

[[outputs]]
pin = "PB12"
level = true
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.DevicePath != "/dev/upd1" || c.LogLevel != "debug" || c.InterruptQueue != "/mdw_int" {
		t.Fatalf("cfg = %+v", c)
	}
	if c.SPI.SpeedKHz != 6000 || c.SPI.Mode != 3 || c.WiFi.ScanFrequencyMS != 10000 || c.WiFi.EventBuffer != 16 {
		t.Fatalf("spi/wifi = %+v %+v", c.SPI, c.WiFi)
	}
	if len(c.Outputs) != 1 || c.Outputs[0].Pin != "PB12" || !c.Outputs[0].Level {
		t.Fatalf("outputs = %+v", c.Outputs)
	}
	if len(c.InvertedPins) != 3 {
		t.Fatalf("inverted = %v", c.InvertedPins)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"scan too fast": "[wifi]\nscan_frequency_ms = 999\n",
		"scan too slow": "[wifi]\nscan_frequency_ms = 60001\n",
		"spi mode":      "[spi]\nmode = 4\n",
		"bad pin":       "inverted_pins = [\"PZ1\"]\n",
		"leading zero":  "[[outputs]]\npin = \"PA01\"\n",
		"log level":     "log_level = \"loud\"\n",
		"queue name":    "interrupt_queue = \"mdw_int\"\n",
		"not toml":      "device_path = \n",
		"negative irq":  "irq_buffer = -1\n",
		"spi too fast":  "[spi]\nspeed_khz = 48000\n",
	}
	for name, src := range cases {
		if _, err := ParseBytes([]byte(src)); err == nil {
			t.Errorf("%s: accepted", name)
		} else if !strings.HasPrefix(err.Error(), "config.Parse():") {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
