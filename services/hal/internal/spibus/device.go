// services/hal/internal/spibus/device.go
package spibus

import (
	"go.uber.org/multierr"
	"tinygo.org/x/drivers"

	"f7hal/errcode"
	"f7hal/services/hal/internal/halcore"
)

// CSMode is the asserted level of a chip select.
type CSMode uint8

const (
	ActiveLow CSMode = iota
	ActiveHigh
)

// Device is one peripheral on the bus. Each transfer holds the bus gate for
// the whole assert / transfer / deassert sequence.
type Device struct {
	bus  *Bus
	cs   halcore.DigitalOutput
	mode CSMode
}

var _ drivers.SPI = (*Device)(nil)

// NewDevice binds cs to the bus. A nil cs leaves chip select to hardware.
func NewDevice(bus *Bus, cs halcore.DigitalOutput, mode CSMode) *Device {
	return &Device{bus: bus, cs: cs, mode: mode}
}

// Tx implements drivers.SPI. Either slice may be nil; if both are given
// they must be the same length.
func (d *Device) Tx(w, r []byte) error {
	d.bus.acquire()
	defer d.bus.release()

	if err := d.assert(true); err != nil {
		return err
	}
	err := d.bus.transfer(nil, w, r)
	return multierr.Append(err, d.assert(false))
}

// Transfer implements drivers.SPI for a single byte.
func (d *Device) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := d.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (d *Device) Send(data []byte) error { return d.Tx(data, nil) }

func (d *Device) Receive(n int) ([]byte, error) {
	if n < 0 {
		return nil, errcode.New(errcode.Validation, "spibus.Device.Receive", "negative length")
	}
	r := make([]byte, n)
	if err := d.Tx(nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) Exchange(w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	if err := d.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) assert(on bool) error {
	if d.cs == nil {
		return nil
	}
	level := on
	if d.mode == ActiveLow {
		level = !on
	}
	return d.cs.Set(level)
}
