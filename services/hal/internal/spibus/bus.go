// services/hal/internal/spibus/bus.go
package spibus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"f7hal/drivers/upd"
	"f7hal/errcode"
	"f7hal/services/hal/internal/halcore"
)

// ---------------- clock ----------------

// kernelClock feeds the SPI prescaler, which divides by 2^1 .. 2^8.
const kernelClock = 48 * physic.MegaHertz

// SupportedSpeeds lists the reachable SCK rates, fastest first.
func SupportedSpeeds() []physic.Frequency {
	out := make([]physic.Frequency, 0, 8)
	for shift := 1; shift <= 8; shift++ {
		out = append(out, kernelClock>>shift)
	}
	return out
}

// Nearest returns the fastest supported speed not above f, or the slowest.
func Nearest(f physic.Frequency) physic.Frequency {
	speeds := SupportedSpeeds()
	for _, s := range speeds {
		if s <= f {
			return s
		}
	}
	return speeds[len(speeds)-1]
}

type ClockConfig struct {
	Speed physic.Frequency
	Mode  spi.Mode // Mode0..Mode3 only
}

var DefaultClock = ClockConfig{Speed: 375 * physic.KiloHertz, Mode: spi.Mode0}

func (c ClockConfig) Validate() error {
	if c.Mode < spi.Mode0 || c.Mode > spi.Mode3 {
		return errcode.New(errcode.Validation, "spibus.ClockConfig", fmt.Sprintf("mode %d outside 0..3", int(c.Mode)))
	}
	if c.Speed <= 0 {
		return errcode.New(errcode.Validation, "spibus.ClockConfig", "speed must be positive")
	}
	return nil
}

// ---------------- bus ----------------

// Bus is the one SPI link to the driver. A single-slot gate admits one
// transfer at a time across every chip select and coprocessor command.
type Bus struct {
	ch   upd.Channel
	gate chan struct{}
	log  *zap.Logger

	mu  sync.Mutex
	clk ClockConfig
}

func New(ch upd.Channel, clk ClockConfig, log *zap.Logger) (*Bus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bus{ch: ch, gate: make(chan struct{}, 1), log: log}
	if err := b.Configure(clk); err != nil {
		return nil, err
	}
	return b, nil
}

// Configure records the clock, snapped to a supported speed. The driver has
// no clock selector; the value is reported to callers and devices.
func (b *Bus) Configure(clk ClockConfig) error {
	if err := clk.Validate(); err != nil {
		return err
	}
	clk.Speed = Nearest(clk.Speed)
	b.mu.Lock()
	b.clk = clk
	b.mu.Unlock()
	b.log.Debug("spi clock", zap.Stringer("speed", clk.Speed), zap.Int("mode", int(clk.Mode)))
	return nil
}

func (b *Bus) Clock() ClockConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clk
}

func (b *Bus) acquire() { b.gate <- struct{}{} }
func (b *Bus) release() { <-b.gate }

// SendData transmits data. Chip select is the caller's; cs is for logs.
func (b *Bus) SendData(cs halcore.Pin, data []byte) error {
	b.acquire()
	defer b.release()
	return b.transfer(cs, data, nil)
}

// ReceiveData clocks in exactly n bytes.
func (b *Bus) ReceiveData(cs halcore.Pin, n int) ([]byte, error) {
	if n < 0 {
		return nil, errcode.New(errcode.Validation, "spibus.ReceiveData", "negative length")
	}
	rx := make([]byte, n)
	b.acquire()
	defer b.release()
	if err := b.transfer(cs, nil, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// ExchangeData writes w while reading the same number of bytes.
func (b *Bus) ExchangeData(cs halcore.Pin, w []byte) ([]byte, error) {
	rx := make([]byte, len(w))
	b.acquire()
	defer b.release()
	if err := b.transfer(cs, w, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// Execute runs a coprocessor command. The coprocessor shares the link, so
// it takes the same gate.
func (b *Bus) Execute(cmd *upd.CoprocessorCommand, payload, result []byte) error {
	b.acquire()
	defer b.release()
	return upd.Execute(b.ch, cmd, payload, result)
}

// transfer must be called with the gate held.
func (b *Bus) transfer(cs halcore.Pin, tx, rx []byte) error {
	if err := upd.Transfer(b.ch, tx, rx); err != nil {
		b.log.Error("spi transfer failed", zap.String("cs", keyOf(cs)), zap.Int("len", max(len(tx), len(rx))), zap.Error(err))
		return err
	}
	return nil
}

func keyOf(p halcore.Pin) string {
	if p == nil {
		return ""
	}
	return p.Key()
}
