// services/hal/device.go
package hal

import (
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"f7hal/drivers/esp32"
	"f7hal/drivers/upd"
	"f7hal/services/hal/config"
	"f7hal/services/hal/internal/gpio"
	"f7hal/services/hal/internal/gpioirq"
	"f7hal/services/hal/internal/halcore"
	"f7hal/services/hal/internal/pins"
	"f7hal/services/hal/internal/spibus"
)

// Device is the board: one driver channel shared by the GPIO manager, the
// SPI bus and the coprocessor that rides on it.
type Device struct {
	cfg config.HALConfig
	log *zap.Logger

	ch upd.Channel
	q  upd.Queue

	dir  *pins.Directory
	gpio *gpio.Manager
	spi  *spibus.Bus
	wifi *esp32.Coprocessor

	irq        chan gpioirq.Event
	irqDropped atomic.Uint64

	netUp atomic.Bool
}

// Open opens the driver node and interrupt queue named in cfg. A failed
// open is logged and the device carries on: every register call then fails
// on its own with driver_io, and interrupts never fire.
func Open(cfg config.HALConfig, log *zap.Logger) (*Device, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var ch upd.Channel
	dev, err := upd.Open(cfg.DevicePath)
	if err != nil {
		log.Error("failed to open peripheral driver", zap.String("path", cfg.DevicePath), zap.Error(err))
		ch = upd.Unavailable(err)
	} else {
		ch = dev
	}
	var q upd.Queue
	if mq, err := upd.OpenQueue(cfg.InterruptQueue); err != nil {
		log.Error("failed to open interrupt queue", zap.String("queue", cfg.InterruptQueue), zap.Error(err))
	} else {
		q = mq
	}
	d, err := New(ch, q, cfg, log)
	if err != nil {
		return nil, multierr.Combine(err, closeIf(q), closeIf(ch))
	}
	return d, nil
}

// New wires a device over an already open channel and queue. q may be nil.
// Both are closed by Close.
func New(ch upd.Channel, q upd.Queue, cfg config.HALConfig, log *zap.Logger) (*Device, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		cfg: cfg,
		log: log,
		ch:  ch,
		q:   q,
		dir: pins.NewDirectory(),
		irq: make(chan gpioirq.Event, max(cfg.IRQBuffer, 1)),
	}
	d.gpio = gpio.New(ch, q, d.dir, gpio.Config{
		InvertedPins: cfg.InvertedPins,
		OnInterrupt:  d.onInterrupt,
		IRQBuffer:    cfg.IRQBuffer,
	}, log.Named("gpio"))

	bus, err := spibus.New(ch, spibus.ClockConfig{
		Speed: physic.Frequency(cfg.SPI.SpeedKHz) * physic.KiloHertz,
		Mode:  spi.Mode(cfg.SPI.Mode),
	}, log.Named("spi"))
	if err != nil {
		_ = d.gpio.Close()
		return nil, err
	}
	d.spi = bus

	d.wifi = esp32.New(bus, log.Named("esp32"), cfg.WiFi.EventBuffer)
	if err := d.wifi.SetScanFrequency(time.Duration(cfg.WiFi.ScanFrequencyMS) * time.Millisecond); err != nil {
		_ = d.gpio.Close()
		return nil, err
	}
	return d, nil
}

// Initialize drives the configured start-up outputs and, if asked, starts
// the WiFi interface. Failures are logged and returned together; the
// remaining lines are still programmed.
func (d *Device) Initialize() error {
	outs := make([]gpio.InitialOutput, 0, len(d.cfg.Outputs))
	for _, o := range d.cfg.Outputs {
		outs = append(outs, gpio.InitialOutput{Pin: o.Pin, Level: o.Level})
	}
	err := d.gpio.Initialize(outs)
	if err != nil {
		d.log.Warn("gpio initialisation incomplete", zap.Error(err))
	}
	if d.cfg.WiFi.StartNetwork {
		ok, serr := d.StartNetwork()
		if serr != nil || !ok {
			d.log.Warn("wifi start failed", zap.Bool("ok", ok), zap.Error(serr))
		}
		err = multierr.Append(err, serr)
	}
	return err
}

// StartNetwork starts the WiFi interface. Once it has come up the service
// rescans every ScanFrequency.
func (d *Device) StartNetwork() (bool, error) {
	ok, err := d.wifi.StartNetwork()
	if ok {
		d.netUp.Store(true)
	}
	return ok, err
}

func (d *Device) NetworkStarted() bool { return d.netUp.Load() }

// SPIDevice binds a peripheral on the shared bus with cs driven through the
// GPIO manager. The line is programmed as an output and left deasserted.
func (d *Device) SPIDevice(cs halcore.Pin, mode spibus.CSMode) (*spibus.Device, error) {
	if err := d.gpio.ConfigureOutputDefault(cs, mode == spibus.ActiveLow); err != nil {
		return nil, err
	}
	return spibus.NewDevice(d.spi, d.gpio.Output(cs), mode), nil
}

func (d *Device) GPIO() *gpio.Manager             { return d.gpio }
func (d *Device) SPI() *spibus.Bus                { return d.spi }
func (d *Device) Coprocessor() *esp32.Coprocessor { return d.wifi }
func (d *Device) Pins() *pins.Directory           { return d.dir }

// Interrupts delivers dispatched GPIO interrupts. The dispatcher never
// blocks on it; a full channel drops the event.
func (d *Device) Interrupts() <-chan gpioirq.Event { return d.irq }

// DroppedInterrupts counts events lost to a full Interrupts channel.
func (d *Device) DroppedInterrupts() uint64 { return d.irqDropped.Load() }

// onInterrupt runs on the dispatcher with the registration lock held.
func (d *Device) onInterrupt(ev gpioirq.Event) {
	select {
	case d.irq <- ev:
	default:
		d.irqDropped.Add(1)
	}
}

// Close stops the interrupt worker, then closes the queue and the channel.
func (d *Device) Close() error {
	err := d.gpio.Close()
	err = multierr.Append(err, closeIf(d.q))
	return multierr.Append(err, closeIf(d.ch))
}

func closeIf(v any) error {
	if c, ok := v.(io.Closer); ok && c != nil {
		return c.Close()
	}
	return nil
}
