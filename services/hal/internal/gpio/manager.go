// services/hal/internal/gpio/manager.go
package gpio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"f7hal/drivers/stm32"
	"f7hal/drivers/upd"
	"f7hal/errcode"
	"f7hal/services/hal/internal/gpioirq"
	"f7hal/services/hal/internal/halcore"
	"f7hal/services/hal/internal/pins"
	"f7hal/x/conv"
)

// DefaultInverted are the active-low status LEDs (blue, green, red).
var DefaultInverted = []string{"PA0", "PA1", "PA2"}

type Config struct {
	// InvertedPins flips the logical level in SetDiscrete.
	InvertedPins []string
	// OnInterrupt receives dispatched GPIO interrupts.
	OnInterrupt gpioirq.Handler
	// IRQBuffer sizes the reader -> dispatcher channel.
	IRQBuffer int
}

// InitialOutput is one board start-up line.
type InitialOutput struct {
	Pin   string
	Level bool
}

// Manager programs GPIO registers through the driver channel and owns the
// interrupt registrations.
type Manager struct {
	ch     upd.Channel
	dir    *pins.Directory
	irq    *gpioirq.Worker
	log    *zap.Logger
	invert map[string]bool

	// 1-bit fields go through read-modify-write; serialise it within the
	// process. Writers in other processes can still interleave.
	rmw sync.Mutex
}

// New builds a manager over an open channel. q may be nil when the kernel
// queue could not be opened; interrupts are then configured but never fire.
func New(ch upd.Channel, q upd.Queue, dir *pins.Directory, cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if dir == nil {
		dir = pins.NewDirectory()
	}
	inv := cfg.InvertedPins
	if inv == nil {
		inv = DefaultInverted
	}
	m := &Manager{
		ch:     ch,
		dir:    dir,
		log:    log,
		invert: make(map[string]bool, len(inv)),
	}
	for _, k := range inv {
		d, err := dir.Resolve(k)
		if err != nil {
			log.Warn("ignoring inverted pin", zap.String("pin", k), zap.Error(err))
			continue
		}
		m.invert[d.Key()] = true
	}
	m.irq = gpioirq.New(q, cfg.OnInterrupt, log.Named("irq"), cfg.IRQBuffer)
	return m
}

// Channel exposes the driver handle so other peripherals can share it.
func (m *Manager) Channel() upd.Channel { return m.ch }

func (m *Manager) Directory() *pins.Directory { return m.dir }

// Interrupts exposes the interrupt worker's counters.
func (m *Manager) Interrupts() *gpioirq.Worker { return m.irq }

// ---------------- configuration ----------------

// ConfigureOutput drives initial onto the pin before switching it to output.
// initial is the physical level; inversion applies to SetDiscrete only.
func (m *Manager) ConfigureOutput(pin halcore.Pin, pull stm32.Pull, speed stm32.Speed, ot stm32.OutputType, initial bool) error {
	d, err := m.resolve(pin)
	if err != nil {
		return err
	}
	return m.configure(d, stm32.ModeOutput, pull, speed, ot, initial, halcore.EdgeNone)
}

// ConfigureOutputDefault is a floating 50 MHz push-pull output.
func (m *Manager) ConfigureOutputDefault(pin halcore.Pin, initial bool) error {
	return m.ConfigureOutput(pin, stm32.PullFloat, stm32.Speed50MHz, stm32.PushPull, initial)
}

// ConfigureInput programs pin as an input and, for edge != EdgeNone, routes
// its interrupt to the worker. Debounce and glitch filtering are accepted
// but the hardware path has no filter to program.
func (m *Manager) ConfigureInput(pin halcore.Pin, r halcore.Resistor, edge halcore.Edge, debounce time.Duration, glitchCycles int) error {
	if debounce < 0 || glitchCycles < 0 {
		return errcode.New(errcode.Validation, "gpio.ConfigureInput", "negative debounce or glitch filter")
	}
	d, err := m.resolve(pin)
	if err != nil {
		return err
	}
	key := d.Key()
	if debounce > 0 || glitchCycles > 0 {
		m.log.Warn("input filtering not supported, ignoring",
			zap.String("pin", key), zap.Duration("debounce", debounce), zap.Int("glitch_cycles", glitchCycles))
	}

	var added, wasRegistered bool
	if edge != halcore.EdgeNone {
		added = m.irq.Register(key, pin)
	} else {
		wasRegistered = m.irq.Unregister(key)
	}

	if err := m.configure(d, stm32.ModeInput, pullFor(r), stm32.Speed2MHz, stm32.PushPull, false, edge); err != nil {
		if added {
			m.irq.Unregister(key)
		}
		return err
	}
	if wasRegistered {
		return m.routeInterrupt(d, halcore.EdgeNone)
	}
	return nil
}

func pullFor(r halcore.Resistor) stm32.Pull {
	switch r {
	case halcore.ResistorDisabled:
		return stm32.PullFloat
	case halcore.ResistorPullUp:
		return stm32.PullUp
	default:
		return stm32.PullDown
	}
}

func (m *Manager) configure(d pins.Designator, mode stm32.Mode, pull stm32.Pull, speed stm32.Speed, ot stm32.OutputType, initial bool, edge halcore.Edge) error {
	// ====== MODE ======
	// level first, then mode, so the pin never glitches to the old ODR value
	if mode == stm32.ModeOutput {
		if err := m.setRegister(d, stm32.BSRR, stm32.BSRRValue(d.Pin, initial)); err != nil {
			return err
		}
	}
	if err := m.update2Bit(d, stm32.MODER, uint8(mode)); err != nil {
		return err
	}

	// ====== RESISTOR ======
	if mode == stm32.ModeAnalog {
		pull = stm32.PullFloat
	}
	if err := m.update2Bit(d, stm32.PUPDR, uint8(pull)); err != nil {
		return err
	}

	drives := mode == stm32.ModeOutput || mode == stm32.ModeAlternateFunction

	// ====== SPEED ======
	if !drives {
		speed = 0
	}
	if err := m.update2Bit(d, stm32.OSPEEDR, uint8(speed)); err != nil {
		return err
	}

	// ====== OUTPUT TYPE ======
	if err := m.update1Bit(d, stm32.OTYPER, drives && ot == stm32.OpenDrain); err != nil {
		return err
	}

	if edge != halcore.EdgeNone {
		return m.routeInterrupt(d, edge)
	}
	return nil
}

// routeInterrupt programs the edge config for d; EdgeNone disables it.
func (m *Manager) routeInterrupt(d pins.Designator, edge halcore.Edge) error {
	if edge != halcore.EdgeNone {
		m.irq.Start(context.Background())
	}
	cfg := upd.GpioInterruptConfig{
		Enable:      edge != halcore.EdgeNone,
		Port:        int32(d.Port),
		Pin:         int32(d.Pin),
		RisingEdge:  edge.Rising(),
		FallingEdge: edge.Falling(),
		Irq:         int32(d.IRQ()),
	}
	if err := upd.RegisterInterrupt(m.ch, cfg); err != nil {
		m.log.Error("interrupt routing failed", zap.String("pin", d.Key()), zap.Uint32("irq", d.IRQ()), zap.Error(err))
		return err
	}
	m.log.Debug("interrupt routed", zap.String("pin", d.Key()), zap.String("edge", halcore.EdgeToString(edge)))
	return nil
}

// ---------------- discrete I/O ----------------

// SetDiscrete drives pin to value with one BSRR write. No lock is needed:
// BSRR writes are atomic in hardware.
func (m *Manager) SetDiscrete(pin halcore.Pin, value bool) error {
	d, err := m.resolve(pin)
	if err != nil {
		return err
	}
	if m.invert[d.Key()] {
		value = !value
	}
	return m.setRegister(d, stm32.BSRR, stm32.BSRRValue(d.Pin, value))
}

// GetDiscrete returns the physical input level of pin.
func (m *Manager) GetDiscrete(pin halcore.Pin) (bool, error) {
	d, err := m.resolve(pin)
	if err != nil {
		return false, err
	}
	v, err := upd.GetRegister(m.ch, d.Addr(stm32.IDR))
	if err != nil {
		m.log.Error("register read failed", zap.String("pin", d.Key()), zap.String("addr", conv.Hex32(d.Addr(stm32.IDR))), zap.Error(err))
		return false, err
	}
	return v&(1<<uint(d.Pin)) != 0, nil
}

// Initialize programs the board's start-up outputs. It keeps going past
// failures and returns them all.
func (m *Manager) Initialize(outs []InitialOutput) error {
	m.log.Info("initializing GPIOs", zap.Int("count", len(outs)))
	var errs error
	for _, o := range outs {
		errs = multierr.Append(errs, m.ConfigureOutputDefault(halcore.PinKey(o.Pin), o.Level))
	}
	return errs
}

// Output binds pin as a DigitalOutput, e.g. for a chip select.
func (m *Manager) Output(pin halcore.Pin) halcore.DigitalOutput {
	return output{m: m, pin: pin}
}

type output struct {
	m   *Manager
	pin halcore.Pin
}

func (o output) Set(level bool) error { return o.m.SetDiscrete(o.pin, level) }

// Close stops the interrupt worker. The channel belongs to the caller.
func (m *Manager) Close() error {
	m.irq.Stop()
	return nil
}

// ---------------- register strategies ----------------

func (m *Manager) resolve(pin halcore.Pin) (pins.Designator, error) {
	if pin == nil {
		return pins.Designator{}, errcode.New(errcode.Validation, "gpio", "nil pin")
	}
	d, err := m.dir.Resolve(pin.Key())
	if err != nil {
		m.log.Warn("unsupported pin", zap.String("pin", pin.Key()))
	}
	return d, err
}

func (m *Manager) setRegister(d pins.Designator, off, v uint32) error {
	if err := upd.SetRegister(m.ch, d.Addr(off), v); err != nil {
		m.log.Error("register write failed", zap.String("pin", d.Key()), zap.String("addr", conv.Hex32(d.Addr(off))), zap.Error(err))
		return err
	}
	return nil
}

// update2Bit uses the driver's masked update, atomic in one kernel call.
func (m *Manager) update2Bit(d pins.Designator, off uint32, v uint8) error {
	clr, set := stm32.Field2(d.Pin, v)
	if err := upd.UpdateRegister(m.ch, d.Addr(off), clr, set); err != nil {
		m.log.Error("register update failed", zap.String("pin", d.Key()), zap.String("addr", conv.Hex32(d.Addr(off))), zap.Error(err))
		return err
	}
	return nil
}

// update1Bit is read-modify-write.
func (m *Manager) update1Bit(d pins.Designator, off uint32, v bool) error {
	m.rmw.Lock()
	defer m.rmw.Unlock()
	addr := d.Addr(off)
	cur, err := upd.GetRegister(m.ch, addr)
	if err != nil {
		m.log.Error("register read failed", zap.String("pin", d.Key()), zap.String("addr", conv.Hex32(addr)), zap.Error(err))
		return err
	}
	if v {
		cur |= 1 << uint(d.Pin)
	} else {
		cur &^= 1 << uint(d.Pin)
	}
	return m.setRegister(d, off, cur)
}
