// services/hal/internal/gpio/manager_test.go
package gpio

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"f7hal/drivers/stm32"
	"f7hal/drivers/upd"
	"f7hal/errcode"
	"f7hal/services/hal/internal/gpioirq"
	"f7hal/services/hal/internal/halcore"
)

func newSimManager(cfg Config) (*Manager, *upd.Sim, *upd.SimQueue) {
	sim := upd.NewSim()
	q := upd.NewSimQueue(8)
	return New(sim, q, nil, cfg, nil), sim, q
}

func TestConfigureOutputLevelBeforeMode(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()

	if err := m.ConfigureOutputDefault(halcore.PinKey("PB7"), true); err != nil {
		t.Fatal(err)
	}
	base := stm32.PortB.Base()
	ops := sim.Ops()

	bsrr, moder := -1, -1
	for i, op := range ops {
		switch op.Addr {
		case base + stm32.BSRR:
			if bsrr < 0 {
				bsrr = i
			}
		case base + stm32.MODER:
			if moder < 0 {
				moder = i
			}
		}
	}
	if bsrr < 0 || moder < 0 || bsrr > moder {
		t.Fatalf("BSRR at %d, MODER at %d; ops=%+v", bsrr, moder, ops)
	}
	if ops[bsrr].Value != 1<<7 {
		t.Fatalf("BSRR value %#x, want set bit 7", ops[bsrr].Value)
	}
	if got := sim.Peek(base+stm32.MODER) >> 14 & 3; got != uint32(stm32.ModeOutput) {
		t.Fatalf("MODER field = %d", got)
	}
	if got := sim.Peek(base+stm32.OSPEEDR) >> 14 & 3; got != uint32(stm32.Speed50MHz) {
		t.Fatalf("OSPEEDR field = %d", got)
	}
}

func TestConfigureOutputOpenDrain(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()
	base := stm32.PortD.Base()
	sim.Poke(base+stm32.OTYPER, 1<<2) // neighbour already open-drain

	if err := m.ConfigureOutput(halcore.PinKey("PD5"), stm32.PullUp, stm32.Speed100MHz, stm32.OpenDrain, false); err != nil {
		t.Fatal(err)
	}
	if got := sim.Peek(base + stm32.OTYPER); got != 1<<2|1<<5 {
		t.Fatalf("OTYPER = %#x", got)
	}
	if got := sim.Peek(base+stm32.PUPDR) >> 10 & 3; got != uint32(stm32.PullUp) {
		t.Fatalf("PUPDR field = %d", got)
	}

	// reconfigure as input: speed zeroed, output type back to push-pull
	if err := m.ConfigureInput(halcore.PinKey("PD5"), halcore.ResistorPullDown, halcore.EdgeNone, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := sim.Peek(base + stm32.OTYPER); got != 1<<2 {
		t.Fatalf("OTYPER after input = %#x", got)
	}
	if got := sim.Peek(base+stm32.OSPEEDR) >> 10 & 3; got != 0 {
		t.Fatalf("OSPEEDR after input = %d", got)
	}
	if got := sim.Peek(base+stm32.PUPDR) >> 10 & 3; got != uint32(stm32.PullDown) {
		t.Fatalf("PUPDR after input = %d", got)
	}
}

func TestRoundTrip(t *testing.T) {
	m, _, _ := newSimManager(Config{})
	defer m.Close()

	for _, key := range []string{"PA0", "PA1", "PA2", "PA3", "PC6", "PK15"} {
		inverted := key == "PA0" || key == "PA1" || key == "PA2"
		for _, v := range []bool{true, false} {
			pin := halcore.PinKey(key)
			if err := m.ConfigureOutputDefault(pin, v); err != nil {
				t.Fatal(err)
			}
			got, err := m.GetDiscrete(pin)
			if err != nil {
				t.Fatal(err)
			}
			// initial level is physical even on inverted pins; only SetDiscrete inverts
			if got != v {
				t.Fatalf("%s: ConfigureOutput(%v) read back %v", key, v, got)
			}

			if err := m.SetDiscrete(pin, v); err != nil {
				t.Fatal(err)
			}
			got, _ = m.GetDiscrete(pin)
			if want := v != inverted; got != want {
				t.Fatalf("%s: SetDiscrete(%v) physical %v, want %v", key, v, got, want)
			}
		}
	}
}

func TestSetDiscreteSingleWrite(t *testing.T) {
	m, sim, _ := newSimManager(Config{InvertedPins: []string{}})
	defer m.Close()

	if err := m.SetDiscrete(halcore.PinKey("PA1"), false); err != nil {
		t.Fatal(err)
	}
	ops := sim.Ops()
	if len(ops) != 1 || ops[0].Req != upd.ReqSetRegister || ops[0].Value != 1<<17 {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestMasked2BitIsolation(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()
	base := stm32.PortE.Base()

	for pin := 0; pin < 16; pin++ {
		for v := uint8(0); v < 4; v++ {
			const seed = 0xA5C3_96F0
			sim.Poke(base+stm32.PUPDR, seed)
			d, _ := m.dir.Resolve(fmt.Sprintf("PE%d", pin))
			if err := m.update2Bit(d, stm32.PUPDR, v); err != nil {
				t.Fatal(err)
			}
			got := sim.Peek(base + stm32.PUPDR)
			field := uint32(3) << (2 * pin)
			if got&^field != seed&^field {
				t.Fatalf("pin %d value %d disturbed neighbours: %#x -> %#x", pin, v, uint32(seed), got)
			}
			if got&field>>(2*pin) != uint32(v) {
				t.Fatalf("pin %d field = %d, want %d", pin, got&field>>(2*pin), v)
			}
		}
	}
}

func TestConcurrent1BitUpdates(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()

	var wg sync.WaitGroup
	for pin := 0; pin < 16; pin++ {
		wg.Add(1)
		go func(pin int) {
			defer wg.Done()
			d, _ := m.dir.Resolve(fmt.Sprintf("PF%d", pin))
			if err := m.update1Bit(d, stm32.OTYPER, true); err != nil {
				t.Error(err)
			}
		}(pin)
	}
	wg.Wait()
	if got := sim.Peek(stm32.PortF.Base() + stm32.OTYPER); got != 0xFFFF {
		t.Fatalf("OTYPER = %#x, lost updates", got)
	}
}

func TestUnsupportedPin(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()

	if err := m.SetDiscrete(halcore.PinKey("PZ1"), true); !errors.Is(err, errcode.UnsupportedPin) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.GetDiscrete(halcore.PinKey("PA")); !errors.Is(err, errcode.UnsupportedPin) {
		t.Fatalf("err = %v", err)
	}
	if len(sim.Ops()) != 0 {
		t.Fatal("driver touched for unsupported pin")
	}
}

func TestDriverFailurePropagates(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()
	sim.Fail(upd.ReqUpdateRegister, errors.New("EIO"))

	if err := m.ConfigureOutputDefault(halcore.PinKey("PB0"), false); !errors.Is(err, errcode.DriverIO) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigureInputFailureLeavesNoRegistration(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()
	sim.Fail(upd.ReqUpdateRegister, errors.New("EIO"))

	pin := halcore.PinKey("PC13")
	if err := m.ConfigureInput(pin, halcore.ResistorPullUp, halcore.EdgeFalling, 0, 0); !errors.Is(err, errcode.DriverIO) {
		t.Fatalf("err = %v", err)
	}
	if m.Interrupts().Registered("PC13") {
		t.Fatal("PC13 still registered after a failed configure")
	}

	// an existing registration survives a failed reconfigure
	sim.Fail(upd.ReqUpdateRegister, nil)
	if err := m.ConfigureInput(pin, halcore.ResistorPullUp, halcore.EdgeFalling, 0, 0); err != nil {
		t.Fatal(err)
	}
	sim.Fail(upd.ReqUpdateRegister, errors.New("EIO"))
	if err := m.ConfigureInput(pin, halcore.ResistorPullUp, halcore.EdgeRising, 0, 0); err == nil {
		t.Fatal("reconfigure succeeded on a failing driver")
	}
	if !m.Interrupts().Registered("PC13") {
		t.Fatal("registration dropped by a failed reconfigure")
	}
}

func TestConfigureInputInterrupts(t *testing.T) {
	got := make(chan gpioirq.Event, 4)
	m, sim, q := newSimManager(Config{OnInterrupt: func(ev gpioirq.Event) { got <- ev }})
	defer m.Close()

	pin := halcore.PinKey("PC13")
	if err := m.ConfigureInput(pin, halcore.ResistorPullUp, halcore.EdgeFalling, 0, 0); err != nil {
		t.Fatal(err)
	}
	irqs := sim.Interrupts()
	if len(irqs) != 1 {
		t.Fatalf("interrupt configs = %+v", irqs)
	}
	c := irqs[0]
	if !c.Enable || c.RisingEdge || !c.FallingEdge || c.Irq != 2<<4|13 || c.Port != 2 || c.Pin != 13 {
		t.Fatalf("config = %+v", c)
	}
	if got := sim.Peek(stm32.PortC.Base()+stm32.MODER) >> 26 & 3; got != uint32(stm32.ModeInput) {
		t.Fatalf("MODER field = %d", got)
	}
	if !m.Interrupts().Started() {
		t.Fatal("worker not started")
	}

	q.Fire(2<<4 | 13)
	select {
	case ev := <-got:
		if ev.Key != "PC13" || ev.Pin.Key() != "PC13" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no interrupt delivered")
	}

	// switching interrupts off unregisters and disables routing
	if err := m.ConfigureInput(pin, halcore.ResistorPullUp, halcore.EdgeNone, 0, 0); err != nil {
		t.Fatal(err)
	}
	if m.Interrupts().Registered("PC13") {
		t.Fatal("still registered")
	}
	irqs = sim.Interrupts()
	if len(irqs) != 2 || irqs[1].Enable {
		t.Fatalf("disable not programmed: %+v", irqs)
	}
}

func TestConfigureInputValidation(t *testing.T) {
	m, _, _ := newSimManager(Config{})
	defer m.Close()

	err := m.ConfigureInput(halcore.PinKey("PA4"), halcore.ResistorDisabled, halcore.EdgeNone, -time.Millisecond, 0)
	if !errors.Is(err, errcode.Validation) {
		t.Fatalf("err = %v", err)
	}
	// accepted but not applied
	if err := m.ConfigureInput(halcore.PinKey("PA4"), halcore.ResistorDisabled, halcore.EdgeNone, 5*time.Millisecond, 3); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeCollectsErrors(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()

	err := m.Initialize([]InitialOutput{
		{Pin: "PA0", Level: true},
		{Pin: "PQ9", Level: false},
		{Pin: "PI9", Level: false},
	})
	if !errors.Is(err, errcode.UnsupportedPin) {
		t.Fatalf("err = %v", err)
	}
	if got := sim.Peek(stm32.PortA.Base() + stm32.ODR); got&1 == 0 {
		t.Fatal("PA0 not driven high")
	}
	if got := sim.Peek(stm32.PortI.Base()+stm32.MODER) >> 18 & 3; got != uint32(stm32.ModeOutput) {
		t.Fatal("PI9 not configured after earlier failure")
	}
}

func TestOutputAsChipSelect(t *testing.T) {
	m, sim, _ := newSimManager(Config{})
	defer m.Close()

	cs := m.Output(halcore.PinKey("PB12"))
	if err := cs.Set(true); err != nil {
		t.Fatal(err)
	}
	if sim.Peek(stm32.PortB.Base()+stm32.ODR)&(1<<12) == 0 {
		t.Fatal("chip select not driven")
	}
}

func TestUnavailableChannel(t *testing.T) {
	m := New(upd.Unavailable(errors.New("ENOENT")), nil, nil, Config{}, nil)
	defer m.Close()
	if _, err := m.GetDiscrete(halcore.PinKey("PA3")); !errors.Is(err, errcode.DriverIO) {
		t.Fatalf("err = %v", err)
	}
}
