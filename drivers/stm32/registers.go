// Package stm32 provides the GPIO register map and field encodings of the
// STM32F7 family, as addressed through the user-space peripheral driver.
package stm32

// Port is a GPIO bank, A through K.
type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	PortF
	PortG
	PortH
	PortI
	PortJ
	PortK

	NumPorts = int(PortK) + 1
)

// PinsPerPort is the width of every GPIO bank.
const PinsPerPort = 16

const (
	// GPIOA lives at the bottom of the AHB1 window; banks are 1 KiB apart.
	gpioABase  uint32 = 0x4002_0000
	portStride uint32 = 0x400
)

// --- Register offsets from a bank's base address ---
const (
	MODER   uint32 = 0x00 // 2 bits/pin
	OTYPER  uint32 = 0x04 // 1 bit/pin
	OSPEEDR uint32 = 0x08 // 2 bits/pin
	PUPDR   uint32 = 0x0C // 2 bits/pin
	IDR     uint32 = 0x10 // R
	ODR     uint32 = 0x14 // R/W
	BSRR    uint32 = 0x18 // W: bit N sets, bit N+16 resets
)

// Letter returns the bank letter, 'A' for PortA.
func (p Port) Letter() byte { return 'A' + byte(p) }

func (p Port) String() string { return "GPIO" + string(p.Letter()) }

// Valid reports whether p names a bank present on the F7.
func (p Port) Valid() bool { return p <= PortK }

// Base returns the register base address of the bank.
func (p Port) Base() uint32 { return gpioABase + uint32(p)*portStride }

// PortFromLetter maps 'A'..'K' to a Port.
func PortFromLetter(c byte) (Port, bool) {
	if c < 'A' || c > 'K' {
		return 0, false
	}
	return Port(c - 'A'), true
}

// Mode is the MODER field value.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeOutput
	ModeAlternateFunction
	ModeAnalog
)

// Pull is the PUPDR field value.
type Pull uint8

const (
	PullFloat Pull = iota
	PullUp
	PullDown
)

// Speed is the OSPEEDR field value.
type Speed uint8

const (
	Speed2MHz Speed = iota
	Speed25MHz
	Speed50MHz
	Speed100MHz
)

// OutputType is the OTYPER bit.
type OutputType uint8

const (
	PushPull OutputType = iota
	OpenDrain
)

// Field2 returns the clear and set masks for a 2-bit field of pin.
func Field2(pin int, value uint8) (clear, set uint32) {
	shift := uint(pin) * 2
	return 3 << shift, uint32(value&3) << shift
}

// BSRRValue returns the BSRR word that drives pin to level.
func BSRRValue(pin int, level bool) uint32 {
	if level {
		return 1 << uint(pin)
	}
	return 1 << (uint(pin) + 16)
}
