// Package upd talks to the user-space peripheral driver (/dev/upd): register
// access, GPIO interrupt routing, SPI transfers and coprocessor commands, all
// carried as ioctls over fixed-layout structs.
package upd

import (
	"runtime"
	"unsafe"

	"f7hal/errcode"
)

// DefaultDevice is the node exposed by the board's kernel.
const DefaultDevice = "/dev/upd"

// Request selects the ioctl operation.
type Request uintptr

const iocBase Request = 0x7500

const (
	ReqGetRegister Request = iocBase + iota + 1
	ReqSetRegister
	ReqUpdateRegister
	RegisterGpioIrq
	SPIData
	Esp32Command
)

func (r Request) String() string {
	switch r {
	case ReqGetRegister:
		return "get_register"
	case ReqSetRegister:
		return "set_register"
	case ReqUpdateRegister:
		return "update_register"
	case RegisterGpioIrq:
		return "register_gpio_irq"
	case SPIData:
		return "spi_data"
	case Esp32Command:
		return "esp32_command"
	}
	return "unknown"
}

// Channel is an open handle on the driver. Ioctl returns the raw kernel
// error; the helpers below attach codes.
type Channel interface {
	Ioctl(req Request, arg unsafe.Pointer) error
	Close() error
}

// ---------------- ioctl argument layouts ----------------

type RegisterValue struct {
	Address uint32
	Value   uint32
}

// RegisterUpdate clears ClearBits then sets SetBits in one kernel call.
type RegisterUpdate struct {
	Address   uint32
	ClearBits uint32
	SetBits   uint32
}

type GpioInterruptConfig struct {
	Enable      bool
	Port        int32
	Pin         int32
	Priority    int32
	RisingEdge  bool
	FallingEdge bool
	Irq         int32
}

type SPICommand struct {
	TxBuffer     unsafe.Pointer
	RxBuffer     unsafe.Pointer
	BufferLength int32
	BusNumber    int32
}

type CoprocessorCommand struct {
	Interface     uint8
	Function      uint32
	StatusCode    uint32
	Payload       unsafe.Pointer
	PayloadLength uint32
	Result        unsafe.Pointer
	ResultLength  uint32
	Block         uint8
}

// ---------------- helpers ----------------

func GetRegister(ch Channel, addr uint32) (uint32, error) {
	r := RegisterValue{Address: addr}
	if err := ch.Ioctl(ReqGetRegister, unsafe.Pointer(&r)); err != nil {
		return 0, errcode.Wrap(errcode.DriverIO, "upd.GetRegister", err)
	}
	return r.Value, nil
}

func SetRegister(ch Channel, addr, value uint32) error {
	r := RegisterValue{Address: addr, Value: value}
	return errcode.Wrap(errcode.DriverIO, "upd.SetRegister", ch.Ioctl(ReqSetRegister, unsafe.Pointer(&r)))
}

func UpdateRegister(ch Channel, addr, clear, set uint32) error {
	r := RegisterUpdate{Address: addr, ClearBits: clear, SetBits: set}
	return errcode.Wrap(errcode.DriverIO, "upd.UpdateRegister", ch.Ioctl(ReqUpdateRegister, unsafe.Pointer(&r)))
}

func RegisterInterrupt(ch Channel, cfg GpioInterruptConfig) error {
	return errcode.Wrap(errcode.DriverIO, "upd.RegisterInterrupt", ch.Ioctl(RegisterGpioIrq, unsafe.Pointer(&cfg)))
}

// Transfer runs one SPI transaction. Either buffer may be nil; when both are
// present they must be the same length. Buffers stay pinned for exactly the
// duration of the kernel call.
func Transfer(ch Channel, tx, rx []byte) error {
	n := len(tx)
	if tx == nil {
		n = len(rx)
	} else if rx != nil && len(rx) != len(tx) {
		return errcode.New(errcode.Validation, "upd.Transfer", "tx and rx length differ")
	}
	if n == 0 {
		return nil
	}

	var p runtime.Pinner
	defer p.Unpin()

	cmd := SPICommand{BufferLength: int32(n)}
	if len(tx) > 0 {
		p.Pin(&tx[0])
		cmd.TxBuffer = unsafe.Pointer(&tx[0])
	}
	if len(rx) > 0 {
		p.Pin(&rx[0])
		cmd.RxBuffer = unsafe.Pointer(&rx[0])
	}
	return errcode.Wrap(errcode.DriverIO, "upd.Transfer", ch.Ioctl(SPIData, unsafe.Pointer(&cmd)))
}

// Execute sends a coprocessor command. cmd.Payload/Result are filled from the
// given slices and pinned for the call; the firmware status is left in
// cmd.StatusCode.
func Execute(ch Channel, cmd *CoprocessorCommand, payload, result []byte) error {
	var p runtime.Pinner
	defer p.Unpin()

	cmd.Payload, cmd.PayloadLength = nil, 0
	cmd.Result, cmd.ResultLength = nil, 0
	if len(payload) > 0 {
		p.Pin(&payload[0])
		cmd.Payload = unsafe.Pointer(&payload[0])
		cmd.PayloadLength = uint32(len(payload))
	}
	if len(result) > 0 {
		p.Pin(&result[0])
		cmd.Result = unsafe.Pointer(&result[0])
		cmd.ResultLength = uint32(len(result))
	}
	err := ch.Ioctl(Esp32Command, unsafe.Pointer(cmd))
	// the pointers are dead once the call returns
	cmd.Payload, cmd.Result = nil, nil
	return errcode.Wrap(errcode.DriverIO, "upd.Execute", err)
}

// ---------------- unavailable ----------------

type unavailable struct{ err error }

// Unavailable returns a Channel whose every call fails with err. It stands in
// for a driver that could not be opened so that callers fail individually.
func Unavailable(err error) Channel { return unavailable{err: err} }

func (u unavailable) Ioctl(Request, unsafe.Pointer) error { return u.err }
func (u unavailable) Close() error                        { return nil }
