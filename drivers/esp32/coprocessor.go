package esp32

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"f7hal/drivers/upd"
	"f7hal/errcode"
	"f7hal/x/mathx"
)

// MaxResultLength is the largest reply the driver will copy back.
const MaxResultLength = 4000

const (
	DefaultScanFrequency = 5 * time.Second
	MinScanFrequency     = time.Second
	MaxScanFrequency     = 60 * time.Second
)

// Transport carries one command to the firmware. spibus.Bus implements it.
type Transport interface {
	Execute(cmd *upd.CoprocessorCommand, payload, result []byte) error
}

// ConnectionState is the adapter's view of its current link.
type ConnectionState struct {
	IPAddress  net.IP
	SubnetMask net.IP
	Gateway    net.IP
	Connected  bool
	Reconnect  Reconnection
}

func disconnectedState() ConnectionState {
	return ConnectionState{
		IPAddress:  net.IPv4zero.To4(),
		SubnetMask: net.IPv4zero.To4(),
		Gateway:    net.IPv4zero.To4(),
	}
}

type Coprocessor struct {
	t   Transport
	log *zap.Logger

	mu       sync.RWMutex
	state    ConnectionState
	scanFreq time.Duration

	internet atomic.Bool

	events  chan Event
	dropped atomic.Uint64
}

// New returns a coprocessor on t. eventBuf sizes the Events channel.
func New(t Transport, log *zap.Logger, eventBuf int) *Coprocessor {
	if log == nil {
		log = zap.NewNop()
	}
	if eventBuf <= 0 {
		eventBuf = 16
	}
	return &Coprocessor{
		t:        t,
		log:      log,
		state:    disconnectedState(),
		scanFreq: DefaultScanFrequency,
		events:   make(chan Event, eventBuf),
	}
}

// sendCommand issues one blocking command. The error is non-nil only when
// the driver call itself failed; the firmware verdict is in the status.
func (c *Coprocessor) sendCommand(iface Interface, fn uint32, payload, result []byte) (Status, error) {
	cmd := upd.CoprocessorCommand{
		Interface:  uint8(iface),
		Function:   fn,
		StatusCode: uint32(CompletedOk),
		Block:      1,
	}
	if err := c.t.Execute(&cmd, payload, result); err != nil {
		c.log.Error("coprocessor command failed",
			zap.Uint8("iface", uint8(iface)), zap.Uint32("fn", fn), zap.Error(err))
		return Status(cmd.StatusCode), err
	}
	st := Status(cmd.StatusCode)
	if st != CompletedOk {
		c.log.Debug("coprocessor status",
			zap.Uint8("iface", uint8(iface)), zap.Uint32("fn", fn), zap.Stringer("status", st))
	}
	return st, nil
}

// Configuration reads the firmware's stored settings.
func (c *Coprocessor) Configuration() (SystemConfiguration, error) {
	const op = "esp32.Configuration"
	result := make([]byte, MaxResultLength)
	st, err := c.sendCommand(InterfaceSystem, uint32(SystemGetConfiguration), nil, result)
	if err != nil {
		return SystemConfiguration{}, err
	}
	if st != CompletedOk {
		return SystemConfiguration{}, statusError(op, st, errcode.OperationFailed)
	}
	cfg, err := DecodeSystemConfiguration(result)
	if err != nil {
		return SystemConfiguration{}, errcode.Wrap(errcode.OperationFailed, op, err)
	}
	return cfg, nil
}

// BatteryLevel returns the charge level in volts.
func (c *Coprocessor) BatteryLevel() (float32, error) {
	const op = "esp32.BatteryLevel"
	var result [4]byte
	st, err := c.sendCommand(InterfaceSystem, uint32(SystemGetBatteryChargeLevel), nil, result[:])
	if err != nil {
		return 0, err
	}
	if st != CompletedOk {
		return 0, statusError(op, st, errcode.OperationFailed)
	}
	mv, err := DecodeBatteryLevel(result[:])
	if err != nil {
		return 0, errcode.Wrap(errcode.OperationFailed, op, err)
	}
	return float32(mv) / 1000, nil
}

// ScanFrequency is the delay between network scans.
func (c *Coprocessor) ScanFrequency() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanFreq
}

func (c *Coprocessor) SetScanFrequency(d time.Duration) error {
	if !mathx.Between(d, MinScanFrequency, MaxScanFrequency) {
		return errcode.New(errcode.Validation, "esp32.SetScanFrequency",
			"scan frequency must be between "+MinScanFrequency.String()+" and "+MaxScanFrequency.String())
	}
	c.mu.Lock()
	c.scanFreq = d
	c.mu.Unlock()
	return nil
}

// statusError maps NotResponding to DeviceNotResponding and everything
// else to fallback.
func statusError(op string, st Status, fallback errcode.Code) error {
	if st == CoprocessorNotResponding {
		return errcode.New(errcode.DeviceNotResponding, op, "coprocessor is not responding")
	}
	return errcode.New(fallback, op, st.String())
}
