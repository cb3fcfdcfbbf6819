package esp32

import (
	"strings"

	"f7hal/errcode"
)

// StartBluetoothStack starts the Bluetooth stack with config. It reports
// true only when the driver call succeeds and the firmware answers
// CompletedOk.
func (c *Coprocessor) StartBluetoothStack(config string) (bool, error) {
	const op = "esp32.StartBluetoothStack"
	if strings.TrimSpace(config) == "" {
		return false, errcode.New(errcode.Validation, op, "empty stack configuration")
	}
	payload, err := EncodeBTStackConfig(BTStackConfig{Config: config})
	if err != nil {
		return false, errcode.Wrap(errcode.Validation, op, err)
	}
	st, err := c.sendCommand(InterfaceBluetooth, uint32(BluetoothStart), payload, nil)
	// the driver can fail the call and still report a silent coprocessor
	if st == CoprocessorNotResponding {
		return false, statusError(op, st, errcode.OperationFailed)
	}
	if err != nil {
		return false, err
	}
	return st == CompletedOk, nil
}
