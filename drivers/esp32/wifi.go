package esp32

import (
	"go.uber.org/zap"

	"f7hal/errcode"
)

// Network is one scanned access point as presented to callers.
type Network struct {
	SSID      string
	BSSID     string
	AuthMode  AuthMode
	Channel   uint8
	Protocols uint8
	RSSI      int8
}

// ConnectionStatus is the outcome reported by Connect.
type ConnectionStatus uint8

const (
	ConnectionSuccess ConnectionStatus = iota
	ConnectionUnspecifiedFailure
)

type ConnectionResult struct {
	Status ConnectionStatus
	Err    error
}

// Scan lists visible access points in firmware order. Failures are logged
// and yield an empty list.
func (c *Coprocessor) Scan() []Network {
	result := make([]byte, MaxResultLength)
	st, err := c.sendCommand(InterfaceWiFi, uint32(WiFiGetAccessPoints), nil, result)
	if err != nil || st != CompletedOk {
		c.log.Warn("error getting access points", zap.Stringer("status", st), zap.Error(err))
		return []Network{}
	}
	aps, err := DecodeAccessPointList(result)
	if err != nil {
		c.log.Warn("malformed access point list", zap.Error(err))
		return []Network{}
	}
	out := make([]Network, 0, len(aps))
	for _, ap := range aps {
		out = append(out, Network{
			SSID:      ap.SSID,
			BSSID:     FormatBSSID(ap.BSSID),
			AuthMode:  ap.AuthMode,
			Channel:   ap.Channel,
			Protocols: ap.Protocols,
			RSSI:      ap.RSSI,
		})
	}
	return out
}

// ConnectToAccessPoint joins ssid. An empty password selects an open
// network. On success the addresses come from the reply at offsets 0, 4
// and 8; on any failure they are zeroed and the adapter is marked
// disconnected. Only a non-responding coprocessor, or a failed driver
// call, produces an error alongside false.
func (c *Coprocessor) ConnectToAccessPoint(ssid, password string, r Reconnection) (bool, error) {
	const op = "esp32.ConnectToAccessPoint"
	if ssid == "" {
		return false, errcode.New(errcode.Validation, op, "invalid SSID")
	}
	payload, err := EncodeWiFiCredentials(WiFiCredentials{NetworkName: ssid, Password: password})
	if err != nil {
		return false, errcode.Wrap(errcode.Validation, op, err)
	}

	result := make([]byte, MaxResultLength)
	st, err := c.sendCommand(InterfaceWiFi, uint32(WiFiConnectToAccessPoint), payload, result)
	if err == nil && st == CompletedOk {
		res, derr := DecodeConnectResult(result)
		if derr == nil {
			c.setState(ConnectionState{
				IPAddress:  res.IPAddress,
				SubnetMask: res.SubnetMask,
				Gateway:    res.Gateway,
				Connected:  true,
				Reconnect:  r,
			})
			c.log.Info("wifi connected", zap.String("ssid", ssid), zap.Stringer("ip", res.IPAddress))
			return true, nil
		}
		err = derr
	}

	s := disconnectedState()
	s.Reconnect = r
	c.setState(s)
	if st == CoprocessorNotResponding {
		return false, statusError(op, st, errcode.OperationFailed)
	}
	return false, err
}

// Connect runs ConnectToAccessPoint off the caller's goroutine. The channel
// receives exactly one result and is then closed.
func (c *Coprocessor) Connect(ssid, password string, r Reconnection) <-chan ConnectionResult {
	out := make(chan ConnectionResult, 1)
	go func() {
		defer close(out)
		ok, err := c.ConnectToAccessPoint(ssid, password, r)
		c.internet.Store(ok)
		if ok {
			out <- ConnectionResult{Status: ConnectionSuccess}
			return
		}
		out <- ConnectionResult{Status: ConnectionUnspecifiedFailure, Err: err}
	}()
	return out
}

// HasInternetAccess reports the outcome of the last Connect.
func (c *Coprocessor) HasInternetAccess() bool { return c.internet.Load() }

// StartNetwork starts the WiFi interface using whatever the firmware has
// stored.
func (c *Coprocessor) StartNetwork() (bool, error) {
	st, err := c.sendCommand(InterfaceWiFi, uint32(WiFiStartNetwork), nil, nil)
	if err != nil {
		return false, err
	}
	return st == CompletedOk, nil
}

// Disconnect drops the current link and clears the addresses.
func (c *Coprocessor) Disconnect() error {
	const op = "esp32.Disconnect"
	st, err := c.sendCommand(InterfaceWiFi, uint32(WiFiDisconnect), nil, nil)
	if err != nil {
		return err
	}
	if st != CompletedOk {
		return statusError(op, st, errcode.OperationFailed)
	}
	c.mu.Lock()
	r := c.state.Reconnect
	c.state = disconnectedState()
	c.state.Reconnect = r
	c.mu.Unlock()
	c.internet.Store(false)
	return nil
}

// SetAntenna switches the WiFi antenna. Every failure is OperationFailed.
func (c *Coprocessor) SetAntenna(a Antenna, persist bool) error {
	const op = "esp32.SetAntenna"
	if a != AntennaOnBoard {
		a = AntennaExternal
	}
	payload := EncodeSetAntennaRequest(SetAntennaRequest{Antenna: a, Persist: persist})
	result := make([]byte, MaxResultLength)
	st, err := c.sendCommand(InterfaceWiFi, uint32(WiFiSetAntenna), payload, result)
	if err != nil {
		return errcode.Wrap(errcode.OperationFailed, op, err)
	}
	if st != CompletedOk {
		return errcode.New(errcode.OperationFailed, op, "failed to change the antenna in use: "+st.String())
	}
	return nil
}

// Antenna reads the antenna in use from the stored configuration.
func (c *Coprocessor) Antenna() (Antenna, error) {
	cfg, err := c.Configuration()
	if err != nil {
		return AntennaOnBoard, err
	}
	if cfg.Antenna == AntennaOnBoard {
		return AntennaOnBoard, nil
	}
	return AntennaExternal, nil
}

// State returns a copy of the current connection state.
func (c *Coprocessor) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coprocessor) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
