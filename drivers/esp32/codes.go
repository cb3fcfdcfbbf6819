// Package esp32 drives the WiFi/Bluetooth coprocessor through the
// peripheral driver's command channel.
package esp32

import "f7hal/x/conv"

// Interface selects the coprocessor subsystem a command addresses.
type Interface uint8

const (
	InterfaceNone Interface = iota
	InterfaceWiFi
	InterfaceBluetooth
	InterfaceSystem
)

// WiFiFunction codes. Events share the space with commands.
type WiFiFunction uint32

const (
	WiFiStart WiFiFunction = iota + 1
	WiFiConnectToAccessPoint
	WiFiDisconnect
	WiFiGetAccessPoints
	WiFiSetAntenna
	WiFiStartNetwork
	WiFiConnectEvent
	WiFiDisconnectEvent
	WiFiStartInterfaceEvent
	WiFiStopInterfaceEvent
)

type BluetoothFunction uint32

const (
	BluetoothStart BluetoothFunction = iota + 1
)

type SystemFunction uint32

const (
	SystemGetConfiguration SystemFunction = iota + 1
	SystemGetBatteryChargeLevel
)

// Status is the firmware's completion code.
type Status uint32

const (
	CompletedOk Status = iota
	InvalidInterface
	InvalidFunction
	InvalidPayload
	ResultBufferTooSmall
	CoprocessorNotResponding
	CoprocessorReturnedError
	EventDataPending
)

func (s Status) String() string {
	switch s {
	case CompletedOk:
		return "completed_ok"
	case InvalidInterface:
		return "invalid_interface"
	case InvalidFunction:
		return "invalid_function"
	case InvalidPayload:
		return "invalid_payload"
	case ResultBufferTooSmall:
		return "result_buffer_too_small"
	case CoprocessorNotResponding:
		return "coprocessor_not_responding"
	case CoprocessorReturnedError:
		return "coprocessor_returned_error"
	case EventDataPending:
		return "event_data_pending"
	}
	var b [20]byte
	return "status(" + string(conv.Utoa(b[:], uint64(s))) + ")"
}

// Antenna is the WiFi antenna in use.
type Antenna uint8

const (
	AntennaOnBoard Antenna = iota
	AntennaExternal
)

func (a Antenna) String() string {
	if a == AntennaExternal {
		return "external"
	}
	return "onboard"
}

// AuthMode is the access point's authentication scheme as reported by the
// firmware.
type AuthMode uint8

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA2Enterprise
)

func (a AuthMode) String() string {
	switch a {
	case AuthOpen:
		return "open"
	case AuthWEP:
		return "wep"
	case AuthWPAPSK:
		return "wpa_psk"
	case AuthWPA2PSK:
		return "wpa2_psk"
	case AuthWPAWPA2PSK:
		return "wpa_wpa2_psk"
	case AuthWPA2Enterprise:
		return "wpa2_enterprise"
	}
	return "unknown"
}

// Reconnection is the policy after an unplanned disconnect.
type Reconnection uint8

const (
	ReconnectAutomatic Reconnection = iota
	ReconnectManual
)
