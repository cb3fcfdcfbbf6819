// services/hal/internal/consts/consts.go
package consts

// Top-level topics
const (
	TokHAL       = "hal"
	TokGPIO      = "gpio"
	TokWiFi      = "wifi"
	TokBluetooth = "bluetooth"
	TokSPI       = "spi"
	TokState     = "state"
	TokControl   = "control"
	TokEvent     = "event"
	TokInterrupt = "interrupt"
	TokNetworks  = "networks"
)

// GPIO control verbs
const (
	CtrlSet             = "set"
	CtrlGet             = "get"
	CtrlConfigureInput  = "configure_input"
	CtrlConfigureOutput = "configure_output"
)

// SPI control verbs
const (
	CtrlExchange = "exchange"
	CtrlClock    = "clock"
)

// Radio control verbs
const (
	CtrlScan          = "scan"
	CtrlConnect       = "connect"
	CtrlDisconnect    = "disconnect"
	CtrlStart         = "start"
	CtrlAntenna       = "antenna"
	CtrlConfiguration = "configuration"
	CtrlBattery       = "battery"
	CtrlScanFrequency = "scan_frequency"
	CtrlState         = "state"
)

// Service levels on hal/state
const (
	LevelInitializing = "initializing"
	LevelReady        = "ready"
	LevelDegraded     = "degraded"
	LevelStopped      = "stopped"
)
