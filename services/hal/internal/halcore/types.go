// services/hal/internal/halcore/types.go
package halcore

import "strings"

// ---- Pins ----

// Pin is a logical pin with a stable key, "PA0" through "PK15".
type Pin interface {
	Key() string
}

// PinKey is the plain Pin: the key is the pin.
type PinKey string

func (k PinKey) Key() string { return string(k) }

// DigitalOutput drives one line; used for chip selects.
type DigitalOutput interface {
	Set(level bool) error
}

// ---- GPIO abstractions ----

// Resistor is the caller-facing pull selection.
type Resistor uint8

const (
	ResistorDisabled Resistor = iota
	ResistorPullUp
	ResistorPullDown
)

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Rising reports whether e fires on a rising edge.
func (e Edge) Rising() bool { return e == EdgeRising || e == EdgeBoth }

// Falling reports whether e fires on a falling edge.
func (e Edge) Falling() bool { return e == EdgeFalling || e == EdgeBoth }

// Util
func EdgeToString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

func ParseEdge(s string) (Edge, bool) {
	switch strings.ToLower(s) {
	case "", "none":
		return EdgeNone, true
	case "rising":
		return EdgeRising, true
	case "falling":
		return EdgeFalling, true
	case "both":
		return EdgeBoth, true
	}
	return EdgeNone, false
}

func ParseResistor(s string) (Resistor, bool) {
	switch strings.ToLower(s) {
	case "", "none", "disabled":
		return ResistorDisabled, true
	case "up", "pullup":
		return ResistorPullUp, true
	case "down", "pulldown":
		return ResistorPullDown, true
	}
	return ResistorDisabled, false
}
