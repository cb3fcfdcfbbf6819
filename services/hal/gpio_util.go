package hal

import (
	"strings"

	"f7hal/drivers/esp32"
	"f7hal/drivers/stm32"
	"f7hal/services/hal/internal/halcore"
)

// Payload helpers for control requests. Payloads arrive as decoded JSON
// (map[string]any, float64 numbers) or as Go values from in-process callers.

func parsePull(v any) stm32.Pull {
	switch strings.ToLower(asString(v)) {
	case "up", "pullup":
		return stm32.PullUp
	case "down", "pulldown":
		return stm32.PullDown
	default:
		return stm32.PullFloat
	}
}

func parseResistor(v any) halcore.Resistor {
	r, _ := halcore.ParseResistor(asString(v))
	return r
}

func parseEdge(v any) halcore.Edge {
	e, _ := halcore.ParseEdge(asString(v))
	return e
}

// parseSpeed takes the output slew rate in MHz; unknown values give 50.
func parseSpeed(v any) stm32.Speed {
	mhz, _ := asInt(v)
	switch mhz {
	case 2:
		return stm32.Speed2MHz
	case 25:
		return stm32.Speed25MHz
	case 100:
		return stm32.Speed100MHz
	default:
		return stm32.Speed50MHz
	}
}

func parseOutputType(v any) stm32.OutputType {
	if strings.EqualFold(asString(v), "open_drain") {
		return stm32.OpenDrain
	}
	return stm32.PushPull
}

func parseReconnection(v any) esp32.Reconnection {
	if strings.EqualFold(asString(v), "manual") {
		return esp32.ReconnectManual
	}
	return esp32.ReconnectAutomatic
}

func parseAntenna(v any) esp32.Antenna {
	if strings.EqualFold(asString(v), "external") {
		return esp32.AntennaExternal
	}
	return esp32.AntennaOnBoard
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mapFromAny(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case float32:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

// wantBool extracts a boolean from either a map payload (by key) or a scalar.
// Recognises true/false, 1/0, on/off, yes/no (case-insensitive).
func wantBool(src any, key string) bool {
	if m, ok := src.(map[string]any); ok {
		if v, ok := m[key]; ok {
			return wantBool(v, "")
		}
		return false
	}
	switch v := src.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true
		default:
			return false
		}
	default:
		n, ok := asInt(v)
		return ok && n != 0
	}
}
