package hal

import (
	"testing"

	"f7hal/drivers/esp32"
	"f7hal/drivers/stm32"
	"f7hal/services/hal/internal/halcore"
)

func TestParsePullAndSpeed(t *testing.T) {
	if got := parsePull("up"); got != stm32.PullUp {
		t.Fatalf("parsePull(up) got %v", got)
	}
	if got := parsePull("DOWN"); got != stm32.PullDown {
		t.Fatalf("parsePull(DOWN) got %v", got)
	}
	if got := parsePull(nil); got != stm32.PullFloat {
		t.Fatalf("parsePull(nil) got %v", got)
	}
	if got := parseSpeed(float64(100)); got != stm32.Speed100MHz {
		t.Fatalf("parseSpeed(100) got %v", got)
	}
	if got := parseSpeed("fast"); got != stm32.Speed50MHz {
		t.Fatalf("parseSpeed(fast) got %v", got)
	}
	if parseOutputType("open_drain") != stm32.OpenDrain || parseOutputType(nil) != stm32.PushPull {
		t.Fatal("parseOutputType failed")
	}
	if parseEdge("both") != halcore.EdgeBoth || parseEdge(3) != halcore.EdgeNone {
		t.Fatal("parseEdge failed")
	}
	if parseReconnection("manual") != esp32.ReconnectManual || parseAntenna("external") != esp32.AntennaExternal {
		t.Fatal("wifi enums failed")
	}
}

func TestWantBool(t *testing.T) {
	cases := []struct {
		src  any
		want bool
	}{
		{true, true},
		{"on", true},
		{"no", false},
		{float64(1), true},
		{0, false},
		{map[string]any{"level": "yes"}, true},
		{map[string]any{"other": true}, false},
		{nil, false},
	}
	for _, c := range cases {
		if got := wantBool(c.src, "level"); got != c.want {
			t.Errorf("wantBool(%v) = %v", c.src, got)
		}
	}
	if boolToInt(true) != 1 || boolToInt(false) != 0 {
		t.Fatalf("boolToInt failed")
	}
	if asString(123) != "" || asString("x") != "x" {
		t.Fatalf("asString failed")
	}
}

func TestBytesOf(t *testing.T) {
	b, err := bytesOf([]any{float64(0), 255, int64(16)})
	if err != nil || len(b) != 3 || b[1] != 0xFF || b[2] != 0x10 {
		t.Fatalf("bytesOf = %v, %v", b, err)
	}
	if _, err := bytesOf([]any{-1}); err == nil {
		t.Fatal("accepted -1")
	}
	if _, err := bytesOf("00ff"); err == nil {
		t.Fatal("accepted a string")
	}
}
