package consts

import "testing"

func TestTokens(t *testing.T) {
	if TokHAL != "hal" || TokGPIO != "gpio" || TokWiFi != "wifi" || TokControl != "control" {
		t.Fatal("top-level tokens changed unexpectedly")
	}
	if CtrlConfigureInput != "configure_input" || CtrlScanFrequency != "scan_frequency" {
		t.Fatal("control tokens changed unexpectedly")
	}
}
