// services/hal/control.go
package hal

import (
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"f7hal/bus"
	"f7hal/drivers/esp32"
	"f7hal/errcode"
	"f7hal/services/hal/internal/consts"
	"f7hal/services/hal/internal/halcore"
	"f7hal/services/hal/internal/spibus"
	"f7hal/x/mathx"
	"f7hal/x/timex"
)

// ---- GPIO ----

func (s *service) gpioControl(key, method string, payload any) (any, error) {
	pin := halcore.PinKey(key)
	g := s.dev.gpio
	switch method {
	case consts.CtrlSet:
		lvl := wantBool(payload, "level")
		if err := g.SetDiscrete(pin, lvl); err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl)}, nil

	case consts.CtrlGet:
		lvl, err := g.GetDiscrete(pin)
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": boolToInt(lvl)}, nil

	case consts.CtrlConfigureOutput:
		pl := mapFromAny(payload)
		err := g.ConfigureOutput(pin, parsePull(pl["pull"]), parseSpeed(pl["speed_mhz"]),
			parseOutputType(pl["type"]), wantBool(pl, "initial"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"mode": "output"}, nil

	case consts.CtrlConfigureInput:
		pl := mapFromAny(payload)
		edge := parseEdge(pl["edge"])
		debounce, _ := asInt(pl["debounce_ms"])
		glitch, _ := asInt(pl["glitch_cycles"])
		err := g.ConfigureInput(pin, parseResistor(pl["pull"]), edge,
			time.Duration(debounce)*time.Millisecond, glitch)
		if err != nil {
			return nil, err
		}
		return map[string]any{"mode": "input", "edge": halcore.EdgeToString(edge)}, nil
	}
	return nil, errcode.New(errcode.Unsupported, "hal.gpio", "unknown method "+method)
}

// ---- SPI ----

func (s *service) spiControl(method string, payload any) (any, error) {
	pl := mapFromAny(payload)
	b := s.dev.spi
	switch method {
	case consts.CtrlExchange:
		cs := asString(pl["cs"])
		if cs == "" {
			return nil, errcode.New(errcode.Validation, "hal.spi", "cs required")
		}
		tx, err := bytesOf(pl["tx"])
		if err != nil {
			return nil, err
		}
		mode := spibus.ActiveLow
		if wantBool(pl, "active_high") {
			mode = spibus.ActiveHigh
		}
		dev, err := s.dev.SPIDevice(halcore.PinKey(cs), mode)
		if err != nil {
			return nil, err
		}
		rx, err := dev.Exchange(tx)
		if err != nil {
			return nil, err
		}
		out := make([]int, len(rx))
		for i, v := range rx {
			out[i] = int(v)
		}
		return map[string]any{"rx": out}, nil

	case consts.CtrlClock:
		clk := b.Clock()
		khz, hasSpeed := asInt(pl["speed_khz"])
		mode, hasMode := asInt(pl["mode"])
		if hasSpeed {
			clk.Speed = physic.Frequency(khz) * physic.KiloHertz
		}
		if hasMode {
			clk.Mode = spi.Mode(mode)
		}
		if hasSpeed || hasMode {
			if err := b.Configure(clk); err != nil {
				return nil, err
			}
			clk = b.Clock()
		}
		return map[string]any{
			"speed_khz": int64(clk.Speed / physic.KiloHertz),
			"mode":      int(clk.Mode),
		}, nil
	}
	return nil, errcode.New(errcode.Unsupported, "hal.spi", "unknown method "+method)
}

// bytesOf accepts a JSON-style array of numbers 0..255.
func bytesOf(v any) ([]byte, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, errcode.New(errcode.Validation, "hal.spi", "tx must be an array")
	}
	out := make([]byte, len(arr))
	for i, e := range arr {
		n, ok := asInt(e)
		if !ok || !mathx.Between(n, 0, 255) {
			return nil, errcode.New(errcode.Validation, "hal.spi", "tx holds a non-byte value")
		}
		out[i] = byte(n)
	}
	return out, nil
}

// ---- WiFi ----

func (s *service) wifiControl(method string, payload any) (any, error) {
	w := s.dev.wifi
	pl := mapFromAny(payload)
	switch method {
	case consts.CtrlScan:
		nets := w.Scan()
		out := make([]map[string]any, 0, len(nets))
		for _, n := range nets {
			out = append(out, map[string]any{
				"ssid":      n.SSID,
				"bssid":     n.BSSID,
				"auth":      n.AuthMode.String(),
				"channel":   int(n.Channel),
				"protocols": int(n.Protocols),
				"rssi":      int(n.RSSI),
			})
		}
		s.pubRet(bus.T(consts.TokHAL, consts.TokWiFi, consts.TokNetworks), map[string]any{"networks": out, "ts_ms": timex.NowMs()})
		return out, nil

	case consts.CtrlConnect:
		ssid, _ := pl["ssid"].(string)
		password, _ := pl["password"].(string)
		r := <-w.Connect(ssid, password, parseReconnection(pl["reconnect"]))
		s.publishWiFiState()
		if r.Err != nil {
			return nil, r.Err
		}
		return map[string]any{"connected": r.Status == esp32.ConnectionSuccess}, nil

	case consts.CtrlDisconnect:
		err := w.Disconnect()
		s.publishWiFiState()
		return nil, err

	case consts.CtrlStart:
		ok, err := s.dev.StartNetwork()
		s.publishWiFiState()
		if err != nil {
			return nil, err
		}
		return map[string]any{"started": ok}, nil

	case consts.CtrlAntenna:
		if _, set := pl["antenna"]; set {
			if err := w.SetAntenna(parseAntenna(pl["antenna"]), wantBool(pl, "persist")); err != nil {
				return nil, err
			}
		}
		a, err := w.Antenna()
		if err != nil {
			return nil, err
		}
		return map[string]any{"antenna": a.String()}, nil

	case consts.CtrlConfiguration:
		c, err := w.Configuration()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"antenna":             c.Antenna.String(),
			"start_network":       c.AutomaticallyStartNetwork,
			"reconnect":           c.AutomaticallyReconnect,
			"get_time_at_startup": c.GetTimeAtStartup,
			"mac":                 esp32.FormatBSSID(c.BoardMacAddress),
			"ap_mac":              esp32.FormatBSSID(c.SoftApMacAddress),
			"ntp_server":          c.NtpServer,
			"device_name":         c.DeviceName,
			"default_ap":          c.DefaultAccessPoint,
		}, nil

	case consts.CtrlBattery:
		v, err := w.BatteryLevel()
		if err != nil {
			return nil, err
		}
		return map[string]any{"volts": v}, nil

	case consts.CtrlScanFrequency:
		if ms, ok := asInt(pl["ms"]); ok {
			if err := w.SetScanFrequency(time.Duration(ms) * time.Millisecond); err != nil {
				return nil, err
			}
		}
		return map[string]any{"ms": w.ScanFrequency().Milliseconds()}, nil

	case consts.CtrlState:
		st := w.State()
		return map[string]any{
			"connected": st.Connected,
			"ip":        st.IPAddress.String(),
			"internet":  w.HasInternetAccess(),
		}, nil
	}
	return nil, errcode.New(errcode.Unsupported, "hal.wifi", "unknown method "+method)
}

// ---- Bluetooth ----

func (s *service) bluetoothControl(method string, payload any) (any, error) {
	if method != consts.CtrlStart {
		return nil, errcode.New(errcode.Unsupported, "hal.bluetooth", "unknown method "+method)
	}
	cfg, _ := mapFromAny(payload)["config"].(string)
	ok, err := s.dev.wifi.StartBluetoothStack(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{"started": ok}, nil
}
