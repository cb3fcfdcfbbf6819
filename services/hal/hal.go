// services/hal/hal.go
package hal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"f7hal/bus"
	"f7hal/drivers/esp32"
	"f7hal/errcode"
	"f7hal/services/hal/internal/consts"
	"f7hal/services/hal/internal/gpioirq"
	"f7hal/services/hal/internal/halcore"
	"f7hal/services/hal/internal/util"
	"f7hal/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run serves dev on the bus until ctx is done. It programs the start-up
// outputs, then forwards interrupts and coprocessor events and answers
// control requests:
//
//	hal/gpio/<pin>/control/<method>      set, get, configure_input, configure_output
//	hal/wifi/control/<method>            scan, connect, disconnect, start, antenna, ...
//	hal/bluetooth/control/<method>       start
//	hal/spi/control/<method>             exchange, clock
func Run(ctx context.Context, conn *bus.Connection, dev *Device) {
	s := &service{
		conn:  conn,
		dev:   dev,
		log:   dev.log.Named("service"),
		radio: make(chan radioJob, 8),
	}
	s.loop(ctx)
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

type service struct {
	conn *bus.Connection
	dev  *Device
	log  *zap.Logger

	// Coprocessor commands and SPI transfers share the bus gate and may block
	// for as long as the firmware takes; they run one at a time on the radio
	// worker, off the main loop.
	radio chan radioJob

	timer *time.Timer
}

// radioJob is one coprocessor request. msg is nil for periodic scans.
type radioJob struct {
	iface  string
	method string
	msg    *bus.Message
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	gpioSub := s.conn.Subscribe(bus.T(consts.TokHAL, consts.TokGPIO, bus.SingleLevel, consts.TokControl, bus.SingleLevel))
	wifiSub := s.conn.Subscribe(bus.T(consts.TokHAL, consts.TokWiFi, consts.TokControl, bus.SingleLevel))
	btSub := s.conn.Subscribe(bus.T(consts.TokHAL, consts.TokBluetooth, consts.TokControl, bus.SingleLevel))
	spiSub := s.conn.Subscribe(bus.T(consts.TokHAL, consts.TokSPI, consts.TokControl, bus.SingleLevel))
	defer s.conn.Unsubscribe(gpioSub)
	defer s.conn.Unsubscribe(wifiSub)
	defer s.conn.Unsubscribe(btSub)
	defer s.conn.Unsubscribe(spiSub)

	s.publishState(consts.LevelInitializing, "startup", nil)
	if err := s.dev.Initialize(); err != nil {
		s.publishState(consts.LevelDegraded, "init_incomplete", err)
	} else {
		s.publishState(consts.LevelReady, "initialized", nil)
	}
	s.publishWiFiState()

	go s.radioWorker(ctx)

	s.timer = time.NewTimer(s.dev.wifi.ScanFrequency())
	defer s.timer.Stop()

	irq := s.dev.Interrupts()
	events := s.dev.wifi.Events()

	for {
		select {
		case <-ctx.Done():
			s.publishState(consts.LevelStopped, "context_cancelled", nil)
			return

		case msg := <-gpioSub.Channel():
			// hal/gpio/<pin>/control/<method>
			if len(msg.Topic) < 5 {
				continue
			}
			key, _ := msg.Topic[2].(string)
			method, _ := msg.Topic[4].(string)
			if res, err := s.gpioControl(key, method, msg.Payload); err == nil {
				s.replyOK(msg, map[string]any{"result": res})
			} else {
				s.replyErr(msg, err)
			}

		case msg := <-wifiSub.Channel():
			s.submitRadio(radioJob{iface: consts.TokWiFi, method: methodOf(msg, 3), msg: msg})

		case msg := <-btSub.Channel():
			s.submitRadio(radioJob{iface: consts.TokBluetooth, method: methodOf(msg, 3), msg: msg})

		case msg := <-spiSub.Channel():
			s.submitRadio(radioJob{iface: consts.TokSPI, method: methodOf(msg, 3), msg: msg})

		case ev := <-irq:
			s.handleInterrupt(ev)

		case ev := <-events:
			s.handleRadioEvent(ev)

		case <-s.timer.C:
			if s.dev.NetworkStarted() {
				s.submitRadio(radioJob{iface: consts.TokWiFi, method: consts.CtrlScan})
			}
			util.ResetTimer(s.timer, s.dev.wifi.ScanFrequency())
		}
	}
}

func (s *service) submitRadio(j radioJob) {
	select {
	case s.radio <- j:
	default:
		if j.msg != nil {
			s.replyErr(j.msg, errcode.Busy)
		}
	}
}

func (s *service) radioWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.radio:
			var (
				res any
				err error
			)
			switch j.iface {
			case consts.TokBluetooth:
				res, err = s.bluetoothControl(j.method, payloadOf(j.msg))
			case consts.TokSPI:
				res, err = s.spiControl(j.method, payloadOf(j.msg))
			default:
				res, err = s.wifiControl(j.method, payloadOf(j.msg))
			}
			if j.msg == nil {
				continue
			}
			if err == nil {
				s.replyOK(j.msg, map[string]any{"result": res})
			} else {
				s.replyErr(j.msg, err)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (s *service) handleInterrupt(ev gpioirq.Event) {
	ts := timex.Ms(ev.TS)
	payload := map[string]any{"pin": ev.Key, "irq": ev.IRQ, "ts_ms": ts}
	level, err := s.dev.gpio.GetDiscrete(halcore.PinKey(ev.Key))
	if err == nil {
		payload["level"] = boolToInt(level)
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(consts.TokHAL, consts.TokGPIO, ev.Key, consts.TokInterrupt), payload, false))
	if err == nil {
		s.pubRet(bus.T(consts.TokHAL, consts.TokGPIO, ev.Key, consts.TokState), map[string]any{"level": boolToInt(level), "ts_ms": ts})
	}
}

func (s *service) handleRadioEvent(ev esp32.Event) {
	s.conn.Publish(s.conn.NewMessage(
		bus.T(consts.TokHAL, consts.TokWiFi, consts.TokEvent, ev.Kind.String()),
		map[string]any{
			"status":      ev.Status.String(),
			"payload_len": len(ev.Payload),
			"ts_ms":       timex.NowMs(),
		},
		false,
	))
	switch ev.Kind {
	case esp32.EventConnected, esp32.EventDisconnected:
		s.publishWiFiState()
	}
}

func (s *service) publishWiFiState() {
	st := s.dev.wifi.State()
	s.pubRet(bus.T(consts.TokHAL, consts.TokWiFi, consts.TokState), map[string]any{
		"connected":       st.Connected,
		"ip":              st.IPAddress.String(),
		"subnet_mask":     st.SubnetMask.String(),
		"gateway":         st.Gateway.String(),
		"internet":        s.dev.wifi.HasInternetAccess(),
		"network_started": s.dev.NetworkStarted(),
		"ts_ms":           timex.NowMs(),
	})
}

// ---- helpers ----

func (s *service) publishState(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(consts.TokHAL, consts.TokState), payload, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, err error) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "code": string(errcode.Of(err)), "error": err.Error()}, false)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func methodOf(msg *bus.Message, i int) string {
	if len(msg.Topic) <= i {
		return ""
	}
	m, _ := msg.Topic[i].(string)
	return m
}

func payloadOf(msg *bus.Message) any {
	if msg == nil {
		return nil
	}
	return msg.Payload
}
