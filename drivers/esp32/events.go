package esp32

import (
	"go.uber.org/zap"

	"f7hal/errcode"
	"f7hal/x/conv"
)

// EventKind names an asynchronous firmware notification.
type EventKind uint8

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventInterfaceStarted
	EventInterfaceStopped
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventInterfaceStarted:
		return "interface_started"
	case EventInterfaceStopped:
		return "interface_stopped"
	}
	var b [20]byte
	return "event(" + string(conv.Utoa(b[:], uint64(k))) + ")"
}

// Event is one notification. Payload is passed through undecoded.
type Event struct {
	Kind    EventKind
	Status  Status
	Payload []byte
}

func eventKind(fn WiFiFunction) (EventKind, bool) {
	switch fn {
	case WiFiConnectEvent:
		return EventConnected, true
	case WiFiDisconnectEvent:
		return EventDisconnected, true
	case WiFiStartInterfaceEvent:
		return EventInterfaceStarted, true
	case WiFiStopInterfaceEvent:
		return EventInterfaceStopped, true
	}
	return 0, false
}

// HandleEvent routes a firmware notification to Events. Function codes
// that are not events are rejected. A full channel drops the event.
func (c *Coprocessor) HandleEvent(fn WiFiFunction, st Status, payload []byte) error {
	kind, ok := eventKind(fn)
	if !ok {
		var b [20]byte
		return errcode.New(errcode.Unsupported, "esp32.HandleEvent",
			"wifi event not implemented ("+string(conv.Utoa(b[:], uint64(fn)))+")")
	}
	ev := Event{Kind: kind, Status: st, Payload: append([]byte(nil), payload...)}
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
		c.log.Warn("wifi event dropped", zap.Stringer("kind", kind))
	}
	return nil
}

// Events delivers notifications in arrival order.
func (c *Coprocessor) Events() <-chan Event { return c.events }

// DroppedEvents counts notifications lost to a full channel.
func (c *Coprocessor) DroppedEvents() uint64 { return c.dropped.Load() }
