package heartbeat

import (
	"context"
	"testing"
	"time"

	"f7hal/bus"
)

func TestHeartbeatPublishes(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(topicHeartbeat)
	defer conn.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := New(nil).Start(ctx, conn, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-sub.Channel():
		p, _ := m.Payload.(map[string]any)
		if _, ok := p["ts_ms"].(int64); !ok {
			t.Fatalf("payload = %v", m.Payload)
		}
		if _, ok := p["uptime_s"].(int64); !ok {
			t.Fatalf("payload = %v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestHeartbeatIntervalClamped(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(topicHeartbeat)
	defer conn.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = New(nil).Start(ctx, conn, time.Hour)

	// retained so the loop sees it however late it subscribes; 0 clamps to 1s
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, map[string]any{"interval": float64(0)}, true))
	select {
	case <-sub.Channel():
	case <-time.After(3 * time.Second):
		t.Fatal("interval not applied")
	}
}
