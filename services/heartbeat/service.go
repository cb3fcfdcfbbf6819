// Package heartbeat publishes a periodic liveness message for the HAL process.
package heartbeat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"f7hal/bus"
	"f7hal/x/mathx"
	"f7hal/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("hal", "heartbeat")
)

const (
	DefaultInterval = 10 * time.Second
	minIntervalS    = 1
	maxIntervalS    = 3600
)

type Service struct {
	log     *zap.Logger
	started time.Time
}

func New(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log.Named("heartbeat")}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, interval time.Duration) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat stopping")
			return
		case t := <-tick.C:
			conn.Publish(conn.NewMessage(topicHeartbeat, map[string]any{
				"ts_ms":    timex.Ms(t),
				"uptime_s": int64(t.Sub(s.started) / time.Second),
			}, false))
		case msg := <-cfgSub.Channel():
			m, ok := msg.Payload.(map[string]any)
			if !ok {
				continue
			}
			iv, ok := m["interval"].(float64)
			if !ok {
				continue
			}
			secs := mathx.Clamp(int(iv), minIntervalS, maxIntervalS)
			tick.Reset(time.Duration(secs) * time.Second)
			s.log.Info("heartbeat interval set", zap.Int("seconds", secs))
		}
	}
}

// Start runs the heartbeat until ctx is done. A non-positive interval
// selects DefaultInterval.
func (s *Service) Start(ctx context.Context, conn *bus.Connection, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.started = time.Now()
	go s.serviceLoop(ctx, conn, interval)
	return nil
}
