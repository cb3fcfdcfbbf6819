package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"f7hal/bus"
	"f7hal/services/hal"
	"f7hal/services/heartbeat"
	"f7hal/services/hal/config"
)

func main() {
	var confFile string
	flag.StringVar(&confFile, "c", "", "Configuration file to use (board defaults if empty).")
	var monitor bool
	flag.BoolVar(&monitor, "m", false, "Log every message published under hal/#.")
	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")

	flag.Usage = func() {
		fmt.Println("usage: f7hal [OPTION...]")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if help {
		flag.Usage()
		return
	}

	cfg := config.Default()
	if confFile != "" {
		c, err := config.Parse(confFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = *c
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dev, err := hal.Open(cfg, log)
	if err != nil {
		log.Fatal("hal open failed", zap.Error(err))
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn("hal close", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(32)
	if monitor {
		mon := b.NewConnection("monitor").Subscribe(bus.T("hal", bus.MultiLevel))
		go func() {
			for m := range mon.Channel() {
				log.Info("bus", zap.Stringer("topic", m.Topic), zap.Any("payload", m.Payload))
			}
		}()
	}

	if err := heartbeat.New(log).Start(ctx, b.NewConnection("heartbeat"), heartbeat.DefaultInterval); err != nil {
		log.Warn("heartbeat", zap.Error(err))
	}

	log.Info("hal starting", zap.String("device", cfg.DevicePath), zap.String("queue", cfg.InterruptQueue))
	hal.Run(ctx, b.NewConnection("hal"), dev)
	log.Info("hal stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
