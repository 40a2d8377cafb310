package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Serve loads config from the environment, builds the App and serves until
// SIGINT or SIGTERM.
func Serve(parent context.Context) error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)
	for _, key := range cfg.IgnoredEnv {
		log.Warn("config.env.ignored", "key", key)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
