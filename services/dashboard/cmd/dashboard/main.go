package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"omniversal/pkg/bus"
	"omniversal/pkg/telemetry"
	"omniversal/services/dashboard"
)

type config struct {
	StatePath string        `env:"KERNEL_STATE_PATH,default=omniversal_state.json"`
	Interval  time.Duration `env:"DASHBOARD_INTERVAL,default=5s"`
	Once      bool          `env:"DASHBOARD_ONCE,default=false"`
	NATSURL   string        `env:"NATS_URL"`
	LogLevel  string        `env:"LOG_LEVEL,default=info"`
	LogFormat string        `env:"LOG_FORMAT,default=console"`
}

func main() {
	if err := run("omniversal-dashboard"); err != nil {
		log.Fatal().Err(err).Msg("dashboard")
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stderr)

	renderer, err := dashboard.NewRenderer(time.Now)
	if err != nil {
		return err
	}

	var events dashboard.Subscriber
	if cfg.NATSURL != "" && !cfg.Once {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.EnsureStream(bus.DefaultStream); err != nil {
			return err
		}
		events = b
	}

	watcher, err := dashboard.NewWatcher(cfg.StatePath, cfg.Interval, renderer, os.Stdout, logger, events)
	if err != nil {
		return err
	}
	if cfg.Once {
		return watcher.RenderOnce()
	}

	logger.Info().Str("path", cfg.StatePath).Dur("interval", cfg.Interval).Msg("watching kernel state")
	return watcher.Run(ctx)
}
