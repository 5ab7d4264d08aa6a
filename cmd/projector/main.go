package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/config"
	kafkax "github.com/ariefcatur/b2b-commerce/internal/kafka"
	"github.com/ariefcatur/b2b-commerce/internal/logging"
	"github.com/ariefcatur/b2b-commerce/internal/projector"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	cfg.ServiceName += "-projector"
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		fmt.Fprintln(os.Stderr, "config: the projector needs kafka brokers and a redis address")
		os.Exit(2)
	}

	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}

	if code := logging.Finish(log, "projector stopped", run(cfg, log)); code != 0 {
		os.Exit(code)
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { err = multierr.Append(err, rdb.Close()) }()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	svc := &projector.Service{
		Cache:       redisx.NewCache(rdb),
		Log:         log,
		ServiceName: cfg.ServiceName,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, projector.Topics, cfg.ProjectorWorkers, log.Named("consumer"))

	log.Info("projector started",
		zap.String("group", cfg.ProjectorGroup),
		zap.Strings("topics", projector.Topics),
		zap.Int("workers", cfg.ProjectorWorkers),
	)
	if err := cons.Start(ctx, svc.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("projector drained")
	return nil
}
