package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	"github.com/ariefcatur/b2b-commerce/internal/config"
	"github.com/ariefcatur/b2b-commerce/internal/document"
	"github.com/ariefcatur/b2b-commerce/internal/httpx"
	kafkax "github.com/ariefcatur/b2b-commerce/internal/kafka"
	"github.com/ariefcatur/b2b-commerce/internal/logging"
	"github.com/ariefcatur/b2b-commerce/internal/memstore"
	"github.com/ariefcatur/b2b-commerce/internal/postgres"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}

	if code := logging.Finish(log, "api stopped", run(cfg, log)); code != 0 {
		os.Exit(code)
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional; without it every read goes to the store.
	var cache *redisx.Cache
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer func() { err = multierr.Append(err, rdb.Close()) }()
		if perr := rdb.Ping(ctx).Err(); perr != nil {
			log.Warn("redis unreachable, serving uncached", zap.String("addr", cfg.RedisAddr), zap.Error(perr))
		}
		cache = redisx.NewCache(rdb)
	}

	var (
		pub  commerce.Publisher = commerce.NopPublisher{}
		prod *kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
		prod.Start()
		pub = &kafkax.EventPublisher{Sink: prod, Service: cfg.ServiceName, Log: log}
	} else {
		log.Warn("no kafka brokers configured, events are dropped")
	}

	engine := commerce.New(commerce.Options{
		Store:              store,
		Publisher:          pub,
		Renderer:           document.NewHTML(),
		Logger:             log.Named("engine"),
		ActiveProductLimit: cfg.ActiveProductLimit,
	})
	router := httpx.NewRouter(&httpx.API{
		Engine:    engine,
		Cache:     cache,
		Log:       log.Named("http"),
		RateLimit: cfg.RateLimitRPS,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs error
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		if prod != nil {
			// in-flight requests are done, so the inbox can be flushed
			prod.Close()
			errs = multierr.Append(errs, prod.WaitClosed(sctx))
		}
		return errs
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (commerce.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		s, err := memstore.New()
		if err != nil {
			return nil, nil, err
		}
		log.Warn("using in-memory store, data is lost on exit")
		return s, func() {}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pool, err := postgres.Connect(cctx, cfg.PostgresDSN, postgres.PoolConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(cctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}
	return &postgres.Store{DB: pool}, pool.Close, nil
}
