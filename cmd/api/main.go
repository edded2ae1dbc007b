package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/delivery/memory"
	deliveryredis "github.com/hookrelay/hookrelay/delivery/redis"
	"github.com/hookrelay/hookrelay/dispatch"
	chihandlers "github.com/hookrelay/hookrelay/internal/http/chi"
	"github.com/hookrelay/hookrelay/replay"
	replayfile "github.com/hookrelay/hookrelay/replay/file"
	replayredis "github.com/hookrelay/hookrelay/replay/redis"
	"github.com/hookrelay/hookrelay/telemetry"
)

const shutdownTimeout = 30 * time.Second

/* The api binary owns the inbound side: it authenticates, de-dups,
 * persists and routes deliveries, and parks retryable failures on the
 * replay queue. The worker binary drains that queue.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	exporter, err := telemetry.NewExporter()
	if err != nil {
		log.Error("creating metrics exporter", zap.Error(err))
		return
	}
	defer exporter.Shutdown(context.Background())

	metrics, err := telemetry.New()
	if err != nil {
		log.Error("creating metrics recorder", zap.Error(err))
		return
	}

	var store delivery.Store
	var queue replay.Queue
	if cfg.RedisAddr != "" {
		rstore, err := deliveryredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("creating delivery store", zap.Error(err))
			return
		}
		defer rstore.Close(ctx)
		rqueue, err := replayredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("creating replay queue", zap.Error(err))
			return
		}
		defer rqueue.Close(ctx)
		store, queue = rstore, rqueue
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory store and file queue")
		store = memory.NewStore()
		fqueue, err := replayfile.NewQueue(cfg.ReplayQueueDir)
		if err != nil {
			log.Error("creating replay queue", zap.Error(err))
			return
		}
		queue = fqueue
	}

	// Handler subscriptions are wired here at startup; the registry is
	// immutable once frozen.
	registry := dispatch.NewRegistry()
	registry.Freeze()

	processor := delivery.NewProcessor(
		delivery.StaticSecretSource(cfg.WebhookSecret),
		store,
		delivery.PassthroughUnitOfWork{},
		dispatch.NewRouter(registry),
		delivery.SystemClock{},
		metrics,
	)

	r := chihandlers.Handlers(processor, queue, cfg.Provider, exporter.Handler())
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	log.Info("listening", zap.String("port", cfg.Port))
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Error("serving", zap.Error(err))
		return
	}
	if err := <-errShutdown; err != nil {
		log.Error("shutting down", zap.Error(err))
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	default:
		errShutdown <- fmt.Errorf("forcing server close: %w", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}
