package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/deadletter"
	deadletterfile "github.com/hookrelay/hookrelay/deadletter/file"
	deadletterredis "github.com/hookrelay/hookrelay/deadletter/redis"
	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/delivery/memory"
	deliveryredis "github.com/hookrelay/hookrelay/delivery/redis"
	"github.com/hookrelay/hookrelay/dispatch"
	"github.com/hookrelay/hookrelay/replay"
	replayfile "github.com/hookrelay/hookrelay/replay/file"
	replayredis "github.com/hookrelay/hookrelay/replay/redis"
	"github.com/hookrelay/hookrelay/telemetry"
	"github.com/hookrelay/hookrelay/worker"
)

/* The worker binary drains the replay queue: it re-drives failed
 * deliveries through the processing pipeline with exponential backoff
 * and quarantines exhausted ones in the dead-letter store.
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

	metrics, err := telemetry.New()
	if err != nil {
		log.Error("creating metrics recorder", zap.Error(err))
		return
	}

	var store delivery.Store
	var queue replay.Queue
	var deadLetters deadletter.Store
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
		rdlq, err := deadletterredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("creating dead-letter store", zap.Error(err))
			return
		}
		defer rdlq.Close(ctx)
		store, queue, deadLetters = rstore, rqueue, rdlq
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory store and file adapters")
		store = memory.NewStore()
		fqueue, err := replayfile.NewQueue(cfg.ReplayQueueDir)
		if err != nil {
			log.Error("creating replay queue", zap.Error(err))
			return
		}
		fdlq, err := deadletterfile.NewStore(cfg.DeadLetterDir)
		if err != nil {
			log.Error("creating dead-letter store", zap.Error(err))
			return
		}
		queue, deadLetters = fqueue, fdlq
	}

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

	opts := cfg.ReplayOptions()
	orchestrator := replay.NewOrchestrator(store, processor, queue, opts, metrics)

	w := worker.New(queue, orchestrator, deadLetters, opts, log, metrics)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Error("worker stopped", zap.Error(err))
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
