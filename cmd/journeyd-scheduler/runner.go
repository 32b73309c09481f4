// Package main provides the journeyd scheduler daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/eventbus"
	"github.com/loopmsg/journeyd/pkg/otelhelper"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/providers/messaging"
	"github.com/loopmsg/journeyd/pkg/scheduler"
	"github.com/loopmsg/journeyd/pkg/segment"
	"github.com/loopmsg/journeyd/pkg/sendwindow"
	"github.com/loopmsg/journeyd/pkg/trigger"
)

type RunnerConfig struct {
	Logger         *slog.Logger
	Persistence    persistence.Persistence
	EventBus       eventbus.EventBus
	Redis          *redis.Client
	CommerceURL    string
	CommerceToken  string
	MessagingURL   string
	MessagingToken string
	Interval       time.Duration
	Workers        int
}

// Runner owns the scheduler lifecycle: start, wait for a signal, drain.
type Runner struct {
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
}

func NewRunner(ctx context.Context, cfg RunnerConfig) (*Runner, error) {
	tracer, err := otelhelper.NewTracer(ctx, "journeyd-scheduler")
	if err != nil {
		return nil, err
	}

	commerceProvider := commerce.NewHTTPProvider(cfg.CommerceURL, cfg.CommerceToken, cfg.Logger)
	messagingProvider := messaging.NewHTTPProvider(cfg.MessagingURL, cfg.MessagingToken, cfg.Logger)
	segmentCache := cache.NewCache(cfg.Redis, cfg.Logger)

	triggers := trigger.NewEvaluator(
		cfg.Persistence,
		segment.NewEvaluator(cfg.Logger),
		commerceProvider,
		segmentCache,
		cfg.Logger,
	)

	eng := engine.New(engine.Config{
		Persistence: cfg.Persistence,
		Commerce:    commerceProvider,
		Messaging:   messagingProvider,
		Triggers:    triggers,
		RateLimiter: sendwindow.NewRateLimiter(cfg.Redis, cfg.Logger),
		Cache:       segmentCache,
		EventBus:    cfg.EventBus,
		Tracer:      tracer,
		Logger:      cfg.Logger,
	})

	sched := scheduler.New(scheduler.Config{
		Engine:      eng,
		Persistence: cfg.Persistence,
		Commerce:    commerceProvider,
		Logger:      cfg.Logger,
		Interval:    cfg.Interval,
		Workers:     cfg.Workers,
	})

	return &Runner{logger: cfg.Logger, scheduler: sched}, nil
}

// Run starts the scheduler and blocks until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.scheduler.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		r.logger.InfoContext(ctx, "Shutting down scheduler", "signal", sig.String())
	case <-ctx.Done():
		r.logger.InfoContext(ctx, "Shutting down scheduler", "reason", ctx.Err())
	}

	return r.scheduler.Stop(ctx)
}
