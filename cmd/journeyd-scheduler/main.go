package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loopmsg/journeyd/pkg/cmd"
	"github.com/loopmsg/journeyd/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "journeyd-scheduler",
		Usage:                 "Advance enrollments and run scheduled segment scans",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for caching and rate limiting",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "commerce-api-url",
				Usage:    "Base URL of the commerce platform API",
				Required: true,
				Sources:  cli.EnvVars("COMMERCE_API_URL"),
			},
			&cli.StringFlag{
				Name:    "commerce-api-token",
				Usage:   "Bearer token for the commerce platform API",
				Sources: cli.EnvVars("COMMERCE_API_TOKEN"),
			},
			&cli.StringFlag{
				Name:     "messaging-api-url",
				Usage:    "Base URL of the messaging platform API",
				Required: true,
				Sources:  cli.EnvVars("MESSAGING_API_URL"),
			},
			&cli.StringFlag{
				Name:    "messaging-api-token",
				Usage:   "Bearer token for the messaging platform API",
				Sources: cli.EnvVars("MESSAGING_API_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between scheduler passes",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("SCHEDULER_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Maximum concurrent enrollment ticks",
				Value:   10,
				Sources: cli.EnvVars("SCHEDULER_WORKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = "scheduler-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("journeyd-scheduler").With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing journeyd scheduler")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "journeyd-scheduler", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient, err := cmd.NewRedisClient(command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			runner, err := NewRunner(ctx, RunnerConfig{
				Logger:         logger,
				Persistence:    store,
				EventBus:       eventBus,
				Redis:          redisClient,
				CommerceURL:    command.String("commerce-api-url"),
				CommerceToken:  command.String("commerce-api-token"),
				MessagingURL:   command.String("messaging-api-url"),
				MessagingToken: command.String("messaging-api-token"),
				Interval:       command.Duration("interval"),
				Workers:        command.Int("workers"),
			})
			if err != nil {
				return err
			}

			return runner.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
