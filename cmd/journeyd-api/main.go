package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/loopmsg/journeyd/pkg/cmd"
	"github.com/loopmsg/journeyd/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "journeyd-api",
		Usage:                 "Create and manage journeys and enrollments",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing journeyd API")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "journeyd-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient, err := cmd.NewRedisClient(command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			api, err := NewAPI(ctx, APIConfig{
				Logger:         logger,
				Persistence:    store,
				EventBus:       eventBus,
				Redis:          redisClient,
				CommerceURL:    command.String("commerce-api-url"),
				CommerceToken:  command.String("commerce-api-token"),
				MessagingURL:   command.String("messaging-api-url"),
				MessagingToken: command.String("messaging-api-token"),
			})
			if err != nil {
				return err
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
