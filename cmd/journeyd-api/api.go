// Package main provides the journeyd API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/eventbus"
	"github.com/loopmsg/journeyd/pkg/otelhelper"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/providers/messaging"
	"github.com/loopmsg/journeyd/pkg/segment"
	"github.com/loopmsg/journeyd/pkg/sendwindow"
	"github.com/loopmsg/journeyd/pkg/trigger"
	"github.com/loopmsg/journeyd/pkg/validation"
	"github.com/loopmsg/journeyd/pkg/web"
)

type APIConfig struct {
	Logger         *slog.Logger
	Persistence    persistence.Persistence
	EventBus       eventbus.EventBus
	Redis          *redis.Client
	CommerceURL    string
	CommerceToken  string
	MessagingURL   string
	MessagingToken string
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	validate    *validator.Validate
	cache       *cache.Cache
}

func NewAPI(ctx context.Context, cfg APIConfig) (*API, error) {
	tracer, err := otelhelper.NewTracer(ctx, "journeyd-api")
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

	return &API{
		logger:      cfg.Logger,
		persistence: cfg.Persistence,
		engine:      eng,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		cache:       segmentCache,
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.engine, a.validate, validation.NewValidator(), a.cache)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("journeyd API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
