package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/parks-context/internal/api/http"
	"github.com/i474232898/parks-context/internal/config"
	"github.com/i474232898/parks-context/internal/logging"
	"github.com/i474232898/parks-context/internal/metrics"
	"github.com/i474232898/parks-context/internal/park"
	"github.com/i474232898/parks-context/internal/park/providers"
	"github.com/i474232898/parks-context/internal/resilience"
	"github.com/i474232898/parks-context/internal/scheduler"
	"github.com/i474232898/parks-context/internal/store"
)

func serve(cmd *cobra.Command) error {
	// Load configuration.
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	if flags.Changed("port") {
		cfg.Port = port
	}

	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.JSON = cfg.LogJSON
	lc.NoTimestamp = noTimestamp
	log := logging.New(lc)
	defer logging.Sync(log)

	// Provider health history and metrics are both fed by the access layer.
	history := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	m := metrics.New()
	observer := resilience.Observers{m, history}

	reg, err := providers.NewRegistry(cfg.Registry(), log, observer)
	if err != nil {
		return fmt.Errorf("failed to build provider clients: %w", err)
	}
	if !reg.Parks.Configured() {
		log.Warn("api_key_missing", zap.String("provider", providers.ParksProviderName),
			zap.String("message", "park lookups and park-based location resolution will fail"))
	}

	chain := park.NewFallbackChain(reg.OpenWeather, reg.OpenMeteo, log)
	aggregator := park.NewAggregator(reg.Parks, chain, reg.AirVisual,
		park.WithTimeout(cfg.ContextTimeout),
		park.WithLogger(log),
		park.WithBranchObserver(m))

	// Publishes limiter gauges and prunes the history.
	sched := scheduler.New(reg.Limiters(), m, history, cfg.StatusInterval, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "parks-context",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.ContextTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n"}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "parks-context",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Services{
		Parks:      reg.Parks,
		Weather:    chain,
		AirQuality: reg.AirVisual,
		Aggregator: aggregator,
		History:    history,
	})

	go func() {
		log.Info("server_started", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server_stopped")
	return nil
}
