// Command server boots the position engine: it wires the store, oracle,
// relayer, settlement coordinator, risk monitor, WebSocket hub, and HTTP
// API together and serves them until signaled to stop.
//
// Grounded on the teacher's cmd/server/main.go bootstrap shape (load
// config, construct every subsystem in dependency order, register HTTP
// routes, serve with graceful shutdown) reworked from the forex broker's
// B-Book/LP/FIX stack onto the position engine's store/oracle/relayer/
// coordinator/monitor stack.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rtx-labs/posengine/api"
	"github.com/rtx-labs/posengine/auth"
	"github.com/rtx-labs/posengine/cache"
	"github.com/rtx-labs/posengine/config"
	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/events"
	"github.com/rtx-labs/posengine/internal/core"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/internal/middleware"
	"github.com/rtx-labs/posengine/logging"
	"github.com/rtx-labs/posengine/monitoring"
	"github.com/rtx-labs/posengine/oms"
	"github.com/rtx-labs/posengine/oracle"
	"github.com/rtx-labs/posengine/orders"
	"github.com/rtx-labs/posengine/relayer"
	"github.com/rtx-labs/posengine/risk"
	"github.com/rtx-labs/posengine/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("[server] failed to load configuration: %v", err)
		os.Exit(2)
	}

	logger := logging.NewLogger(parseLogLevel(cfg.LogLevel), os.Stdout)
	logger.Info("starting position engine", logging.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.NewPostgres(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", err)
		os.Exit(1)
	}
	defer store.Close()

	priceCache := newPriceCache(cfg, logger)
	mockSource := oracle.NewMock()
	mockSource.SetPrice("BTC-PERP", 65_000*fp.Scale)
	orc := oracle.NewCached(mockSource, priceCache)
	if cfg.PriceOracleSource != "mock" {
		logger.Warn("no live oracle source wired; falling back to the mock source", logging.String("requested", cfg.PriceOracleSource))
	}

	rl := relayer.NewRetrying(relayer.NewMock(), 3, 250*time.Millisecond)

	broadcaster := core.NewBroadcaster[events.Envelope]()
	coordinator := oms.NewCoordinator(ctx, store, rl, broadcaster, 0, logger)
	evaluator := orders.NewEvaluator()
	monitor := risk.NewMonitor(store, orc, evaluator, broadcaster, cfg.RiskAlertThresholdPPM, logger)

	authSvc := auth.NewService(cfg.Admin.Username, []byte(cfg.Admin.PasswordHash), []byte(cfg.JWT.Secret), logger)
	hub := ws.NewHub(broadcaster, authSvc, logger)

	health := monitoring.NewHealthChecker("v1.0.0")
	health.RegisterCheck("database", func() monitoring.ComponentHealth {
		return dbHealth(ctx, store)
	})
	health.RegisterCheck("oracle", func() monitoring.ComponentHealth {
		return oracleHealth(ctx, orc)
	})
	health.RegisterCheck("relayer", func() monitoring.ComponentHealth {
		return monitoring.ComponentHealth{Status: monitoring.StatusHealthy, Message: "relayer configured", LastChecked: time.Now()}
	})
	health.RegisterCheck("memory", monitoring.MemoryHealthCheck(80))
	health.RegisterCheck("goroutines", monitoring.GoroutineHealthCheck(10_000))
	monitoring.SetGlobalHealthChecker(health)
	metrics := monitoring.NewMetricsCollector()

	go runScanLoop(ctx, monitor, coordinator, cfg.ScanInterval, logger)

	router := api.NewServer(coordinator, store, monitor, authSvc, hub, health, metrics, logger)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	defer rateLimiter.Stop()
	rateLimited := rateLimiter.MiddlewareWithExclusions([]string{"/health", "/ready", "/metrics"})

	handler := logging.PanicRecoveryMiddleware(logger)(
		logging.HTTPLoggingMiddleware(logger)(
			logging.CORSLoggingMiddleware(logger)(
				rateLimited(router),
			),
		),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", logging.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// runScanLoop ticks the risk monitor's Scan directly, rather than its Run
// helper, so nominated liquidations can be carried out through the
// settlement coordinator's per-owner serialization.
func runScanLoop(ctx context.Context, monitor *risk.Monitor, coordinator *oms.Coordinator, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			result, err := monitor.Scan(ctx)
			if err != nil {
				logger.Error("risk monitor scan failed", err)
				continue
			}
			monitoring.RecordScan(float64(time.Since(start).Milliseconds()), result.Scanned, result.SkippedSymbols)
			for _, alert := range result.Alerts {
				monitoring.RecordRiskAlert(alert.Symbol)
			}
			for _, liq := range result.Liquidations {
				monitoring.RecordLiquidationNomination(liq.Symbol)
				if _, err := coordinator.Liquidate(ctx, liq); err != nil {
					logger.Error("liquidation settlement failed", err, logging.Any("position", liq.PositionID))
				}
			}
		}
	}
}

func newPriceCache(cfg *config.Config, logger *logging.Logger) cache.Cache {
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:      cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "posengine",
	})
	if err != nil {
		logger.Warn("redis unavailable, falling back to an in-process price cache", logging.Any("error", err.Error()))
		return cache.NewMemoryCache(64<<20, 10_000)
	}
	return redisCache
}

func dbHealth(ctx context.Context, store *database.Postgres) monitoring.ComponentHealth {
	if _, err := store.GetOpenPositions(ctx); err != nil {
		return monitoring.ComponentHealth{Status: monitoring.StatusUnhealthy, Message: err.Error(), LastChecked: time.Now()}
	}
	return monitoring.ComponentHealth{Status: monitoring.StatusHealthy, Message: "reachable", LastChecked: time.Now()}
}

func oracleHealth(ctx context.Context, orc oracle.Oracle) monitoring.ComponentHealth {
	if _, err := orc.Price(ctx, "BTC-PERP"); err != nil {
		return monitoring.ComponentHealth{Status: monitoring.StatusDegraded, Message: err.Error(), LastChecked: time.Now()}
	}
	return monitoring.ComponentHealth{Status: monitoring.StatusHealthy, Message: "reachable", LastChecked: time.Now()}
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}
