package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "phishguard/backend/internal/auth/jwt"
	"phishguard/backend/internal/config"
	"phishguard/backend/internal/dispatch"
	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/engine"
	"phishguard/backend/internal/health"
	"phishguard/backend/internal/logger"
	"phishguard/backend/internal/monitoring"
	"phishguard/backend/internal/service"
	"phishguard/backend/internal/storage/memory"
	sqlstore "phishguard/backend/internal/storage/sql"
	httptransport "phishguard/backend/internal/transport/http"
)

// main 启动仅包含 HTTP API 的服务（邮件记录由上游分析系统推送）。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting phishguard api",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	var store domain.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()

	dispatcher := dispatch.NewDispatcher(store, dispatch.Config{
		Workers:       cfg.Dispatcher.Workers,
		QueueSize:     cfg.Dispatcher.QueueSize,
		RatePerSecond: cfg.Dispatcher.RatePerSecond,
		Burst:         cfg.Dispatcher.Burst,
		BackoffBase:   cfg.Dispatcher.BackoffBase,
		BackoffCap:    cfg.Dispatcher.BackoffCap,
	}, metrics, log)

	evaluator := engine.NewEvaluator(log)
	executor := engine.NewActionExecutor(store, dispatcher, log)
	ruleEngine := engine.NewRuleEngine(store, evaluator, executor, log)

	healthChecker := health.NewHealthChecker(store, dispatcher.QueueDepth, dispatcher.QueueCapacity(), log)

	ruleService := service.NewRuleService(store, ruleEngine)
	webhookService := service.NewWebhookService(store, dispatcher)
	emailService := service.NewEmailService(store, ruleEngine, dispatcher, metrics, log, cfg.Rules.HighRiskThreshold)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		RuleService:    ruleService,
		WebhookService: webhookService,
		EmailService:   emailService,
		JWTManager:     jwtManager,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)

	go func() {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	dispatcher.Stop()

	log.Info("server exited cleanly")
}
