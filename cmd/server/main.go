package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "phishguard/backend/internal/auth/jwt"
	"phishguard/backend/internal/config"
	"phishguard/backend/internal/dispatch"
	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/engine"
	"phishguard/backend/internal/health"
	"phishguard/backend/internal/logger"
	"phishguard/backend/internal/monitoring"
	"phishguard/backend/internal/scoring"
	"phishguard/backend/internal/service"
	"phishguard/backend/internal/smtp"
	"phishguard/backend/internal/storage/memory"
	sqlstore "phishguard/backend/internal/storage/sql"
	httptransport "phishguard/backend/internal/transport/http"
)

// main 启动同时包含 HTTP API 与 SMTP 接收端的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
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
	log.Info("starting phishguard server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Bool("smtp_enabled", cfg.SMTP.Enabled),
	)

	// 初始化存储层
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

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化 Webhook 投递器
	dispatcher := dispatch.NewDispatcher(store, dispatch.Config{
		Workers:       cfg.Dispatcher.Workers,
		QueueSize:     cfg.Dispatcher.QueueSize,
		RatePerSecond: cfg.Dispatcher.RatePerSecond,
		Burst:         cfg.Dispatcher.Burst,
		BackoffBase:   cfg.Dispatcher.BackoffBase,
		BackoffCap:    cfg.Dispatcher.BackoffCap,
	}, metrics, log)

	// 初始化规则引擎
	evaluator := engine.NewEvaluator(log)
	executor := engine.NewActionExecutor(store, dispatcher, log)
	ruleEngine := engine.NewRuleEngine(store, evaluator, executor, log)

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, dispatcher.QueueDepth, dispatcher.QueueCapacity(), log)

	// 初始化告警系统：告警作为 system_alert 事件走同一条投递链路
	alertManager := monitoring.NewAlertManager(dispatcher, cfg.Alerts.OwnerID, log)
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0))
	alertManager.AddRule(monitoring.QueueSaturationRule(dispatcher.QueueDepth, cfg.Dispatcher.QueueSize))

	// 初始化服务层
	ruleService := service.NewRuleService(store, ruleEngine)
	webhookService := service.NewWebhookService(store, dispatcher)
	emailService := service.NewEmailService(store, ruleEngine, dispatcher, metrics, log, cfg.Rules.HighRiskThreshold)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
	)

	// 创建 HTTP 服务器
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

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 投递工作协程随进程生命周期运行
	dispatcher.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器（可选）
	var smtpServer *gosmtp.Server
	if cfg.SMTP.Enabled {
		resolver := smtp.NewStaticResolver(cfg.SMTP.Mailboxes)
		backend := smtp.NewBackend(emailService, resolver, scoring.NewHeuristicScorer(), log)

		smtpServer = gosmtp.NewServer(backend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 10 * 1024 * 1024
		smtpServer.MaxRecipients = 50

		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 告警监控 goroutine
	group.Go(func() error {
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		// 排空已入队的投递任务
		dispatcher.Stop()

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
