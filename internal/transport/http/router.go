package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "phishguard/backend/internal/auth/jwt"
	"phishguard/backend/internal/config"
	"phishguard/backend/internal/health"
	"phishguard/backend/internal/middleware"
	"phishguard/backend/internal/monitoring"
	"phishguard/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	rules    *service.RuleService
	webhooks *service.WebhookService
	emails   *service.EmailService
}

// currentOwner 从上下文取出认证后的租户 ID
func currentOwner(c *gin.Context) (string, bool) {
	ownerID, exists := c.Get("ownerID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return "", false
	}
	return ownerID.(string), true
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	RuleService    *service.RuleService
	WebhookService *service.WebhookService
	EmailService   *service.EmailService
	JWTManager     *jwtpkg.Manager
	Metrics        *monitoring.Metrics
	Health         *health.HealthChecker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	mon := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(mon.PanicRecovery())
	router.Use(mon.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 请求体大小限制：规则和 Webhook 定义都是小 JSON
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := &Handler{
		rules:    deps.RuleService,
		webhooks: deps.WebhookService,
		emails:   deps.EmailService,
	}

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		Success(c, deps.Health.CheckHealth())
	})
	router.GET("/live", gin.WrapH(deps.Health.Handler()))
	router.GET("/ready", gin.WrapH(deps.Health.Handler()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// V1 API
	v1 := router.Group("/v1")
	v1.Use(jwtAuth.RequireAuth())
	{
		// ========== Rule Routes ==========
		ruleRoutes := v1.Group("/rules")
		{
			ruleRoutes.POST("", handler.createRule)
			ruleRoutes.GET("", handler.listRules)
			ruleRoutes.GET("/stats/summary", handler.ruleStats)
			ruleRoutes.GET("/:id", handler.getRule)
			ruleRoutes.PUT("/:id", handler.updateRule)
			ruleRoutes.DELETE("/:id", handler.deleteRule)
			ruleRoutes.POST("/:id/toggle", handler.toggleRule)
			ruleRoutes.POST("/:id/test", handler.testRule)
		}

		// ========== Webhook Routes ==========
		webhookRoutes := v1.Group("/webhooks")
		{
			webhookRoutes.POST("", handler.createWebhook)
			webhookRoutes.GET("", handler.listWebhooks)
			webhookRoutes.GET("/stats/summary", handler.webhookStats)
			webhookRoutes.GET("/:id", handler.getWebhook)
			webhookRoutes.PUT("/:id", handler.updateWebhook)
			webhookRoutes.DELETE("/:id", handler.deleteWebhook)
			webhookRoutes.POST("/:id/test", handler.testWebhook)
			webhookRoutes.GET("/:id/events", handler.webhookDeliveries)
		}

		// ========== Email Routes ==========
		emailRoutes := v1.Group("/emails")
		{
			emailRoutes.POST("", handler.ingestEmail)
			emailRoutes.GET("", handler.listEmails)
			emailRoutes.GET("/:id", handler.getEmail)
		}

		// ========== List Routes ==========
		v1.GET("/blocked-senders", handler.listBlockedSenders)
		v1.GET("/trusted-domains", handler.listTrustedDomains)
	}

	return router
}
