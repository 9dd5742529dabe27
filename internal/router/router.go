package router

import (
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/cache"
	"github.com/fanzfinance/internal/config"
	financehandlers "github.com/fanzfinance/internal/http/handlers/finance"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	h := financehandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fanz"
	}
	var counter WindowCounter
	if cache.Enabled() {
		counter = cache.IncrWindow
	}
	paymentRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payments", redisPrefix),
		WindowSeconds: cfg.Server.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Server.RateLimit.MaxRequests,
	}
	payoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payouts", redisPrefix),
		WindowSeconds: cfg.Server.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Server.RateLimit.MaxRequests,
	}

	// 中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))

	// 无需鉴权
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(ServiceJWTAuthMiddleware(cfg.JWT), ServiceRBACMiddleware(c.Authz))
	{
		apiV1.POST("/payments", RateLimitMiddleware(counter, paymentRule, KeyByServiceAndJSONField("payer_id")), h.ProcessPayment)
		apiV1.POST("/payouts", RateLimitMiddleware(counter, payoutRule, KeyByServiceAndJSONField("creator_id")), h.RequestPayout)
		apiV1.GET("/summary", h.GetSummary)
		apiV1.GET("/gateways", h.ListGateways)

		transactions := apiV1.Group("/transactions")
		{
			transactions.GET("", h.ListTransactions)
			transactions.GET("/:transaction_no", h.GetTransaction)
			transactions.GET("/:transaction_no/ledger", h.GetTransactionLedger)
			transactions.POST("/:transaction_no/cancel", h.CancelTransaction)
			transactions.POST("/:transaction_no/dispute", h.DisputeTransaction)
			transactions.POST("/:transaction_no/refund", h.RefundTransaction)
			transactions.POST("/:transaction_no/ledger/reconcile", h.ReconcileTransactionLedger)
		}

		apiV1.GET("/ledger/entries", h.ListLedgerEntries)

		accounts := apiV1.Group("/accounts")
		{
			accounts.GET("/:user_id", h.GetAccount)
			accounts.PUT("/:user_id/verification", h.UpdateVerification)
		}

		roles := apiV1.Group("/authz/roles")
		{
			roles.GET("", h.ListRoles)
			roles.GET("/:role/policies", h.GetRolePolicies)
			roles.POST("/:role/policies", h.GrantRolePolicy)
			roles.DELETE("/:role/policies", h.RevokeRolePolicy)
		}
	}

	return r
}
