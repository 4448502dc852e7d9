package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/documents"
	"askmydocs-backend/internal/functions"
	"askmydocs-backend/internal/services/health"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/config"
	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
	"askmydocs-backend/internal/uploads"
	"askmydocs-backend/internal/usage"
)

const (
	apiPrefix = "/api/v1"

	rateGroupAPI       = "API"
	rateGroupFunctions = "FUNCTIONS"
)

// RouterDeps holds the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        auth.Verifier
	Health          *health.Service
	DocumentHandler *documents.Handler
	UploadHandler   *uploads.Handler
	UsageHandler    *usage.Handler
	FunctionHandler *functions.Handler
	// Files and Shares serve local buckets under /files and /public.
	Files  gin.HandlerFunc
	Shares gin.HandlerFunc
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		scoped(apiPrefix, middleware.CORS(deps.Config.CORSAllowOrigin)),
	)

	limiter := middleware.NewRateLimiter(nil)
	rules := rateRules(deps.Config)
	limit := func(group string) gin.HandlerFunc {
		return middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: group,
			Limiter:      limiter,
			Rules:        rules,
		})
	}

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	authed := api.Group("",
		middleware.Auth(deps.Verifier, deps.Config.PublicAPIKey, middleware.EnvelopeFailure),
		limit(rateGroupAPI),
	)
	registerMeRoutes(authed)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(authed)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(authed)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(authed)
	}

	if deps.FunctionHandler != nil {
		fn := r.Group("", middleware.FunctionCORS(deps.Config.AllowedOrigin), limit(rateGroupFunctions))
		deps.FunctionHandler.RegisterRoutes(fn,
			middleware.Auth(deps.Verifier, deps.Config.PublicAPIKey, middleware.FlatFailure))
	}

	if deps.Files != nil {
		r.GET("/files/*key", deps.Files)
	}
	if deps.Shares != nil {
		r.GET("/public/*key", deps.Shares)
	}
	r.GET("/metrics", metrics.Handler())

	return r
}

// scoped applies h only to requests under prefix. It runs on unmatched
// routes too, so CORS preflights reach it.
func scoped(prefix string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			h(c)
			return
		}
		c.Next()
	}
}

func rateRules(cfg config.Config) map[string]middleware.RateLimitRule {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	fnBurst := burst / 2
	if fnBurst < 1 {
		fnBurst = 1
	}
	return map[string]middleware.RateLimitRule{
		rateGroupAPI:       {Rate: cfg.RateLimitRPS, Burst: burst},
		rateGroupFunctions: {Rate: cfg.RateLimitRPS / 2, Burst: fnBurst},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

// ReadHeaderTimeout bounds slow clients on the standalone server.
const ReadHeaderTimeout = 10 * time.Second
