package v1

import (
	"net/http"
	"time"

	"contact-form-service/config"
	"contact-form-service/internal/delivery/http/middleware"
	"contact-form-service/internal/delivery/http/response"
	"contact-form-service/internal/delivery/http/web"
	"contact-form-service/internal/domain"
	"contact-form-service/pkg/logger"
	"contact-form-service/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports the status of an optional dependency
type HealthFunc func(*gin.Context) error

type RouterDeps struct {
	ContactUC   domain.ContactUsecase
	RateLimiter *middleware.RateLimiter
	RedisHealth HealthFunc // nil when Redis is not configured
	Config      *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.RegisterValidators(v); err != nil {
			logger.Log.Error("Failed to register validators", "error", err)
		}
	}

	cfg := deps.Config
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	writes := []gin.HandlerFunc{
		limiter.Middleware(middleware.SubmitRateLimitConfig(cfg.RateLimitSubmitThreshold, cfg.RateLimitWindow())),
	}

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeadersMiddleware(cfg.CookieSecure))
	r.Use(middleware.ErrorHandler())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Health Check
	v1.GET("/health", func(c *gin.Context) {
		status := map[string]string{"redis": "disabled"}
		if deps.RedisHealth != nil {
			if err := deps.RedisHealth(c); err != nil {
				status["redis"] = "down"
				response.Error(c, http.StatusServiceUnavailable, "Dependency unavailable", status)
				return
			}
			status["redis"] = "up"
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	// Session scoped routes
	sessions := r.Group("",
		middleware.Session(sessionTTL(cfg), cfg.CookieSecure),
		middleware.CSRFMiddleware(cfg.CookieSecure),
	)
	web.NewContactPageHandler(sessions, deps.ContactUC, writes...)
	NewContactHandler(sessions.Group("/v1"), deps.ContactUC, writes...)

	return r
}

func sessionTTL(cfg *config.Config) time.Duration {
	if cfg.SessionTTL <= 0 {
		return 30 * time.Minute
	}
	return cfg.SessionTTL
}
