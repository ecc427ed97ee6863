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

	"contact-form-service/config"
	v1 "contact-form-service/internal/delivery/http/v1"
	"contact-form-service/internal/delivery/http/middleware"
	"contact-form-service/internal/domain"
	"contact-form-service/internal/repository/memory"
	"contact-form-service/internal/repository/redisstore"
	"contact-form-service/internal/usecase"
	"contact-form-service/pkg/email"
	"contact-form-service/pkg/logger"
	"contact-form-service/pkg/redis"
	"contact-form-service/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// 2. Setup Logger
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting contact form service", "port", cfg.Port)
	secLogger := security.InitSecurityLogger("contact-form-service", security.Environment())
	defer secLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Setup Redis (optional)
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.Connect(ctx, redis.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword})
		if err != nil {
			logger.Log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// 4. Setup Form State Store
	var store domain.FormStateStore
	if redisClient != nil {
		store = redisstore.NewFormStateStore(redisClient, cfg.SessionTTL)
	} else {
		mem := memory.NewFormStateStore(cfg.SessionTTL, time.Minute)
		defer mem.Close()
		store = mem
	}

	// 5. Setup Notifier
	var notifier domain.SubmissionNotifier = usecase.LogNotifier{}
	if cfg.SMTPConfigured() {
		notifier = email.NewEmailService(cfg)
	} else {
		logger.Log.Warn("SMTP not configured - accepted submissions are only logged")
	}

	// 6. Setup UseCases
	contactUC := usecase.NewContactUsecase(store, notifier)

	// 7. Setup Rate Limiter
	limiter := middleware.NewRateLimiter(redisClient)
	if redisClient == nil {
		limiter.StartCleanup(ctx, 5*time.Minute)
	}

	// 8. Setup Router
	var redisHealth v1.HealthFunc
	if redisClient != nil {
		redisHealth = func(c *gin.Context) error {
			return redis.HealthCheck(c.Request.Context(), redisClient)
		}
	}
	router := v1.NewRouter(v1.RouterDeps{
		ContactUC:   contactUC,
		RateLimiter: limiter,
		RedisHealth: redisHealth,
		Config:      cfg,
	})

	// 9. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Listen failed", "error", err)
			stop()
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}
