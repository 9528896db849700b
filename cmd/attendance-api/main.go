package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qr-attendance-api/api/swagger"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/server"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/cache"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	"github.com/noah-isme/qr-attendance-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/qr-attendance-api/pkg/observability"
	"github.com/noah-isme/qr-attendance-api/pkg/storage"
)

// @title QR Attendance API
// @version 1.0.0
// @description Front-desk QR check-in/check-out ledger with dashboards and account approval.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Reports.CacheEnabled || cfg.RateLimit.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()
	loc := cfg.Attendance.Location()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	reportCache := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)

	students := repository.NewStudentRepository(db)
	ledger := repository.NewAttendanceRepository(db)
	reportsRepo := repository.NewReportRepository(db)
	users := repository.NewUserRepository(db)

	files, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	avatarBase := strings.TrimRight("/"+strings.Trim(cfg.APIPrefix, "/"), "/") + server.AvatarPath
	avatars := service.NewAvatarService(files, signer, cfg.Storage.AvatarMaxBytes, avatarBase, logr)

	attendanceSvc := service.NewAttendanceService(students, ledger, reportCache, metrics, validate, logr, loc)
	reportSvc := service.NewReportService(reportsRepo, students, reportCache, logr, service.ReportServiceConfig{
		Location:    loc,
		InsideScope: cfg.Attendance.InsideScope,
		Metrics:     metrics,
	})
	studentSvc := service.NewStudentService(students, users, reportCache, validate, logr)
	authSvc := service.NewAuthService(users, avatars, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "qr-attendance-api",
		EnforceActive:      cfg.Auth.EnforceActive,
	})
	userSvc := service.NewUserService(users, avatars, validate, logr, cfg.Auth.DefaultResetPassword)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	router := server.NewRouter(server.Deps{
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         authSvc,
		Accounts:       authSvc,
		Audit:          users,
		Limiter:        newLimiter(cfg.RateLimit, redisClient, logr),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIPrefix:      cfg.APIPrefix,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Attendance:     handler.NewAttendanceHandler(attendanceSvc),
		Reports:        handler.NewReportHandler(reportSvc),
		Students:       handler.NewStudentHandler(studentSvc, reportSvc),
		Auth:           handler.NewAuthHandler(authSvc),
		Users:          handler.NewUserHandler(userSvc),
		Avatars:        handler.NewAvatarHandler(avatars),
		Ops:            handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newLimiter returns nil when rate limiting is disabled. A reachable Redis
// shares the window across instances and falls back to a local bucket.
func newLimiter(cfg config.RateLimitConfig, client *redis.Client, logr *zap.Logger) ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	local := ratelimit.NewTokenBucket(cfg.PerMinute, cfg.PerMinute)
	if client == nil {
		return local
	}
	return ratelimit.NewFallback(ratelimit.NewRedisWindow(client, cfg.PerMinute, "ratelimit"), local, logr)
}
