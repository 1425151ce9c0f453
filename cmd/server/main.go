package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"exam-editor/internal/auth"
	"exam-editor/internal/config"
	apphttp "exam-editor/internal/http"
	"exam-editor/internal/repository"
	redisrepo "exam-editor/internal/repository/redis"
	"exam-editor/internal/repository/sqlite"
	"exam-editor/internal/service"
	"exam-editor/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	generated, err := cfg.ResolveSecrets()
	if err != nil {
		logger.Fatalf("auth secrets: %v", err)
	}
	for _, key := range generated {
		logger.Warnf("%s not set; using a random per-process value (sessions and tokens will not survive a restart)", key)
	}
	if cfg.Auth.AdminSecretCode == "" {
		logger.Warn("auth admin secret code not set; admin registration is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	sessionRepo, closeSessions, err := buildSessionRepository(cfg, db)
	if err != nil {
		logger.Fatalf("setup session store: %v", err)
	}
	defer closeSessions()
	if err := sessionRepo.Init(ctx); err != nil {
		logger.Fatalf("init session repository: %v", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("token issuer: %v", err)
	}

	userService := service.NewUserService(userRepo, cfg.Auth.AdminSecretCode, cfg.Auth.BcryptCost)
	sessionService := service.NewSessionService(sessionRepo, userService, cfg.Session.TTL, logger)
	authService := service.NewAuthService(userService, sessionService, issuer, logger)

	go sessionService.RunSweeper(ctx, cfg.Session.SweepInterval)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}
	submissionService := service.NewSubmissionService(storageSvc, cfg.Storage.Bucket, cfg.Storage.KeyPrefix)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Auth:          authService,
		Submissions:   submissionService,
		Logger:        logger,
		CookieName:    cfg.Session.CookieName,
		SessionSecret: cfg.Auth.SessionSecret,
		SessionTTL:    cfg.Session.TTL,
		SecureCookies: cfg.Production(),
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Registry:      registry,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s (%s mode)", cfg.Server.Addr, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildSessionRepository(cfg config.Config, db *sql.DB) (repository.SessionRepository, func(), error) {
	switch cfg.Session.Backend {
	case "", config.SessionBackendSQLite:
		return sqlite.NewSessionRepository(db), func() {}, nil
	case config.SessionBackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisrepo.NewSessionRepository(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// buildStorage returns nil when no bucket is configured; submission routes then answer 503.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage bucket not set; submission archive disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
