// Command api serves the Natours booking REST API.
//
// @title                       Natours booking API
// @version                     1.0
// @description                 Tours, reviews, users and bookings.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/natours/booking-api/internal/api"
	"github.com/natours/booking-api/internal/api/handler"
	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/service"
	mongodb "github.com/natours/booking-api/internal/infrastructure/db/mongo"
	redisdb "github.com/natours/booking-api/internal/infrastructure/db/redis"
	"github.com/natours/booking-api/internal/infrastructure/mail"
	"github.com/natours/booking-api/internal/infrastructure/payment"
	"github.com/natours/booking-api/internal/infrastructure/storage"
	"github.com/natours/booking-api/internal/pkg/config"
	"github.com/natours/booking-api/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	paymentTimeout  = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("load configuration")
	}
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.Production(),
		Service: "natours-api",
	})

	if err := run(ctx, cfg); err != nil {
		l := logger.Get()
		l.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	repos := mongodb.NewRepositories(db)
	if err := repos.EnsureIndexes(ctx); err != nil {
		return err
	}

	checks := map[string]handler.Check{
		"mongodb": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
	}

	var limiter ports.RateLimiter = middleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redisdb.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	store, err := imageStore(ctx, cfg)
	if err != nil {
		return err
	}

	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	payments := payment.NewClient(payment.Config{
		BaseURL:       cfg.Payment.APIURL,
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
	}, &http.Client{Timeout: paymentTimeout})

	tokens := service.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	auth := service.NewAuthService(repos.Users, mailer, tokens, log)
	svc := api.Services{
		Auth:     auth,
		Users:    service.NewUserService(repos.Users, auth, log),
		Tours:    service.NewTourService(repos.Tours, repos.Reviews, log),
		Reviews:  service.NewReviewService(repos.Reviews, repos.Tours, log),
		Bookings: service.NewBookingService(repos.Bookings, repos.Tours, repos.Users, payments, cfg.Payment.Currency, log),
	}

	opts := api.Options{
		Production:   cfg.Production(),
		CookieTTL:    cfg.CookieTTL(),
		Limiter:      limiter,
		Images:       storage.NewProcessor(store),
		ImageBaseURL: store.URL(""),
		Checks:       checks,
	}
	if cfg.Images.Store == "disk" {
		opts.ImageDir = cfg.Images.Dir
	}
	e := api.NewRouter(svc, opts, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func imageStore(ctx context.Context, cfg *config.Config) (ports.ImageStore, error) {
	if cfg.Images.Store == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Images.S3Bucket,
			Region:    cfg.Images.S3Region,
			Endpoint:  cfg.Images.S3Endpoint,
			AccessKey: cfg.Images.S3AccessKey,
			SecretKey: cfg.Images.S3SecretKey,
			Prefix:    cfg.Images.S3Prefix,
			PublicURL: cfg.Images.S3PublicURL,
		})
	}
	return storage.NewDiskStore(cfg.Images.Dir, strings.TrimRight(cfg.PublicURL, "/")+"/img")
}
