package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phone-auth-api/internal/application/auth"
	"github.com/phone-auth-api/internal/application/otp"
	"github.com/phone-auth-api/internal/bootstrap"
	"github.com/phone-auth-api/internal/config"
	jwtinfra "github.com/phone-auth-api/internal/infrastructure/jwt"
	redisinfra "github.com/phone-auth-api/internal/infrastructure/redis"
	s3infra "github.com/phone-auth-api/internal/infrastructure/s3"
	"github.com/phone-auth-api/internal/infrastructure/sns"
	"github.com/phone-auth-api/internal/pkg/password"
	"github.com/phone-auth-api/internal/pkg/validate"
	"github.com/phone-auth-api/internal/storage"
	transporthttp "github.com/phone-auth-api/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogger(cfg.LogLevel)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	keyManager, err := bootstrap.NewKeyManager(cfg, store)
	if err != nil {
		return err
	}
	if cfg.KeysSeedBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		if _, err := s3infra.NewSeeder(s3Client, cfg.KeysSeedBucket, cfg.KeysSeedObject).Seed(ctx, keyManager); err != nil {
			return fmt.Errorf("seed config keys: %w", err)
		}
	}
	settings := otp.NewKeySettings(keyManager)
	if err := settings.Preload(ctx); err != nil {
		return fmt.Errorf("otp settings: %w", err)
	}

	var revocations storage.RevocationStore = store
	if cfg.RedisAddr != "" {
		rl := redisinfra.NewRevocationList(redisinfra.NewClient(cfg))
		if err := rl.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		revocations = rl
		slog.Info("refresh revocation list in redis", "addr", cfg.RedisAddr)
	}

	var notifier auth.Notifier = sns.Discard{}
	if cfg.OTPTopicARN != "" {
		client, err := sns.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		notifier = sns.NewPublisher(client, cfg.OTPTopicARN)
	} else {
		slog.Warn("OTP_TOPIC_ARN not set, issued codes are not delivered")
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Store:       store,
		Revocations: revocations,
		OTP:         otp.NewEngine(store, settings),
		JWTProvider: jwtProvider,
		Notifier:    notifier,
		Hasher:      password.NewHasher(cfg.BcryptCost),
		Policy: validate.PasswordPolicy{
			MinLength:     cfg.PasswordMinLength,
			RejectNumeric: cfg.PasswordRejectNumeric,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
