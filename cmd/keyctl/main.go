package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phone-auth-api/internal/bootstrap"
	"github.com/phone-auth-api/internal/cmd/keyctl"
	"github.com/phone-auth-api/internal/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, keyctl.ErrUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	kc, err := keyctl.ParseConfig(flag.NewFlagSet("keyctl", flag.ContinueOnError), os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := bootstrap.NewKeyManager(cfg, store)
	if err != nil {
		return err
	}
	return keyctl.Run(ctx, kc, m, os.Stdout)
}
