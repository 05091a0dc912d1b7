package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/infrastructure/db/postgres"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-migrate",
	})

	if err := run(cfg, log, *command, *timeout, *target); err != nil {
		log.Error().Err(err).Str("command", *command).Msg("migration command failed")
		os.Exit(1)
	}
	log.Info().Str("command", *command).Msg("migration command completed")
}

func run(cfg *config.Config, log zerolog.Logger, command string, timeout time.Duration, target int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := postgres.NewMigrator(pool, log)
	if err != nil {
		return fmt.Errorf("configure migrator: %w", err)
	}

	switch command {
	case "up":
		return migrator.Up(ctx)
	case "status":
		return migrator.Status(ctx)
	case "down":
		return migrator.Down(ctx, target)
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
}
