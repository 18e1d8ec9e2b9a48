// Command migrate applies or rolls back the embedded schema for the configured driver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/config"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/migrate"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}
	log := logger.With(zap.String("driver", cfg.DatabaseDriver), zap.String("direction", *direction))
	switch err := migrate.Run(cfg.DatabaseDriver, cfg.DatabaseURL, *direction); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("schema already current")
	case err != nil:
		log.Fatal("migrate", zap.Error(err))
	default:
		log.Info("migrations applied")
	}
}
