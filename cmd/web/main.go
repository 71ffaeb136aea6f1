package main

import (
	"context"
	"log/slog"
	"os"

	"tickettriage/internal/envstruct"
	"tickettriage/internal/errors"
	"tickettriage/internal/logging"
	"tickettriage/internal/pprofserver"
	"tickettriage/internal/store"

	"github.com/joho/godotenv"
)

type application struct {
	logger *slog.Logger
	store  *store.Store
}

type config struct {
	Addr       string `env:"TICKETTRIAGE_ADDR" envDefault:"localhost:4000"`
	PprofPort  string `env:"TICKETTRIAGE_PPROF_PORT" envDefault:":6060"`
	StorageDir string `env:"TICKET_STORAGE_DIR" envDefault:"ticket_storage"`
}

func main() {
	ctx := context.Background()

	loggerHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})
	logger := slog.New(logging.NewContextHandler(loggerHandler))

	// The .env file is optional in production; environment variables win.
	_ = godotenv.Load()

	var cfg config
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "populate config", errors.SlogError(err))
		os.Exit(1)
	}

	// Initialise pprof listening on localhost so that it's not open to the world.
	pprofserver.Launch(cfg.PprofPort, logger)

	s, err := store.New(ctx, cfg.StorageDir, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "open ticket store", errors.SlogError(err))
		os.Exit(1)
	}
	defer func() {
		if err = s.Close(); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close ticket store", errors.SlogError(err))
		}
	}()

	logger.LogAttrs(ctx, slog.LevelInfo, "opened ticket store", slog.String("dir", cfg.StorageDir))

	app := application{
		logger: logger,
		store:  s,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server failed", errors.SlogError(err))
		os.Exit(1)
	}
}
