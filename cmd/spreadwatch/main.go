package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"spreadwatch/config"
	"spreadwatch/internal/watcher"
	"spreadwatch/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code. Every deferred flush has happened by the time it returns.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("spreadwatch", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "config/config.yaml", "path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	// .env is optional
	_ = godotenv.Load()

	// viper config
	cfg, err := config.Load(*configPath)
	if errors.Is(err, config.ErrConfigCreated) {
		fmt.Fprintf(stderr, "%s: %v\n", *configPath, err)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	cfg.ResolveSecrets(nil)

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	w, err := watcher.New(cfg, *configPath, log)
	if err != nil {
		log.Error("failed to build watcher", zap.Error(err))
		return 1
	}

	// run watcher
	if err := w.Run(ctx); err != nil {
		log.Error("watcher failed", zap.Error(err))
		return 1
	}
	return 0
}
