// Command polyarb ingests the Polymarket catalog, relates markets, and
// detects rebalancing and combinatorial arbitrage in batch or live.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/polyarb/internal/app"
	"github.com/alanyoungcy/polyarb/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("polyarb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML config file; built-in defaults when empty")
	mode := fs.String("mode", "", "run mode overriding the config: scan, stream, full or analyze")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Info until the configured level is known.
	logger := newLogger(stdout, "info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", slog.String("path", *configPath), slog.String("error", err.Error()))
		return 1
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	logger = newLogger(stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config rejected", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("polyarb starting", slog.String("mode", cfg.Mode), slog.String("config", *configPath))
	logger.Debug("effective configuration", slog.Any("config", cfg.Redacted()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger)
	defer a.Close()
	if err := a.Run(ctx); err != nil {
		logger.Error("polyarb failed", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "polyarb: %v\n", err)
		return 1
	}
	logger.Info("polyarb stopped")
	return 0
}

// newLogger writes JSON records at level. Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
