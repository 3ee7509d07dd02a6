// Package app wires the configured backends and runs one of the scan,
// stream, full or analyze modes until it finishes or is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyarb/internal/config"
)

// App runs one mode for the lifetime of the process.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
	once    sync.Once
}

// New returns an App for cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

func (a *App) modeFunc(mode string) (func(context.Context, *Dependencies) error, bool) {
	modes := map[string]func(context.Context, *Dependencies) error{
		config.ModeScan:    a.ScanMode,
		config.ModeStream:  a.StreamMode,
		config.ModeFull:    a.FullMode,
		config.ModeAnalyze: a.AnalyzeMode,
	}
	fn, ok := modes[mode]
	return fn, ok
}

// Run wires dependencies and blocks in the configured mode. Cancelling ctx
// is a clean exit and returns nil.
func (a *App) Run(ctx context.Context) error {
	run, ok := a.modeFunc(a.cfg.Mode)
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.cleanup = cleanup

	start := time.Now()
	a.logger.InfoContext(ctx, "mode started",
		slog.String("mode", a.cfg.Mode),
		slog.Int("health_checks", len(deps.HealthChecks)),
	)
	err = run(ctx, deps)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	a.logger.InfoContext(ctx, "mode finished",
		slog.String("mode", a.cfg.Mode),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("failed", err != nil),
	)
	return err
}

// Close releases everything Wire opened. Extra calls do nothing.
func (a *App) Close() {
	a.once.Do(func() {
		if a.cleanup != nil {
			a.cleanup()
		}
	})
}
