package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/analysis"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
)

// FillFetcher retrieves on-chain order-filled events.
type FillFetcher interface {
	FetchOrderFills(ctx context.Context, since time.Time, first int) ([]domain.Fill, error)
}

// FillReport summarizes one analysis pass.
type FillReport struct {
	Fills      int
	Executions int
	Flagged    []domain.FlaggedWallet
	VWAP       map[string]decimal.Decimal // by maker asset
	Latest     time.Time
}

// FillConfig configures a FillService. Writer, Wallets and Metrics are
// optional.
type FillConfig struct {
	Fetcher    FillFetcher
	FetchLimit int
	Writer     domain.BlobWriter
	Wallets    domain.WalletStore
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// FillService pulls fills, archives them as CSV, and flags wallets whose
// executions look like multi-leg arbitrage.
type FillService struct {
	cfg    FillConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewFillService creates a FillService.
func NewFillService(cfg FillConfig) *FillService {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 1000
	}
	return &FillService{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "fill_service")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a single pass over fills since the given time. assets maps
// outcome asset ids to market ids.
func (s *FillService) Run(ctx context.Context, since time.Time, assets map[string]string) (FillReport, error) {
	fills, err := s.cfg.Fetcher.FetchOrderFills(ctx, since, s.cfg.FetchLimit)
	if err != nil {
		return FillReport{}, fmt.Errorf("fill_service: fetch fills since %v: %w", since, err)
	}
	report := FillReport{Fills: len(fills), Latest: latestFillTimestamp(fills, since)}
	if len(fills) == 0 {
		s.logger.InfoContext(ctx, "no new fills found", slog.Time("since", since))
		return report, nil
	}

	if s.cfg.Writer != nil {
		if err := s.archive(ctx, fills); err != nil {
			s.logger.WarnContext(ctx, "fill archive failed", slog.String("error", err.Error()))
		}
	}

	execs := analysis.Executions(fills, assets)
	report.Executions = len(execs)
	report.Flagged = analysis.FlagWallets(execs, s.now())
	report.VWAP = analysis.VWAPByAsset(fills)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WalletsFlagged.Add(float64(len(report.Flagged)))
	}
	if s.cfg.Wallets != nil {
		if err := s.cfg.Wallets.UpsertFlagged(ctx, report.Flagged); err != nil {
			return report, fmt.Errorf("fill_service: store flagged wallets: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "fill analysis complete",
		slog.Int("fills", report.Fills),
		slog.Int("executions", report.Executions),
		slog.Int("flagged_wallets", len(report.Flagged)),
	)
	return report, nil
}

// RunLoop repeats Run on an interval until ctx is cancelled, advancing the
// since cursor past processed fills. assets is re-read each pass so a
// refreshed catalog is picked up.
func (s *FillService) RunLoop(ctx context.Context, interval time.Duration, since time.Time, assets func() map[string]string) error {
	pass := func() {
		report, err := s.Run(ctx, since, assets())
		if err != nil {
			s.logger.ErrorContext(ctx, "fill analysis failed", slog.String("error", err.Error()))
			return
		}
		since = report.Latest
	}

	pass()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("fill analysis loop stopped")
			return ctx.Err()
		case <-ticker.C:
			pass()
		}
	}
}

func (s *FillService) archive(ctx context.Context, fills []domain.Fill) error {
	data, err := fillsToCSV(fills)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("goldsky/orderFilled/%s.csv", s.now().Format(time.DateOnly))
	obj := domain.BlobObject{
		Key:         path,
		Body:        data,
		ContentType: "text/csv",
		Metadata:    map[string]string{"records": strconv.Itoa(len(fills))},
	}
	if err := s.cfg.Writer.Write(ctx, obj); err != nil {
		return fmt.Errorf("uploading CSV to %s: %w", path, err)
	}
	return nil
}

// fillsToCSV converts fills to CSV bytes with a header row.
func fillsToCSV(fills []domain.Fill) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"timestamp",
		"maker",
		"maker_asset_id",
		"maker_amount_filled",
		"taker",
		"taker_asset_id",
		"taker_amount_filled",
		"transaction_hash",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	for _, f := range fills {
		row := []string{
			strconv.FormatInt(f.Timestamp.Unix(), 10),
			f.Maker,
			f.MakerAssetID,
			f.MakerAmountFilled.String(),
			f.Taker,
			f.TakerAssetID,
			f.TakerAmountFilled.String(),
			f.TransactionHash,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}

// latestFillTimestamp returns the most recent fill timestamp, or fallback.
func latestFillTimestamp(fills []domain.Fill, fallback time.Time) time.Time {
	latest := fallback
	for _, f := range fills {
		if f.Timestamp.After(latest) {
			latest = f.Timestamp
		}
	}
	return latest
}
