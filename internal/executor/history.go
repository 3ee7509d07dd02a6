package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// historyScan bounds how far back StreamHistory reads the opportunity log.
const historyScan = 1000

// StreamHistory answers opportunity listings from the bus's capped stream.
// It stands in for the database when postgres is disabled, so it only sees
// what BusSink appended and has not been trimmed.
type StreamHistory struct {
	Bus domain.SignalBus
}

// ListRecent returns the newest opportunities first.
func (h StreamHistory) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	return h.list(ctx, opts, func(domain.Opportunity) bool { return true })
}

// ListByMarket returns the newest opportunities on either leg of marketID.
func (h StreamHistory) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Opportunity, error) {
	return h.list(ctx, opts, func(o domain.Opportunity) bool {
		return o.MarketID == marketID || o.RelatedMarketID == marketID
	})
}

func (h StreamHistory) list(ctx context.Context, opts domain.ListOpts, keep func(domain.Opportunity) bool) ([]domain.Opportunity, error) {
	msgs, err := h.Bus.StreamRecent(ctx, OpportunityStream, historyScan)
	if err != nil {
		return nil, fmt.Errorf("executor: read opportunity history: %w", err)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	skip := opts.Offset
	out := make([]domain.Opportunity, 0, min(limit, len(msgs)))
	for _, m := range msgs {
		var opp domain.Opportunity
		if err := json.Unmarshal(m.Payload, &opp); err != nil {
			continue
		}
		// Entries are newest first, so the first one older than Since ends
		// the scan.
		if opts.Since != nil && opp.DetectedAt.Before(*opts.Since) {
			break
		}
		if !keep(opp) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, opp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
