package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// OpportunityReader lists emitted opportunities, newest first.
type OpportunityReader interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Opportunity, error)
}

// OpportunityHandler lists emitted opportunities from postgres or, without
// it, from the redis history stream.
type OpportunityHandler struct {
	store  OpportunityReader
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(store OpportunityReader, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, logger: logHandler(logger, "opportunity")}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// ListOpportunities returns the newest opportunities first, optionally
// restricted to those touching one market.
// GET /api/opportunities?market_id=&limit=50&offset=0&since=
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		opps []domain.Opportunity
		err  error
	)
	if marketID := r.URL.Query().Get("market_id"); marketID != "" {
		opps, err = h.store.ListByMarket(r.Context(), marketID, opts)
	} else {
		opps, err = h.store.ListRecent(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed",
			slog.String("error", err.Error()),
		)
		respond.Error(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}

	respond.JSON(w, http.StatusOK, listOpportunitiesResponse{
		Opportunities: opps,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
}
