package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// RelationHandler serves relatedness edges and flagged wallets.
type RelationHandler struct {
	relations domain.RelationStore
	wallets   domain.WalletStore
	logger    *slog.Logger
}

// NewRelationHandler creates a RelationHandler.
func NewRelationHandler(relations domain.RelationStore, wallets domain.WalletStore, logger *slog.Logger) *RelationHandler {
	return &RelationHandler{
		relations: relations,
		wallets:   wallets,
		logger:    logHandler(logger, "relation"),
	}
}

type edgeView struct {
	MarketA    string  `json:"market_a"`
	MarketB    string  `json:"market_b"`
	Similarity float64 `json:"similarity"`
	RunID      string  `json:"run_id"`
	CreatedAt  string  `json:"created_at"`
}

// ListRelations returns the edges of the latest run touching a market.
// GET /api/relations?market_id=
func (h *RelationHandler) ListRelations(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		respond.Error(w, http.StatusBadRequest, "market_id is required")
		return
	}

	edges, err := h.relations.ListByMarket(r.Context(), marketID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list relations failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		respond.Error(w, http.StatusInternalServerError, "failed to list relations")
		return
	}

	out := make([]edgeView, 0, len(edges))
	for _, e := range edges {
		out = append(out, edgeView{
			MarketA:    e.MarketA,
			MarketB:    e.MarketB,
			Similarity: e.Similarity,
			RunID:      e.RunID,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"market_id": marketID, "edges": out})
}

type walletView struct {
	Wallet     string   `json:"wallet"`
	MarketIDs  []string `json:"market_ids"`
	Executions int      `json:"executions"`
	FlaggedAt  string   `json:"flagged_at"`
}

// ListFlaggedWallets returns wallets flagged by execution analysis.
// GET /api/wallets/flagged?limit=50&offset=0
func (h *RelationHandler) ListFlaggedWallets(w http.ResponseWriter, r *http.Request) {
	if h.wallets == nil {
		respond.Error(w, http.StatusServiceUnavailable, "wallet analysis disabled")
		return
	}
	wallets, err := h.wallets.ListFlagged(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list flagged wallets failed",
			slog.String("error", err.Error()),
		)
		respond.Error(w, http.StatusInternalServerError, "failed to list wallets")
		return
	}
	out := make([]walletView, 0, len(wallets))
	for _, fw := range wallets {
		out = append(out, walletView{
			Wallet:     fw.Wallet,
			MarketIDs:  fw.MarketIDs,
			Executions: fw.Executions,
			FlaggedAt:  fw.FlaggedAt.UTC().Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"wallets": out})
}
