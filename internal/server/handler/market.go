package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// LiveMarkets reads the in-memory price table. *stream.Store satisfies it.
type LiveMarkets interface {
	Market(id string) (domain.Market, bool)
	Neighbors(id string) ([]domain.Market, bool)
}

// MarketHandler serves market-related HTTP endpoints. Live prices come from
// the streaming table when one is loaded; otherwise the last persisted
// catalog is used and no neighbors are reported.
type MarketHandler struct {
	live    LiveMarkets
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. Either source may be nil.
func NewMarketHandler(live LiveMarkets, markets domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		live:    live,
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

type marketResponse struct {
	Market    marketView   `json:"market"`
	Live      bool         `json:"live"`
	Neighbors []marketView `json:"neighbors"`
}

// GetMarket returns one market and its related markets.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "missing market id")
		return
	}

	if h.live != nil {
		if m, ok := h.live.Market(id); ok {
			neighbors, _ := h.live.Neighbors(id)
			resp := marketResponse{
				Market:    newMarketView(m),
				Live:      true,
				Neighbors: make([]marketView, 0, len(neighbors)),
			}
			for _, n := range neighbors {
				resp.Neighbors = append(resp.Neighbors, newMarketView(n))
			}
			respond.JSON(w, http.StatusOK, resp)
			return
		}
	}

	if h.markets == nil {
		respond.Error(w, http.StatusNotFound, "market not found")
		return
	}
	m, err := h.markets.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		respond.Error(w, http.StatusInternalServerError, "failed to get market")
		return
	}
	respond.JSON(w, http.StatusOK, marketResponse{
		Market:    newMarketView(m),
		Neighbors: []marketView{},
	})
}
