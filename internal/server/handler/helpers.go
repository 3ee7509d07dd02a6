package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// queryInt reads key as an int of at least lo, falling back to def when the
// parameter is absent or malformed.
func queryInt(q url.Values, key string, def, lo int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < lo {
		return def
	}
	return n
}

// parseListOpts reads limit (default 50, capped at 500), offset and an
// RFC 3339 since from the query string. Bad values are ignored.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()
	opts := domain.ListOpts{
		Limit:  min(queryInt(q, "limit", defaultPageSize, 1), maxPageSize),
		Offset: queryInt(q, "offset", 0, 0),
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	return opts
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

type conditionView struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Price   string `json:"price"`
	Outcome string `json:"outcome"`
	AssetID string `json:"asset_id,omitempty"`
}

type marketView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	EndDate    string          `json:"end_date"`
	GroupKey   string          `json:"group_key,omitempty"`
	Category   string          `json:"category"`
	Tags       []string        `json:"tags"`
	PriceSum   string          `json:"price_sum"`
	Conditions []conditionView `json:"conditions"`
}

func newMarketView(m domain.Market) marketView {
	v := marketView{
		ID:         m.ID,
		Title:      m.Title,
		EndDate:    m.EndDate.Format(time.DateOnly),
		GroupKey:   m.GroupKey,
		Category:   string(m.Category),
		Tags:       append([]string{}, m.Tags...),
		PriceSum:   m.PriceSum().String(),
		Conditions: make([]conditionView, 0, len(m.Conditions)),
	}
	for _, c := range m.Conditions {
		v.Conditions = append(v.Conditions, conditionView{
			Name:    c.Name,
			Label:   c.Label,
			Price:   c.Price.String(),
			Outcome: c.Outcome.String(),
			AssetID: c.AssetID,
		})
	}
	return v
}
