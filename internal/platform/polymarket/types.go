package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexStrings unmarshals a string array sent either as a JSON array or as a
// JSON string holding an encoded array, e.g. "[\"Yes\",\"No\"]". Elements may
// be strings or numbers. An undecodable value leaves the slice nil.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = []byte(inner)
		if strings.TrimSpace(inner) == "" {
			*f = nil
			return nil
		}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, strings.TrimSpace(string(r)))
	}
	*f = out
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a topic tag attached to an event.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	EndDate string      `json:"endDate"`
	Tags    []APITag    `json:"tags"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket represents a market nested in a Gamma API event.
type APIMarket struct {
	ID              string      `json:"id"`
	Question        string      `json:"question"`
	ConditionID     string      `json:"conditionId"`
	Slug            string      `json:"slug"`
	EndDate         string      `json:"endDate"`
	NegRiskMarketID string      `json:"negRiskMarketID"`
	Active          flexBool    `json:"active"`
	Closed          bool        `json:"closed"`
	Outcomes        flexStrings `json:"outcomes"`
	OutcomePrices   flexStrings `json:"outcomePrices"`
	ClobTokenIDs    flexStrings `json:"clobTokenIds"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ParseEndDate reads the date part of an ISO-8601 timestamp ("2024-11-05" or
// "2024-11-05T12:00:00Z") as UTC midnight.
func ParseEndDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: end date %q", domain.ErrMalformedEntry, s)
	}
	return t, nil
}

// ToDomainMarket converts one Gamma market into a domain market. The
// market's own end date is used when present, otherwise the event's.
// Mismatched outcome, price, and token counts, an unparseable date or price,
// or an empty outcome list all yield ErrMalformedEntry.
func (m *APIMarket) ToDomainMarket(eventEndDate string, tags []string) (domain.Market, error) {
	raw := m.EndDate
	if strings.TrimSpace(raw) == "" {
		raw = eventEndDate
	}
	end, err := ParseEndDate(raw)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", m.ID, err)
	}
	n := len(m.Outcomes)
	if n == 0 || n != len(m.OutcomePrices) || n != len(m.ClobTokenIDs) {
		return domain.Market{}, fmt.Errorf("market %s: %w: %d outcomes, %d prices, %d token ids",
			m.ID, domain.ErrMalformedEntry, n, len(m.OutcomePrices), len(m.ClobTokenIDs))
	}

	conds := make([]domain.Condition, 0, n)
	for i, name := range m.Outcomes {
		price, err := decimal.NewFromString(strings.TrimSpace(m.OutcomePrices[i]))
		if err != nil {
			return domain.Market{}, fmt.Errorf("market %s: %w: price %q", m.ID, domain.ErrMalformedEntry, m.OutcomePrices[i])
		}
		conds = append(conds, domain.Condition{
			Name:    name,
			Label:   name,
			Price:   price,
			Outcome: domain.ParseOutcome(name),
			AssetID: strings.TrimSpace(m.ClobTokenIDs[i]),
		})
	}

	return domain.Market{
		ID:         m.ID,
		Title:      m.Question,
		EndDate:    end,
		Conditions: conds,
		GroupKey:   m.NegRiskMarketID,
		Tags:       append([]string(nil), tags...),
	}, nil
}

// TagLabels returns the event's tag labels.
func (e *APIEvent) TagLabels() []string {
	out := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		if t.Label != "" {
			out = append(out, t.Label)
		}
	}
	return out
}

// ToDomainMarkets converts every market of the event. Malformed markets are
// skipped and counted; one bad market never fails the event.
func (e *APIEvent) ToDomainMarkets() (markets []domain.Market, dropped []error) {
	tags := e.TagLabels()
	for i := range e.Markets {
		if e.Markets[i].Closed {
			continue
		}
		m, err := e.Markets[i].ToDomainMarket(e.EndDate, tags)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		markets = append(markets, m)
	}
	return markets, dropped
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSPriceLevel is a single bid/ask level in the WebSocket orderbook data.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookMessage represents a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// PriceChangeEntry is one asset's update inside a price_change message.
type PriceChangeEntry struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Side    string `json:"side"`
	Size    string `json:"size"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// PriceChangeMessage is an incremental update. Newer feeds batch entries in
// PriceChanges; older ones carry a single flat entry.
type PriceChangeMessage struct {
	PriceChangeEntry
	Market       string             `json:"market"`
	PriceChanges []PriceChangeEntry `json:"price_changes"`
	Timestamp    string             `json:"timestamp"`
}

// PriceMessage carries a trade price, also the bare {asset_id, price} form.
type PriceMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// WSCommand is the JSON payload sent to the WebSocket to subscribe. The
// first command on a connection sets Type "market"; later ones set
// Operation "subscribe".
type WSCommand struct {
	Type      string   `json:"type,omitempty"`
	Operation string   `json:"operation,omitempty"`
	Assets    []string `json:"assets_ids"`
}
