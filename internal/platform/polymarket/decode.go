package polymarket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DecodeTicks extracts price ticks from one feed frame. Frames may be a
// single object or an array of objects. Book snapshots and best bid/ask
// updates yield the mid price; trade messages yield the trade price.
// Anything unparseable, or a price outside [0,1], is dropped.
func DecodeTicks(raw []byte, now time.Time) []domain.Tick {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		var frames []json.RawMessage
		if err := json.Unmarshal(raw, &frames); err != nil {
			return nil
		}
		var out []domain.Tick
		for _, f := range frames {
			out = append(out, DecodeTicks(f, now)...)
		}
		return out
	}

	var envelope struct {
		EventType string `json:"event_type"`
		MsgType   string `json:"msg_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	kind := envelope.EventType
	if kind == "" {
		kind = envelope.MsgType
	}

	switch kind {
	case "book":
		var book BookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return nil
		}
		return tickIf(book.AssetID, bookMid(book), parseTimestamp(book.Timestamp, now))

	case "price_change":
		var pc PriceChangeMessage
		if err := json.Unmarshal(raw, &pc); err != nil {
			return nil
		}
		ts := parseTimestamp(pc.Timestamp, now)
		entries := pc.PriceChanges
		if len(entries) == 0 {
			entries = []PriceChangeEntry{pc.PriceChangeEntry}
		}
		var out []domain.Tick
		for _, e := range entries {
			price, ok := mid(e.BestBid, e.BestAsk)
			if !ok {
				price, ok = parsePrice(e.Price)
			}
			if ok {
				out = append(out, tickIf(e.AssetID, &price, ts)...)
			}
		}
		return out

	case "last_trade_price", "":
		var pm PriceMessage
		if err := json.Unmarshal(raw, &pm); err != nil {
			return nil
		}
		price, ok := parsePrice(pm.Price)
		if !ok {
			return nil
		}
		return tickIf(pm.AssetID, &price, parseTimestamp(pm.Timestamp, now))
	}
	return nil
}

var one = decimal.NewFromInt(1)

func tickIf(assetID string, price *decimal.Decimal, ts time.Time) []domain.Tick {
	if assetID == "" || price == nil || price.IsNegative() || price.GreaterThan(one) {
		return nil
	}
	return []domain.Tick{{AssetID: assetID, Price: *price, ReceivedAt: ts}}
}

func parsePrice(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}
	p, err := decimal.NewFromString(s)
	return p, err == nil
}

func mid(bid, ask string) (decimal.Decimal, bool) {
	b, okB := parsePrice(bid)
	a, okA := parsePrice(ask)
	if !okB || !okA || b.IsZero() || a.IsZero() {
		return decimal.Decimal{}, false
	}
	return b.Add(a).Div(decimal.NewFromInt(2)), true
}

func bookMid(b BookMessage) *decimal.Decimal {
	var best struct {
		bid, ask decimal.Decimal
		hasBid   bool
		hasAsk   bool
	}
	for _, lvl := range b.Bids {
		if p, ok := parsePrice(lvl.Price); ok && (!best.hasBid || p.GreaterThan(best.bid)) {
			best.bid, best.hasBid = p, true
		}
	}
	for _, lvl := range b.Asks {
		if p, ok := parsePrice(lvl.Price); ok && (!best.hasAsk || p.LessThan(best.ask)) {
			best.ask, best.hasAsk = p, true
		}
	}
	if !best.hasBid || !best.hasAsk {
		return nil
	}
	m := best.bid.Add(best.ask).Div(decimal.NewFromInt(2))
	return &m
}

// parseTimestamp accepts unix milliseconds, unix seconds, or RFC 3339.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}
