// Package notify fans operator alerts out to chat channels. Alerts carry an
// event type so operators can subscribe to a subset.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Event types.
const (
	EventOpportunity = "opportunity"
	EventError       = "error"
)

// Sender is one alert channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier delivers alerts to every sender. Notify drops events outside the
// configured set; an empty set admits everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger

	minProfit decimal.Decimal
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier builds a Notifier. Event names are trimmed and lower-cased.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders:  senders,
		events:   make(map[string]bool, len(events)),
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
	for _, e := range events {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			n.events[e] = true
		}
	}
	return n
}

// SetMinProfit sets the profit below which opportunity alerts are skipped.
func (n *Notifier) SetMinProfit(p decimal.Decimal) { n.minProfit = p }

// SetCooldown suppresses a repeat alert for the same opportunity key until d
// has passed since the last one. Zero disables suppression.
func (n *Notifier) SetCooldown(d time.Duration) { n.cooldown = d }

// Notify sends title and message if event is subscribed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends regardless of the event filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// NotifyOpportunity alerts on opp when its profit reaches the minimum and
// the same opportunity was not alerted within the cooldown.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	if opp.Profit.LessThan(n.minProfit) || n.coolingDown(opp.Key()) {
		return nil
	}
	title, body := FormatOpportunity(opp)
	return n.Notify(ctx, EventOpportunity, title, body)
}

func (n *Notifier) coolingDown(key string) bool {
	if n.cooldown <= 0 {
		return false
	}
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return true
	}
	n.lastSent[key] = now
	// Forget stale keys so long runs don't accumulate every opportunity seen.
	if len(n.lastSent) > 4096 {
		for k, t := range n.lastSent {
			if now.Sub(t) >= n.cooldown {
				delete(n.lastSent, k)
			}
		}
	}
	return false
}

// FormatOpportunity renders an opportunity as an alert title and body.
func FormatOpportunity(opp domain.Opportunity) (string, string) {
	profit := opp.Profit.StringFixed(4)
	if opp.Kind == domain.OpportunityRebalancing {
		action := "buy every outcome"
		if opp.Side == domain.SideShort {
			action = "sell every outcome"
		}
		return "Rebalancing " + opp.MarketID,
			fmt.Sprintf("market %s: %s, profit %s per share", opp.MarketID, action, profit)
	}
	premise := opp.MarketID + "/" + opp.ConditionName
	implied := opp.RelatedMarketID + "/" + opp.RelatedCondition
	return "Combinatorial " + string(opp.Pattern),
		fmt.Sprintf("%s implies %s: buy %s, sell %s, profit %s per share",
			premise, implied, implied, premise, profit)
}

// dispatch tries every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
