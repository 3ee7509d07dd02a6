package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Bus channel and stream names for published opportunities.
const (
	OpportunityChannel = "polyarb:opportunities"
	OpportunityStream  = "polyarb:opportunities:log"
)

// StoreSink persists opportunities.
type StoreSink struct {
	Store domain.OpportunityStore
}

func (s StoreSink) Name() string { return "postgres" }

func (s StoreSink) Handle(ctx context.Context, opp domain.Opportunity) error {
	return s.Store.Insert(ctx, opp)
}

// BusSink publishes opportunities as JSON on the signal bus and appends them
// to a durable stream.
type BusSink struct {
	Bus domain.SignalBus
}

func (s BusSink) Name() string { return "redis" }

func (s BusSink) Handle(ctx context.Context, opp domain.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("executor: marshal opportunity %s: %w", opp.ID, err)
	}
	if err := s.Bus.Publish(ctx, OpportunityChannel, payload); err != nil {
		return err
	}
	return s.Bus.StreamAppend(ctx, OpportunityStream, payload)
}

// OpportunityNotifier is the alerting surface NotifySink needs.
type OpportunityNotifier interface {
	NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error
}

// NotifySink forwards opportunities to the alert channels.
type NotifySink struct {
	Notifier OpportunityNotifier
}

func (s NotifySink) Name() string { return "notify" }

func (s NotifySink) Handle(ctx context.Context, opp domain.Opportunity) error {
	return s.Notifier.NotifyOpportunity(ctx, opp)
}

// Broadcaster pushes opportunities to live subscribers.
type Broadcaster interface {
	BroadcastOpportunity(opp domain.Opportunity) error
}

// HubSink pushes opportunities to websocket clients.
type HubSink struct {
	Hub Broadcaster
}

func (s HubSink) Name() string { return "ws" }

func (s HubSink) Handle(_ context.Context, opp domain.Opportunity) error {
	return s.Hub.BroadcastOpportunity(opp)
}
