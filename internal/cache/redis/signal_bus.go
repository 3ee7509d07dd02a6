package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	// streams are trimmed to roughly this many entries on append
	defaultStreamMaxLen int64 = 10000
	payloadField              = "payload"
	subscriberBuffer          = 128
)

// SignalBus carries opportunities between processes: pub/sub for live
// fan-out and a capped stream as a short replayable history.
type SignalBus struct {
	rdb       *redis.Client
	streamCap int64
}

// NewSignalBus returns a bus on c.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb, streamCap: defaultStreamMaxLen}
}

// Publish sends payload to channel subscribers.
func (b *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel, or on a pattern when it contains glob
// characters. The returned channel closes when ctx ends or the
// subscription drops.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var ps *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		ps = b.rdb.PSubscribe(ctx, channel)
	} else {
		ps = b.rdb.Subscribe(ctx, channel)
	}
	// Wait for the confirmation so messages published right after return
	// are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			var msg *redis.Message
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg = m
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// StreamAppend adds payload to stream, trimming it approximately.
func (b *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.streamCap,
		Approx: true,
		Values: []any{payloadField, payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// StreamRecent returns up to count of the newest entries, newest first.
func (b *SignalBus) StreamRecent(ctx context.Context, stream string, count int) ([]domain.StreamMessage, error) {
	entries, err := b.rdb.XRevRangeN(ctx, stream, "+", "-", int64(count)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: xrevrange %s: %w", stream, err)
	}
	msgs := make([]domain.StreamMessage, 0, len(entries))
	for _, e := range entries {
		// go-redis decodes stream values as strings.
		if s, ok := e.Values[payloadField].(string); ok {
			msgs = append(msgs, domain.StreamMessage{ID: e.ID, Payload: []byte(s)})
		}
	}
	return msgs, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
