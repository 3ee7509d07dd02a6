// Package ws streams opportunities and status to dashboard clients over
// websocket as protobuf Struct frames.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Topics a client can subscribe to. New clients start with all of them.
const (
	TopicOpportunities = "opportunities"
	TopicStatus        = "status"
)

var defaultTopics = []string{TopicOpportunities, TopicStatus}

const (
	queueSize             = 256
	defaultStatusInterval = 30 * time.Second
)

// Config holds hub settings.
type Config struct {
	Mode string
	// Relay lists signal bus channels whose JSON opportunities are forwarded
	// to clients. Leave empty when the executor runs in-process and calls
	// BroadcastOpportunity directly.
	Relay []string
	// AllowedOrigins limits browser upgrades by Origin header. Empty or "*"
	// admits any origin.
	AllowedOrigins []string
	// StatusInterval is how often status frames go out. Zero means 30s.
	StatusInterval time.Duration
	StartedAt      time.Time
}

type queued struct {
	topic string
	frame []byte
}

// Hub fans frames out to connected clients. Frames are queued without
// blocking and dropped when the queue is full.
type Hub struct {
	bus            domain.SignalBus
	relay          []string
	logger         *slog.Logger
	mode           string
	startedAt      time.Time
	statusInterval time.Duration
	upgrader       websocket.Upgrader

	queue   chan queued
	dropped atomic.Int64

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. bus may be nil when Relay is empty.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	h := &Hub{
		bus:            bus,
		relay:          cfg.Relay,
		logger:         logger.With(slog.String("component", "ws_hub")),
		mode:           strings.ToLower(strings.TrimSpace(cfg.Mode)),
		startedAt:      cfg.StartedAt,
		statusInterval: cfg.StatusInterval,
		queue:          make(chan queued, queueSize),
		clients:        make(map[*client]struct{}),
	}
	if h.mode == "" {
		h.mode = "unknown"
	}
	if h.startedAt.IsZero() {
		h.startedAt = time.Now().UTC()
	}
	if h.statusInterval <= 0 {
		h.statusInterval = defaultStatusInterval
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, u.Scheme+"://"+u.Host)
		})
	}
}

// BroadcastOpportunity queues opp for clients subscribed to opportunities.
// It never blocks.
func (h *Hub) BroadcastOpportunity(opp domain.Opportunity) error {
	frame, err := opportunityFrame(opp)
	if err != nil {
		return err
	}
	h.enqueue(TopicOpportunities, frame)
	return nil
}

func (h *Hub) enqueue(topic string, frame []byte) {
	select {
	case h.queue <- queued{topic: topic, frame: frame}:
	default:
		h.dropped.Add(1)
	}
}

// Dropped counts frames discarded because the hub queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) statusFrame() []byte {
	frame, err := EncodeFrame(kindStatus, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": float64(max(int64(time.Since(h.startedAt).Seconds()), 0)),
		"clients":        float64(h.clientCount()),
	})
	if err != nil {
		h.logger.Warn("status frame", slog.String("error", err.Error()))
		return nil
	}
	return frame
}

// Run fans queued frames out until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range h.relay {
			go h.relayChannel(ctx, ch)
		}
	}
	status := time.NewTicker(h.statusInterval)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped", slog.Int64("dropped_frames", h.Dropped()))
			return ctx.Err()
		case <-status.C:
			if frame := h.statusFrame(); frame != nil {
				h.fanOut(TopicStatus, frame)
			}
		case q := <-h.queue:
			h.fanOut(q.topic, q.frame)
		}
	}
}

func (h *Hub) fanOut(topic string, frame []byte) {
	slow := 0
	h.mu.RLock()
	for c := range h.clients {
		if c.isSubscribed(topic) && !c.offer(frame) {
			slow++
		}
	}
	h.mu.RUnlock()
	if slow > 0 {
		h.logger.Warn("frame skipped for slow clients", slog.String("topic", topic), slog.Int("clients", slow))
	}
}

// relayChannel forwards JSON opportunities published on a bus channel.
func (h *Hub) relayChannel(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("relay subscribe failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	h.logger.Info("relaying channel", slog.String("channel", channel))
	for data := range msgs {
		var opp domain.Opportunity
		if err := json.Unmarshal(data, &opp); err != nil {
			h.logger.Warn("relay: bad payload", slog.String("channel", channel), slog.String("error", err.Error()))
			continue
		}
		if err := h.BroadcastOpportunity(opp); err != nil {
			h.logger.Warn("relay: encode failed", slog.String("error", err.Error()))
		}
	}
}

// HandleWS upgrades GET /ws and starts the client's pumps. The first frame
// a client receives is a status frame.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := newClient(h, conn)
	if frame := h.statusFrame(); frame != nil {
		c.offer(frame)
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("clients", n))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		h.logger.Info("client disconnected", slog.Int("clients", n))
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
