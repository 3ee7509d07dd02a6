package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	writeTimeout = 10 * time.Second
	// A link that delivers nothing, pongs included, for this long is dead.
	readTimeout = 60 * time.Second
	pingEvery   = 20 * time.Second
	maxFrame    = 8 << 20

	// SubscribeChunkSize is the number of asset ids per subscribe command.
	SubscribeChunkSize = 50

	// SubscribeInterval spaces consecutive subscribe commands.
	SubscribeInterval = 100 * time.Millisecond
)

// TickHandler receives every price tick decoded from the feed. It runs on
// the read goroutine.
type TickHandler func(domain.Tick)

// WSClient is a single connection to the Polymarket CLOB market channel. It
// does not reconnect; callers own the retry policy.
//
// One goroutine reads and one writes. Commands reach the writer through
// outbox, so the connection never sees concurrent writes.
type WSClient struct {
	url    string
	onTick TickHandler
	dialer websocket.Dialer

	conn   *websocket.Conn
	outbox chan []byte

	stop     chan struct{}
	stopOnce sync.Once

	failed   chan struct{}
	failOnce sync.Once
	err      error
}

// NewWSClient returns an unconnected client for wsURL, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, onTick TickHandler) *WSClient {
	return &WSClient{
		url:    wsURL,
		onTick: onTick,
		dialer: websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		outbox: make(chan []byte, 16),
		stop:   make(chan struct{}),
		failed: make(chan struct{}),
	}
}

// Connect dials the feed and starts the reader and writer.
func (w *WSClient) Connect(ctx context.Context) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("polymarket/ws: dial: handshake status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("polymarket/ws: dial: %w", err)
	}
	w.conn = conn
	conn.SetReadLimit(maxFrame)

	extend := func() error { return conn.SetReadDeadline(time.Now().Add(readTimeout)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	go w.reader(extend)
	go w.writer()
	return nil
}

// Subscribe asks for assetIDs in chunks of SubscribeChunkSize, pausing
// SubscribeInterval between chunks. The first chunk opens the market
// channel and later ones extend it.
func (w *WSClient) Subscribe(ctx context.Context, assetIDs []string) error {
	if w.conn == nil {
		return errors.New("polymarket/ws: subscribe before connect")
	}
	sent := 0
	for chunk := range slices.Chunk(assetIDs, SubscribeChunkSize) {
		select {
		case <-w.failed:
			return w.disconnected()
		default:
		}
		if sent > 0 {
			if err := w.pause(ctx, SubscribeInterval); err != nil {
				return err
			}
		}
		cmd := WSCommand{Operation: "subscribe", Assets: chunk}
		if sent == 0 {
			cmd = WSCommand{Type: "market", Assets: chunk}
		}
		data, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("polymarket/ws: encode subscribe: %w", err)
		}
		select {
		case w.outbox <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-w.failed:
			return w.disconnected()
		case <-w.stop:
			return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
		}
		sent += len(chunk)
	}
	return nil
}

func (w *WSClient) pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.failed:
		return w.disconnected()
	case <-t.C:
		return nil
	}
}

func (w *WSClient) disconnected() error {
	if w.err != nil {
		return w.err
	}
	return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
}

// Wait blocks until the connection ends or ctx is done. It returns nil
// after Close and a domain.ErrWSDisconnect error when the link broke.
func (w *WSClient) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.failed:
		return w.err
	}
}

// Close sends a normal-closure frame and tears the connection down. It is
// safe to call more than once.
func (w *WSClient) Close() error {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.conn == nil {
		w.fail(nil)
	}
	return nil
}

// fail records the first terminal error. nil means a requested close.
func (w *WSClient) fail(err error) {
	w.failOnce.Do(func() {
		w.err = err
		close(w.failed)
	})
}

func (w *WSClient) reader(extend func() error) {
	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.stop:
				w.fail(nil)
			default:
				w.fail(fmt.Errorf("polymarket/ws: read: %w: %v", domain.ErrWSDisconnect, err))
			}
			return
		}
		_ = extend()
		if w.onTick == nil {
			continue
		}
		for _, t := range DecodeTicks(msg, time.Now().UTC()) {
			w.onTick(t)
		}
	}
}

func (w *WSClient) writer() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer w.conn.Close()

	for {
		select {
		case <-w.stop:
			_ = w.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case <-w.failed:
			return
		case msg := <-w.outbox:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.fail(fmt.Errorf("polymarket/ws: write: %w: %v", domain.ErrWSDisconnect, err))
			}
		case <-ping.C:
			if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				w.fail(fmt.Errorf("polymarket/ws: ping: %w: %v", domain.ErrWSDisconnect, err))
			}
		}
	}
}
