package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

var now = time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)

func TestDecodeTicks(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  map[string]string
	}{
		{
			name:  "last trade price",
			frame: `{"event_type":"last_trade_price","asset_id":"a1","price":"0.57","timestamp":"1730808000000"}`,
			want:  map[string]string{"a1": "0.57"},
		},
		{
			name:  "bare asset price",
			frame: `{"asset_id":"a1","price":"0.4"}`,
			want:  map[string]string{"a1": "0.4"},
		},
		{
			name:  "batched price change uses mid",
			frame: `{"event_type":"price_change","price_changes":[{"asset_id":"a1","price":"0.5","best_bid":"0.48","best_ask":"0.52"},{"asset_id":"a2","price":"0.3"}]}`,
			want:  map[string]string{"a1": "0.5", "a2": "0.3"},
		},
		{
			name:  "flat price change",
			frame: `{"event_type":"price_change","asset_id":"a3","price":"0.21","side":"BUY","size":"10"}`,
			want:  map[string]string{"a3": "0.21"},
		},
		{
			name:  "book array",
			frame: `[{"event_type":"book","asset_id":"a1","bids":[{"price":"0.40","size":"5"},{"price":"0.44","size":"1"}],"asks":[{"price":"0.50","size":"3"},{"price":"0.47","size":"2"}]}]`,
			want:  map[string]string{"a1": "0.455"},
		},
		{
			name:  "one-sided book dropped",
			frame: `{"event_type":"book","asset_id":"a1","bids":[{"price":"0.40","size":"5"}],"asks":[]}`,
			want:  map[string]string{},
		},
		{
			name:  "out of range price dropped",
			frame: `{"event_type":"last_trade_price","asset_id":"a1","price":"1.5"}`,
			want:  map[string]string{},
		},
		{
			name:  "garbage",
			frame: `PONG`,
			want:  map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks := DecodeTicks([]byte(tt.frame), now)
			got := make(map[string]string, len(ticks))
			for _, tk := range ticks {
				got[tk.AssetID] = tk.Price.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeTicksTimestamp(t *testing.T) {
	ticks := DecodeTicks([]byte(`{"event_type":"last_trade_price","asset_id":"a","price":"0.5","timestamp":"1730808000000"}`), now)
	require.Len(t, ticks, 1)
	assert.Equal(t, time.UnixMilli(1730808000000).UTC(), ticks[0].ReceivedAt)

	ticks = DecodeTicks([]byte(`{"asset_id":"a","price":"0.5"}`), now)
	require.Len(t, ticks, 1)
	assert.Equal(t, now, ticks[0].ReceivedAt)
}

func TestWSClientSubscribesInChunks(t *testing.T) {
	var (
		mu   sync.Mutex
		cmds []WSCommand
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd WSCommand
			if json.Unmarshal(data, &cmd) == nil {
				mu.Lock()
				cmds = append(cmds, cmd)
				mu.Unlock()
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"last_trade_price","asset_id":"id-7","price":"0.33"}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	got := make(chan domain.Tick, 1)
	client := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), func(tk domain.Tick) { got <- tk })
	ctx := t.Context()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = "id-" + string(rune('0'+i%10))
	}
	require.NoError(t, client.Subscribe(ctx, ids))

	select {
	case tk := <-got:
		assert.Equal(t, "id-7", tk.AssetID)
		assert.True(t, decimal.RequireFromString("0.33").Equal(tk.Price))
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, cmds, 3)
	assert.Equal(t, "market", cmds[0].Type)
	assert.Len(t, cmds[0].Assets, 50)
	assert.Equal(t, "subscribe", cmds[1].Operation)
	assert.Len(t, cmds[1].Assets, 50)
	assert.Len(t, cmds[2].Assets, 20)
}

func wsServer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientWaitAfterClose(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	client := NewWSClient(url, nil)
	ctx := t.Context()
	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, client.Wait(waitCtx))
}

func TestWSClientReportsServerDrop(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {})
	client := NewWSClient(url, nil)
	ctx := t.Context()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := client.Wait(waitCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)

	err = client.Subscribe(ctx, []string{"a"})
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
}

func TestWSClientSubscribeBeforeConnect(t *testing.T) {
	err := NewWSClient("ws://unused", nil).Subscribe(t.Context(), []string{"a"})
	assert.ErrorContains(t, err, "before connect")
}
