package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/config"
)

func TestWireWithoutBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Postgres.Enabled = false
	cfg.Redis.Enabled = false
	cfg.S3.Enabled = false
	cfg.Goldsky.URL = "https://subgraph.example/gql"

	deps, cleanup, err := Wire(t.Context(), &cfg, discard())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Gamma)
	assert.NotNil(t, deps.Goldsky)
	assert.NotNil(t, deps.Notifier)
	assert.Nil(t, deps.MarketStore)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.Archiver)
	assert.Contains(t, deps.HealthChecks, "goldsky")
	assert.Len(t, deps.HealthChecks, 1)
}

func TestWireReportsFailingBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Postgres.Enabled = false
	cfg.S3.Enabled = false
	cfg.Redis.Addr = "127.0.0.1:1"

	_, _, err := Wire(t.Context(), &cfg, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: redis")
}

func TestNewNotifierSkipsIncompleteTelegram(t *testing.T) {
	n := newNotifier(t.Context(), config.NotifyConfig{
		TelegramToken: "only-token",
		Events:        []string{"opportunity"},
		Cooldown:      config.Defaults().Notify.Cooldown,
	}, discard())
	require.NotNil(t, n)
	assert.NoError(t, n.NotifyAll(t.Context(), "t", "m"))
}
