package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// StatsProvider reports streaming pipeline counters. *stream.Pipeline
// satisfies it.
type StatsProvider interface {
	Stats() domain.PipelineStats
}

// StatusHandler serves the run mode and pipeline state.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	stats     StatsProvider
}

// NewStatusHandler creates a StatusHandler. stats may be nil when no
// pipeline runs in this mode.
func NewStatusHandler(mode string, startedAt time.Time, stats StatsProvider) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, stats: stats}
}

type pipelineView struct {
	State                string `json:"state"`
	Markets              int    `json:"markets"`
	TrackedAssets        int    `json:"tracked_assets"`
	Edges                int    `json:"edges"`
	TicksApplied         int64  `json:"ticks_applied"`
	TicksIgnored         int64  `json:"ticks_ignored"`
	OpportunitiesEmitted int64  `json:"opportunities_emitted"`
	LastTickAt           string `json:"last_tick_at,omitempty"`
}

// GetStatus responds with the current mode, uptime and pipeline counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.stats != nil {
		st := h.stats.Stats()
		pv := pipelineView{
			State:                string(st.State),
			Markets:              st.Markets,
			TrackedAssets:        st.TrackedAssets,
			Edges:                st.Edges,
			TicksApplied:         st.TicksApplied,
			TicksIgnored:         st.TicksIgnored,
			OpportunitiesEmitted: st.OpportunitiesEmitted,
		}
		if !st.LastTickAt.IsZero() {
			pv.LastTickAt = st.LastTickAt.Format(time.RFC3339Nano)
		}
		resp["pipeline"] = pv
	}
	respond.JSON(w, http.StatusOK, resp)
}
