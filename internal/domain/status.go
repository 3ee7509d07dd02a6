package domain

import "time"

// PipelineState is the state of the streaming pipeline.
type PipelineState string

const (
	PipelineIdle     PipelineState = "idle"
	PipelineApplying PipelineState = "applying"
	PipelineStopped  PipelineState = "stopped"
)

// PipelineStats is a point-in-time view of the streaming pipeline.
type PipelineStats struct {
	State                PipelineState
	Markets              int
	TrackedAssets        int
	Edges                int
	TicksApplied         int64
	TicksIgnored         int64
	OpportunitiesEmitted int64
	LastTickAt           time.Time
}
