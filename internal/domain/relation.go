package domain

import "time"

// RelatednessEdge is an unordered pair of markets judged worth comparing.
type RelatednessEdge struct {
	MarketA    string
	MarketB    string
	Similarity float64
	RunID      string
	CreatedAt  time.Time
}
