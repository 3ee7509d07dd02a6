package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one price update for a single tradable asset.
type Tick struct {
	AssetID    string
	Price      decimal.Decimal
	ReceivedAt time.Time
}
