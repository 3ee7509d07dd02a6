package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is an on-chain order-filled event.
type Fill struct {
	TransactionHash   string
	Timestamp         time.Time
	Maker             string
	MakerAssetID      string
	MakerAmountFilled decimal.Decimal
	Taker             string
	TakerAssetID      string
	TakerAmountFilled decimal.Decimal
}

// Execution is one wallet's interaction with a market, derived from a fill.
type Execution struct {
	Wallet    string
	MarketID  string
	AssetID   string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// FlaggedWallet is a wallet whose activity looks like multi-leg arbitrage.
type FlaggedWallet struct {
	Wallet     string
	MarketIDs  []string // markets with more than one execution
	Executions int
	FlaggedAt  time.Time
}
