package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	// SourceCoinbase tags fills that came from the exchange itself.
	SourceCoinbase = "coinbase"
)

// Fill is one executed trade, either from the exchange or a supplemental ledger.
type Fill struct {
	TradeID   int64           `json:"trade_id,omitempty"`
	ProductID string          `json:"product_id"`
	Side      string          `json:"side"`
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
	Source    string          `json:"source,omitempty"`
}

// IsBuy matches the side case-insensitively, so "Buy" and "BUY" rows from
// spreadsheets count as purchases.
func (f Fill) IsBuy() bool {
	return strings.Contains(strings.ToLower(f.Side), SideBuy)
}

// Cost is price * size.
func (f Fill) Cost() decimal.Decimal {
	return f.Price.Mul(f.Size)
}
