package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var productIDPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}-[A-Z0-9]{2,10}$`)

// ProductID is an exchange product identifier such as "BTC-USD".
type ProductID string

// ParseProductID normalizes s and checks it has the BASE-QUOTE shape.
func ParseProductID(s string) (ProductID, error) {
	id := strings.ToUpper(strings.TrimSpace(s))
	if !productIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid product id %q", s)
	}
	return ProductID(id), nil
}

func (p ProductID) String() string { return string(p) }

// Quote returns the quote currency, "USD" for "BTC-USD".
func (p ProductID) Quote() string {
	if i := strings.LastIndex(string(p), "-"); i >= 0 {
		return string(p)[i+1:]
	}
	return ""
}

// Product is the trading metadata returned by GET /products/{id}.
type Product struct {
	ID              string          `json:"id"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteCurrency   string          `json:"quote_currency"`
	BaseIncrement   decimal.Decimal `json:"base_increment"`
	QuoteIncrement  decimal.Decimal `json:"quote_increment"`
	BaseMinSize     decimal.Decimal `json:"base_min_size"`
	Status          string          `json:"status,omitempty"`
	TradingDisabled bool            `json:"trading_disabled,omitempty"`
}

// ProductStats is the 24h snapshot returned by GET /products/{id}/stats.
type ProductStats struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Last   decimal.Decimal `json:"last"`
	Volume decimal.Decimal `json:"volume"`
}

// Ticker is the last trade snapshot returned by GET /products/{id}/ticker.
type Ticker struct {
	TradeID int64           `json:"trade_id"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Volume  decimal.Decimal `json:"volume"`
	Time    string          `json:"time"`
}
