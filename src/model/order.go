package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// OrderRequest is the body of POST /orders. The planner only ever sends limit buys.
type OrderRequest struct {
	Type      string          `json:"type"`
	Side      string          `json:"side"`
	ProductID string          `json:"product_id"`
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"`
	ClientOid string          `json:"client_oid,omitempty"`
}

// NewLimitBuy builds the order the planner submits for one product.
func NewLimitBuy(product ProductID, size, price decimal.Decimal, clientOid string) OrderRequest {
	return OrderRequest{
		Type:      OrderTypeLimit,
		Side:      SideBuy,
		ProductID: product.String(),
		Size:      size,
		Price:     price,
		ClientOid: clientOid,
	}
}

// Notional is size * price.
func (o OrderRequest) Notional() decimal.Decimal {
	return o.Size.Mul(o.Price)
}

// Order is an order as reported by the exchange.
type Order struct {
	ID            string          `json:"id"`
	ClientOid     string          `json:"client_oid,omitempty"`
	ProductID     string          `json:"product_id"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	FilledSize    decimal.Decimal `json:"filled_size"`
	ExecutedValue decimal.Decimal `json:"executed_value"`
	Status        string          `json:"status"`
	Settled       bool            `json:"settled"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderRef addresses a single order. ClientOid wins over ID when both are set.
type OrderRef struct {
	ID        string
	ClientOid string
}

// PathSegment renders the ref the way the exchange expects in /orders/{ref}.
func (r OrderRef) PathSegment() string {
	if r.ClientOid != "" {
		return "client:" + r.ClientOid
	}
	return r.ID
}

// ListOrdersParams filters GET /orders.
type ListOrdersParams struct {
	ProductID string
	Status    []string
}
