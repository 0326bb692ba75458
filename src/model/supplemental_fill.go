package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplementalFill is a purchase recorded outside the exchange (another broker,
// an OTC buy) and kept in the supplemental_fills table. Rows are grouped by Source,
// the same way a spreadsheet groups them by sheet name.
type SupplementalFill struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Source    string          `gorm:"size:100;not null;index" json:"source"`
	Product   string          `gorm:"size:30;not null;index" json:"product"`
	Side      string          `gorm:"size:10;not null" json:"side"`
	Size      decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"size"`
	Price     decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"price"`
	// Nil for undated rows. Those count toward the cost basis but not toward
	// the time since the last buy, so the column is never stamped by gorm.
	CreatedAt *time.Time `gorm:"autoCreateTime:false" json:"created_at,omitempty"`
}

func (SupplementalFill) TableName() string {
	return "supplemental_fills"
}

// ToFill converts the row into the ledger representation.
func (s SupplementalFill) ToFill() Fill {
	fill := Fill{
		ProductID: s.Product,
		Side:      s.Side,
		Size:      s.Size,
		Price:     s.Price,
		Source:    s.Source,
	}
	if s.CreatedAt != nil {
		fill.CreatedAt = *s.CreatedAt
	}
	return fill
}

// NewSupplementalFill is the row stored for a fill imported under source.
func NewSupplementalFill(f Fill, source string) SupplementalFill {
	row := SupplementalFill{
		Source:  source,
		Product: f.ProductID,
		Side:    f.Side,
		Size:    f.Size,
		Price:   f.Price,
	}
	if !f.CreatedAt.IsZero() {
		at := f.CreatedAt
		row.CreatedAt = &at
	}
	return row
}
