package planner

import (
	"context"
	"math"
	"time"

	"dailybuy/src/allocation"
	"dailybuy/src/connectors"
	"dailybuy/src/ledger"
	"dailybuy/src/model"
)

type Elapsed struct {
	Days    float64 `json:"days"`
	Hours   float64 `json:"hours"`
	Minutes float64 `json:"minutes"`
	Seconds float64 `json:"seconds"`
}

func newElapsed(d time.Duration) Elapsed {
	return Elapsed{
		Days:    d.Hours() / 24,
		Hours:   d.Hours(),
		Minutes: d.Minutes(),
		Seconds: d.Seconds(),
	}
}

// ProductReport is the cost-basis snapshot of one product.
type ProductReport struct {
	Product     model.ProductID     `json:"product"`
	Fills       int                 `json:"fills"`
	TotalAmount float64             `json:"totalAmount"`
	TotalCost   float64             `json:"totalCost"`
	AverageCost *float64            `json:"averageCost"`
	Latest      *time.Time          `json:"latest,omitempty"`
	Elapsed     *Elapsed            `json:"elapsed,omitempty"`
	Info        *model.Product      `json:"product_info,omitempty"`
	Stats       *model.ProductStats `json:"stats,omitempty"`
}

// Stats reports totals, average cost and time since the last buy for each
// product. Products without any fill are left out. Nothing is deposited or ordered.
func (p *Planner) Stats(ctx context.Context, products []string) map[model.ProductID]ProductReport {
	ids := make([]model.ProductID, 0, len(products))
	for _, raw := range products {
		id, err := model.ParseProductID(raw)
		if err != nil {
			p.report.Errorf(raw, "Invalid product %q, skipped", raw)
			continue
		}
		ids = append(ids, id)
	}

	fills := ledger.NewAggregator(p.exchange, p.report, p.collections...).Collect(ctx, ids)
	now := p.now()

	out := make(map[model.ProductID]ProductReport, len(ids))
	for _, id := range ids {
		if len(fills[id]) == 0 {
			continue
		}

		r := ProductReport{Product: id, Fills: len(fills[id])}
		r.TotalAmount, r.TotalCost = allocation.BuyTotals(fills[id])
		if avg := allocation.AverageCost(r.TotalAmount, r.TotalCost); !math.IsNaN(avg) {
			r.AverageCost = &avg
		}
		if latest, ok := allocation.LatestBuy(fills[id]); ok {
			e := newElapsed(now.Sub(latest))
			r.Latest = &latest
			r.Elapsed = &e
		}

		if info, err := p.exchange.Product(ctx, id); err == nil {
			r.Info = info
		} else {
			p.report.Errorf(map[string]any{"product": id}, "Could not load product %s: %s", id, connectors.ErrorMessage(err))
		}
		if stats, err := p.exchange.ProductStats(ctx, id); err == nil {
			r.Stats = stats
		} else {
			p.report.Errorf(map[string]any{"product": id}, "Could not load stats for %s: %s", id, connectors.ErrorMessage(err))
		}

		out[id] = r
	}
	return out
}
