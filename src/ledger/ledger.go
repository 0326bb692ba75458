package ledger

import (
	"context"

	"dailybuy/src/connectors"
	"dailybuy/src/model"
	"dailybuy/src/report"

	logger "github.com/sirupsen/logrus"
)

// Source is a read-only supplemental ledger. Get never fails: errors are logged
// and yield an empty list.
type Source interface {
	Get(ctx context.Context, name string) []model.Fill
}

// Collection is one source plus the names to read from it (sheet names,
// source tags in the database).
type Collection struct {
	Source Source
	Names  []string
}

// ExchangeFills fetches the account's fills for one product.
type ExchangeFills interface {
	Fills(ctx context.Context, product model.ProductID) ([]model.Fill, error)
}

// Aggregator builds the fill history of every tracked product.
type Aggregator struct {
	exchange    ExchangeFills
	collections []Collection
	report      *report.Report
}

func NewAggregator(exchange ExchangeFills, rep *report.Report, collections ...Collection) *Aggregator {
	return &Aggregator{exchange: exchange, collections: collections, report: rep}
}

// Collect returns the supplemental fills of each tracked product followed by its
// exchange fills. Every tracked product has an entry, possibly empty.
// No deduplication is done: a trade recorded in both places counts twice.
func (a *Aggregator) Collect(ctx context.Context, products []model.ProductID) map[model.ProductID][]model.Fill {
	out := make(map[model.ProductID][]model.Fill, len(products))
	for _, p := range products {
		out[p] = []model.Fill{}
	}

	for _, c := range a.collections {
		if c.Source == nil {
			continue
		}
		for _, name := range c.Names {
			kept := 0
			for _, f := range c.Source.Get(ctx, name) {
				id := model.ProductID(f.ProductID)
				if _, tracked := out[id]; !tracked {
					continue
				}
				out[id] = append(out[id], f)
				kept++
			}
			logger.WithFields(logger.Fields{"source": name, "fills": kept}).Debug("Supplemental fills collected")
		}
	}

	for _, p := range products {
		fills, err := a.exchange.Fills(ctx, p)
		if err != nil {
			a.report.Errorf(map[string]any{"product": p, "error": err.Error()},
				"Could not fetch fills for %s: %s", p, connectors.ErrorMessage(err))
			continue
		}
		for _, f := range fills {
			if f.ProductID != p.String() {
				a.report.Errorf(map[string]any{"expected": p, "got": f.ProductID, "trade_id": f.TradeID},
					"Unexpected product %s in fills for %s, ignored", f.ProductID, p)
				continue
			}
			out[p] = append(out[p], f)
		}
	}

	return out
}
