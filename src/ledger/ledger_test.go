package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"dailybuy/src/model"
	"dailybuy/src/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	fills map[model.ProductID][]model.Fill
	errs  map[model.ProductID]error
	calls []model.ProductID
}

func (f *fakeExchange) Fills(_ context.Context, p model.ProductID) ([]model.Fill, error) {
	f.calls = append(f.calls, p)
	if err := f.errs[p]; err != nil {
		return nil, err
	}
	return f.fills[p], nil
}

type fakeSheets struct {
	sheets map[string][]model.Fill
	err    error
}

func (f *fakeSheets) Fills(_ context.Context, sheet string) ([]model.Fill, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sheets[sheet], nil
}

type fakeStore struct {
	rows []model.SupplementalFill
	err  error
}

func (f *fakeStore) FindBySource(_ context.Context, source string) ([]model.SupplementalFill, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SupplementalFill
	for _, r := range f.rows {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out, nil
}

func fill(product string, tradeID int64) model.Fill {
	return model.Fill{
		TradeID:   tradeID,
		ProductID: product,
		Side:      model.SideBuy,
		Size:      decimal.NewFromInt(1),
		Price:     decimal.NewFromInt(100),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCollectMergesSources(t *testing.T) {
	rep := report.New(nil)
	exchange := &fakeExchange{fills: map[model.ProductID][]model.Fill{
		"BTC-USD": {fill("BTC-USD", 1), fill("BTC-USD", 2)},
		"ETH-USD": {fill("ETH-USD", 3)},
	}}
	sheets := &fakeSheets{sheets: map[string][]model.Fill{
		"2022": {fill("BTC-USD", 0), fill("DOGE-USD", 0)},
		"2023": {fill("ETH-USD", 0)},
	}}
	store := &fakeStore{rows: []model.SupplementalFill{
		{Source: "otc", Product: "BTC-USD", Side: "buy", Size: decimal.NewFromInt(2), Price: decimal.NewFromInt(90)},
		{Source: "other", Product: "BTC-USD", Side: "buy", Size: decimal.NewFromInt(9), Price: decimal.NewFromInt(9)},
	}}

	agg := NewAggregator(exchange, rep,
		Collection{Source: NewSheetSource(sheets), Names: []string{"2022", "2023"}},
		Collection{Source: NewDatabaseSource(store), Names: []string{"otc"}},
	)
	got := agg.Collect(context.Background(), []model.ProductID{"BTC-USD", "ETH-USD", "SOL-USD"})

	require.Len(t, got, 3)
	assert.Len(t, got["BTC-USD"], 4)
	assert.Len(t, got["ETH-USD"], 2)
	assert.Empty(t, got["SOL-USD"])
	assert.NotContains(t, got, model.ProductID("DOGE-USD"))

	// supplemental first, exchange appended
	assert.Equal(t, "otc", got["BTC-USD"][1].Source)
	assert.Equal(t, int64(2), got["BTC-USD"][3].TradeID)

	assert.Equal(t, []model.ProductID{"BTC-USD", "ETH-USD", "SOL-USD"}, exchange.calls)
	assert.Empty(t, rep.Errors())
}

// The same trade in a sheet and on the exchange is counted twice.
func TestCollectKeepsDuplicates(t *testing.T) {
	rep := report.New(nil)
	dup := fill("BTC-USD", 42)
	exchange := &fakeExchange{fills: map[model.ProductID][]model.Fill{"BTC-USD": {dup}}}
	sheets := &fakeSheets{sheets: map[string][]model.Fill{"buys": {dup}}}

	agg := NewAggregator(exchange, rep, Collection{Source: NewSheetSource(sheets), Names: []string{"buys"}})
	got := agg.Collect(context.Background(), []model.ProductID{"BTC-USD"})

	assert.Len(t, got["BTC-USD"], 2)
}

func TestCollectRejectsUnexpectedProduct(t *testing.T) {
	rep := report.New(nil)
	exchange := &fakeExchange{fills: map[model.ProductID][]model.Fill{
		"BTC-USD": {fill("BTC-USD", 1), fill("BTC-EUR", 2)},
	}}

	got := NewAggregator(exchange, rep).Collect(context.Background(), []model.ProductID{"BTC-USD"})
	assert.Len(t, got["BTC-USD"], 1)

	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Unexpected product BTC-EUR")
}

func TestCollectSurvivesFailures(t *testing.T) {
	rep := report.New(nil)
	exchange := &fakeExchange{errs: map[model.ProductID]error{"BTC-USD": errors.New("boom")}}
	sheets := &fakeSheets{err: errors.New("403")}
	store := &fakeStore{err: errors.New("db down")}

	agg := NewAggregator(exchange, rep,
		Collection{Source: NewSheetSource(sheets), Names: []string{"x"}},
		Collection{Source: NewDatabaseSource(store), Names: []string{"y"}},
	)
	got := agg.Collect(context.Background(), []model.ProductID{"BTC-USD"})

	assert.Empty(t, got["BTC-USD"])
	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "boom")
}

func TestSourcesReturnEmptyOnError(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, NewSheetSource(&fakeSheets{err: errors.New("x")}).Get(ctx, "a"))
	assert.Empty(t, NewDatabaseSource(&fakeStore{err: errors.New("x")}).Get(ctx, "a"))
}
