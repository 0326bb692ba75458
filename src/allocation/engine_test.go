package allocation

import (
	"math"
	"testing"
	"time"

	"dailybuy/src/model"
	"dailybuy/src/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(rep *report.Report, opts ...Option) *Engine {
	all := []Option{
		WithWeighting(Weighting{MaxDays: 7, Exponent: 1}),
		WithPriceNudgeTicks(20),
		WithClock(func() time.Time { return testNow }),
	}
	return NewEngine(rep, append(all, opts...)...)
}

func buy(product string, size, price string, at time.Time) model.Fill {
	return model.Fill{
		ProductID: product,
		Side:      model.SideBuy,
		Size:      decimal.RequireFromString(size),
		Price:     decimal.RequireFromString(price),
		CreatedAt: at,
	}
}

func btcLikeProduct(id string) model.Product {
	return model.Product{
		ID:             id,
		BaseIncrement:  decimal.RequireFromString("0.00000001"),
		QuoteIncrement: decimal.RequireFromString("0.01"),
		BaseMinSize:    decimal.RequireFromString("0.0001"),
	}
}

func flatStats(last string) model.ProductStats {
	p := decimal.RequireFromString(last)
	return model.ProductStats{Open: p, Last: p}
}

func TestRoundIdempotent(t *testing.T) {
	units := []string{"0.00000001", "0.000001", "0.01", "0.1", "1", "0.5"}
	values := []float64{0, 1.23456789123, 0.000000015, 99.995, 12345.6789, -3.14159, 2.5}

	for _, u := range units {
		unit := decimal.RequireFromString(u)
		for _, v := range values {
			once := Round(v, unit)
			twice := Round(once.InexactFloat64(), unit)
			assert.Truef(t, once.Equal(twice), "round(%v, %s): %s then %s", v, u, once, twice)
		}
	}
}

func TestRoundPlaces(t *testing.T) {
	assert.Equal(t, int32(8), Places(decimal.RequireFromString("0.00000001")))
	assert.Equal(t, int32(2), Places(decimal.RequireFromString("0.01")))
	assert.Equal(t, int32(0), Places(decimal.NewFromInt(1)))
	assert.Equal(t, int32(2), Places(decimal.Zero))
	assert.Equal(t, int32(0), Places(decimal.RequireFromString("0.25")))
	assert.Equal(t, int32(1), Places(decimal.RequireFromString("0.05")))
	assert.Equal(t, int32(0), Places(decimal.NewFromInt(10)))
	assert.Equal(t, "3", Round(2.6, decimal.RequireFromString("0.25")).String())

	assert.Equal(t, "1.23", Round(1.2345, decimal.RequireFromString("0.01")).String())
	assert.Equal(t, "0.00012346", Round(0.000123456, decimal.RequireFromString("0.00000001")).String())
	assert.True(t, Round(math.NaN(), decimal.RequireFromString("0.01")).IsZero())
}

func TestAdjustWeightNeutral(t *testing.T) {
	for _, e := range []float64{0.5, 1, 2, 3} {
		assert.InDelta(t, 2.0, AdjustWeight(2, 100, 100, e), 1e-12)
	}
	// cheaper than average is rewarded, dearer is penalised
	assert.Greater(t, AdjustWeight(1, 100, 90, 1), 1.0)
	assert.Less(t, AdjustWeight(1, 100, 110, 1), 1.0)
	// fractional exponent on a negative base stays real
	assert.False(t, math.IsNaN(AdjustWeight(1, 100, 110, 0.5)))
	// missing price is neutral
	assert.Equal(t, 3.0, AdjustWeight(3, 100, 0, 1))
}

func TestChangeScale(t *testing.T) {
	assert.Equal(t, 1.0, ChangeScale(100, 100))
	assert.InDelta(t, 0.6, ChangeScale(90, 100), 1e-9)
	assert.InDelta(t, 1.01, ChangeScale(110, 100), 1e-9)
	assert.Equal(t, 1.0, ChangeScale(100, 0))
	assert.Equal(t, 1.0, ChangeScale(0, 100))
}

func TestAverageCostWithoutBuys(t *testing.T) {
	amount, cost := BuyTotals([]model.Fill{{Side: "sell", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(5)}})
	assert.Zero(t, amount)
	assert.True(t, math.IsNaN(AverageCost(amount, cost)))
}

func TestComputeTwoProducts(t *testing.T) {
	rep := report.New(nil)
	old := testNow.Add(-10 * 24 * time.Hour)

	inputs := []Input{
		{
			Product: "AAA-USD", Weight: 2,
			Fills: []model.Fill{buy("AAA-USD", "1", "100", old)},
			Info:  btcLikeProduct("AAA-USD"), Stats: flatStats("90"),
		},
		{
			Product: "BBB-USD", Weight: 1,
			Fills: []model.Fill{buy("BBB-USD", "2", "100", old)},
			Info:  btcLikeProduct("BBB-USD"), Stats: flatStats("110"),
		},
	}

	plan := newTestEngine(rep).Compute(inputs, 30)
	require.Len(t, plan.Products, 2)
	a, b := plan.Products[0], plan.Products[1]

	assert.InDelta(t, 100, a.AverageCost, 1e-9)
	assert.InDelta(t, 100, b.AverageCost, 1e-9)
	assert.Greater(t, a.AdjustedWeight, b.AdjustedWeight)
	assert.Equal(t, 7.0, a.Elapsed)
	assert.Equal(t, 7.0, b.Elapsed)
	assert.Equal(t, 1.0, a.ChangeScale)
	assert.InDelta(t, 30*7, a.SpendRatio+b.SpendRatio, 1e-6)
	assert.InDelta(t, a.AdjustedWeight+b.AdjustedWeight, plan.TotalWeight, 1e-12)

	require.True(t, a.Planned())
	require.True(t, b.Planned())
	assert.Equal(t, "90.2", a.AdjustedPrice.Decimal.String())
	assert.Equal(t, "110.2", b.AdjustedPrice.Decimal.String())

	expected := a.Notional().Add(b.Notional())
	assert.True(t, plan.AmountToDeposit.Equal(expected))
	assert.True(t, plan.Spent().Equal(expected))
	assert.Empty(t, rep.Errors())
}

func TestComputeRejectsBelowMinimumSize(t *testing.T) {
	rep := report.New(nil)
	old := testNow.Add(-2 * 24 * time.Hour)

	tiny := btcLikeProduct("BTC-USD")
	tiny.BaseMinSize = decimal.NewFromInt(1)

	inputs := []Input{
		{Product: "BTC-USD", Weight: 1, Fills: []model.Fill{buy("BTC-USD", "0.1", "50000", old)}, Info: tiny, Stats: flatStats("50000")},
		{Product: "ETH-USD", Weight: 1, Fills: []model.Fill{buy("ETH-USD", "1", "2000", old)}, Info: btcLikeProduct("ETH-USD"), Stats: flatStats("2000")},
	}

	plan := newTestEngine(rep).Compute(inputs, 10)
	btc, eth := plan.Products[0], plan.Products[1]

	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "too small for BTC-USD")

	assert.False(t, btc.AmountToBuy.Valid)
	assert.False(t, btc.Planned())
	require.True(t, eth.Planned())
	assert.True(t, plan.AmountToDeposit.Equal(eth.Notional()))
}

func TestComputeSkipsProductWithoutBuys(t *testing.T) {
	rep := report.New(nil)
	inputs := []Input{
		{Product: "SOL-USD", Weight: 1, Fills: []model.Fill{{ProductID: "SOL-USD", Side: "sell", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(20)}}, Info: btcLikeProduct("SOL-USD"), Stats: flatStats("20")},
		{Product: "ETH-USD", Weight: 1, Fills: []model.Fill{buy("ETH-USD", "1", "2000", testNow.Add(-24*time.Hour))}, Info: btcLikeProduct("ETH-USD"), Stats: flatStats("2000")},
	}

	plan := newTestEngine(rep).Compute(inputs, 10)
	assert.False(t, plan.Products[0].Weighted)
	assert.False(t, plan.Products[0].Planned())
	assert.True(t, plan.Products[1].Planned())
	assert.InDelta(t, 1.0, plan.TotalWeight, 1e-12)
	assert.Len(t, rep.Errors(), 1)
}

func TestElapsedClampAndOverride(t *testing.T) {
	rep := report.New(nil)
	recent := testNow.Add(-36 * time.Hour)
	in := Input{Product: "ETH-USD", Weight: 1, Fills: []model.Fill{buy("ETH-USD", "1", "2000", recent)}, Info: btcLikeProduct("ETH-USD"), Stats: flatStats("2000")}

	plan := newTestEngine(rep).Compute([]Input{in}, 10)
	assert.InDelta(t, 1.5, plan.Products[0].Elapsed, 1e-9)
	assert.Equal(t, recent, plan.Products[0].LastBuy)

	plan = newTestEngine(rep, WithOverrideDays(3)).Compute([]Input{in}, 10)
	assert.InDelta(t, 3.0, plan.Products[0].Elapsed, 1e-9)

	// undated history counts as dormant
	undated := in
	undated.Fills = []model.Fill{buy("ETH-USD", "1", "2000", time.Time{})}
	plan = newTestEngine(rep).Compute([]Input{undated}, 10)
	assert.Equal(t, 7.0, plan.Products[0].Elapsed)
}

func TestComputeNothingWeighted(t *testing.T) {
	rep := report.New(nil)
	plan := newTestEngine(rep).Compute([]Input{{Product: "ETH-USD", Weight: 1}}, 10)
	assert.True(t, plan.AmountToDeposit.IsZero())
	assert.Len(t, rep.Errors(), 2)
}
