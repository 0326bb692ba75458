package allocation

import (
	"math"
	"time"

	"dailybuy/src/model"
	"dailybuy/src/report"
	"dailybuy/src/utils"

	"github.com/shopspring/decimal"
)

const (
	// Spend multipliers applied to the 24h change, see changeScale.
	dipScaleFactor  = 4.0
	pumpScaleFactor = 0.1
)

// Weighting tunes pass 1. Zero values fall back to the env config.
type Weighting struct {
	MaxDays  float64 `json:"maxDays"`
	Exponent float64 `json:"exponent"`
}

// Input is everything the engine needs to plan one product.
type Input struct {
	Product model.ProductID
	Weight  float64
	Fills   []model.Fill
	Info    model.Product
	Stats   model.ProductStats
}

// ProductPlan is the per-product working state across both passes.
type ProductPlan struct {
	Product        model.ProductID     `json:"product"`
	Weight         float64             `json:"weight"`
	TotalAmount    float64             `json:"totalAmount"`
	TotalCost      float64             `json:"totalCost"`
	AverageCost    float64             `json:"averageCost"`
	AdjustedWeight float64             `json:"adjustedWeight"`
	LastBuy        time.Time           `json:"lastBuy"`
	Elapsed        float64             `json:"elapsed"`
	ChangeScale    float64             `json:"changeScale"`
	SpendRatio     float64             `json:"spendRatio"`
	AmountToBuy    decimal.NullDecimal `json:"amountToBuy"`
	AdjustedPrice  decimal.NullDecimal `json:"adjustedPrice"`

	// Weighted is false when the product has no buy history to average.
	Weighted bool `json:"weighted"`

	info  model.Product
	stats model.ProductStats
}

// Planned reports whether the product made it to an order.
func (p *ProductPlan) Planned() bool {
	return p.AmountToBuy.Valid && p.AdjustedPrice.Valid
}

// Notional is amountToBuy * adjustedPrice, zero when not planned.
func (p *ProductPlan) Notional() decimal.Decimal {
	if !p.Planned() {
		return decimal.Zero
	}
	return p.AmountToBuy.Decimal.Mul(p.AdjustedPrice.Decimal)
}

// Plan is the outcome of one allocation run.
type Plan struct {
	Products        []*ProductPlan  `json:"products"`
	TotalWeight     float64         `json:"totalWeight"`
	AmountToDeposit decimal.Decimal `json:"amountToDeposit"`
}

// Spent is the sum of notionals of planned products.
func (p *Plan) Spent() decimal.Decimal {
	total := decimal.Zero
	for _, pp := range p.Products {
		total = total.Add(pp.Notional())
	}
	return total
}

type Engine struct {
	maxDays      float64
	exponent     float64
	overrideDays float64
	nudgeTicks   int64
	now          func() time.Time
	report       *report.Report
}

type Option func(*Engine)

func WithWeighting(w Weighting) Option {
	return func(e *Engine) {
		if w.MaxDays > 0 {
			e.maxDays = w.MaxDays
		}
		if w.Exponent > 0 {
			e.exponent = w.Exponent
		}
	}
}

// WithOverrideDays forces elapsed to be at least days.
func WithOverrideDays(days float64) Option {
	return func(e *Engine) { e.overrideDays = days }
}

func WithPriceNudgeTicks(k int64) Option {
	return func(e *Engine) { e.nudgeTicks = k }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(rep *report.Report, opts ...Option) *Engine {
	config := GetConfig()
	e := &Engine{
		maxDays:    config.WeightingMaxDays,
		exponent:   config.WeightingExponent,
		nudgeTicks: config.PriceNudgeTicks,
		now:        time.Now,
		report:     rep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs both passes over inputs and returns the plan, in input order.
// budget is the daily spend in quote currency.
func (e *Engine) Compute(inputs []Input, budget float64) *Plan {
	plan := &Plan{Products: make([]*ProductPlan, 0, len(inputs))}
	now := e.now()

	for _, in := range inputs {
		pp := e.weigh(in, now)
		plan.Products = append(plan.Products, pp)
		if pp.Weighted {
			plan.TotalWeight += pp.AdjustedWeight
		}
	}

	if plan.TotalWeight <= 0 {
		e.report.Errorf(map[string]float64{"totalWeight": plan.TotalWeight},
			"Total adjusted weight is %.4f, nothing to allocate", plan.TotalWeight)
		plan.AmountToDeposit = decimal.Zero
		return plan
	}

	deposit := decimal.Zero
	for _, pp := range plan.Products {
		if !pp.Weighted {
			continue
		}
		if e.spend(pp, plan.TotalWeight, budget) {
			deposit = deposit.Add(pp.Notional())
		}
	}
	plan.AmountToDeposit = deposit
	return plan
}

// weigh is pass 1: cost basis, adjusted weight and elapsed days.
func (e *Engine) weigh(in Input, now time.Time) *ProductPlan {
	pp := &ProductPlan{
		Product: in.Product,
		Weight:  in.Weight,
		info:    in.Info,
		stats:   in.Stats,
	}

	pp.TotalAmount, pp.TotalCost = BuyTotals(in.Fills)
	avg := AverageCost(pp.TotalAmount, pp.TotalCost)
	if math.IsNaN(avg) {
		e.report.Errorf(map[string]any{"product": in.Product, "fills": len(in.Fills)},
			"No buy history for %s, cannot compute its weight", in.Product)
		return pp
	}
	pp.AverageCost = avg
	pp.Weighted = true

	last := in.Stats.Last.InexactFloat64()
	pp.AdjustedWeight = AdjustWeight(in.Weight, avg, last, e.exponent)

	elapsed := e.maxDays
	if latest, ok := LatestBuy(in.Fills); ok {
		pp.LastBuy = latest
		elapsed = math.Min(e.maxDays, utils.DaysBetween(now, latest))
	}
	if e.overrideDays > 0 {
		elapsed = math.Max(elapsed, e.overrideDays)
	}
	pp.Elapsed = elapsed

	return pp
}

// spend is pass 2. It returns false when the product is excluded from purchases.
func (e *Engine) spend(pp *ProductPlan, totalWeight, budget float64) bool {
	last := pp.stats.Last.InexactFloat64()
	if last <= 0 {
		e.report.Errorf(map[string]any{"product": pp.Product, "stats": pp.stats},
			"No last price for %s, skipping purchase", pp.Product)
		return false
	}

	pp.ChangeScale = ChangeScale(last, pp.stats.Open.InexactFloat64())
	pp.SpendRatio = (budget * pp.Elapsed * (pp.AdjustedWeight / totalWeight)) / pp.ChangeScale
	if math.IsInf(pp.SpendRatio, 0) || math.IsNaN(pp.SpendRatio) {
		pp.SpendRatio = 0
	}

	amount := Round(pp.SpendRatio/last, pp.info.BaseIncrement)
	if !amount.IsPositive() || amount.LessThan(pp.info.BaseMinSize) {
		e.report.Errorf(map[string]any{"amount": amount, "product": pp.info},
			"Purchase amount %s is too small for %s. Minimum amount is %s",
			amount.String(), pp.Product, pp.info.BaseMinSize.String())
		pp.AmountToBuy = decimal.NullDecimal{}
		return false
	}

	ticks := pp.info.QuoteIncrement.Mul(decimal.NewFromInt(e.nudgeTicks))
	price := RoundDecimal(pp.stats.Last.Add(ticks), pp.info.QuoteIncrement)

	pp.AmountToBuy = decimal.NewNullDecimal(amount)
	pp.AdjustedPrice = decimal.NewNullDecimal(price)
	return true
}

// BuyTotals sums size and price*size over buy fills.
func BuyTotals(fills []model.Fill) (amount, cost float64) {
	for _, f := range fills {
		if !f.IsBuy() {
			continue
		}
		amount += f.Size.InexactFloat64()
		cost += f.Cost().InexactFloat64()
	}
	return amount, cost
}

// AverageCost is cost/amount, NaN when nothing was bought.
func AverageCost(amount, cost float64) float64 {
	if amount == 0 {
		return math.NaN()
	}
	return cost / amount
}

// AdjustWeight is weight * ((avg/last - 1)^exponent + 1). A product trading
// below its average cost gets more weight. A zero last price counts as neutral.
func AdjustWeight(weight, averageCost, last, exponent float64) float64 {
	ratio := 1.0
	if last > 0 {
		ratio = averageCost / last
	}
	return weight * (signedPow(ratio-1, exponent) + 1)
}

// ChangeScale damps spend after a 24h rise and boosts it after a fall.
// Missing prices count as no change.
func ChangeScale(last, open float64) float64 {
	if last <= 0 {
		return 1
	}
	if open <= 0 {
		open = last
	}
	change := last / open
	if change < 1 {
		return (change-1)*dipScaleFactor + 1
	}
	return (change-1)*pumpScaleFactor + 1
}

// LatestBuy returns the newest dated buy fill timestamp.
func LatestBuy(fills []model.Fill) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, f := range fills {
		if !f.IsBuy() || f.CreatedAt.IsZero() {
			continue
		}
		if !found || f.CreatedAt.After(latest) {
			latest = f.CreatedAt
			found = true
		}
	}
	return latest, found
}
