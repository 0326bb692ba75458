package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"dailybuy/src/allocation"
	"dailybuy/src/connectors"
	"dailybuy/src/ledger"
	"dailybuy/src/metrics"
	"dailybuy/src/model"
	"dailybuy/src/report"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type State string

const (
	StateComputingPlan      State = "COMPUTING_PLAN"
	StateSizingDeposit      State = "SIZING_DEPOSIT"
	StateAwaitingSettlement State = "AWAITING_SETTLEMENT"
	StatePlacingOrders      State = "PLACING_ORDERS"
	StateDone               State = "DONE"
	StateAborted            State = "ABORTED"
)

var (
	ErrMissingOrders  = errors.New("missing orders")
	ErrMissingDeposit = errors.New("missing deposit source or amount")
	ErrNoProducts     = errors.New("no valid products to plan")
	ErrDepositTooHigh = errors.New("calculated deposit is too high")
	ErrInvalidDeposit = errors.New("invalid amount to deposit")
	ErrAccounts       = errors.New("could not read accounts")
)

// Exchange is what the planner needs from the exchange client.
type Exchange interface {
	ledger.ExchangeFills
	Product(ctx context.Context, product model.ProductID) (*model.Product, error)
	ProductStats(ctx context.Context, product model.ProductID) (*model.ProductStats, error)
	Accounts(ctx context.Context) ([]model.Account, error)
	PaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
	DepositFromPaymentMethod(ctx context.Context, deposit model.DepositRequest) (*model.Deposit, error)
	PlaceOrder(ctx context.Context, order model.OrderRequest) (*model.Order, error)
}

// Result is the outcome of one run.
type Result struct {
	State     State            `json:"state"`
	Err       error            `json:"-"`
	Plan      *allocation.Plan `json:"plan,omitempty"`
	Deposited decimal.Decimal  `json:"deposited"`
	Summary   report.Summary   `json:"summary"`
}

type Planner struct {
	exchange    Exchange
	collections []ledger.Collection
	report      *report.Report
	config      Config

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	newClientOid func() string

	state State

	// progress of the current run, for Summary
	plan      *allocation.Plan
	deposited decimal.Decimal
	currency  string
}

type Option func(*Planner)

func WithCollections(collections ...ledger.Collection) Option {
	return func(p *Planner) { p.collections = append(p.collections, collections...) }
}

func WithSettle(polls int, interval time.Duration) Option {
	return func(p *Planner) {
		p.config.SettlePolls = polls
		p.config.SettleInterval = interval
	}
}

func WithDryRun(dryRun bool) Option {
	return func(p *Planner) { p.config.DryRun = dryRun }
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Planner) { p.sleep = sleep }
}

func WithClientOid(gen func() string) Option {
	return func(p *Planner) { p.newClientOid = gen }
}

func New(exchange Exchange, rep *report.Report, opts ...Option) *Planner {
	p := &Planner{
		exchange:     exchange,
		report:       rep,
		config:       GetConfig(),
		now:          time.Now,
		sleep:        sleepContext,
		newClientOid: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Planner) State() State { return p.state }

// Currency is the deposit currency of orders, or DEPOSIT_CURRENCY.
func (p *Planner) Currency(orders *Orders) string {
	if orders != nil && orders.Deposit != nil && orders.Deposit.Currency != "" {
		return orders.Deposit.Currency
	}
	return p.config.DepositCurrency
}

// Summary reports what the current or last run spent and deposited so far.
// spent is counted whenever a plan exists, whatever happened to the orders.
func (p *Planner) Summary() report.Summary {
	currency := p.currency
	if currency == "" {
		currency = p.config.DepositCurrency
	}
	spent := decimal.Zero
	if p.plan != nil {
		spent = allocation.RoundCents(p.plan.Spent())
	}
	return report.NewSummary(spent, allocation.RoundCents(p.deposited), currency)
}

func (p *Planner) enter(s State) {
	logger.WithFields(logger.Fields{"from": p.state, "to": s}).Debug("Planner transition")
	p.state = s
}

func (p *Planner) abort(res *Result, err error) Result {
	p.enter(StateAborted)
	res.State = StateAborted
	res.Err = err
	metrics.Runs.WithLabelValues(strings.ToLower(string(StateAborted))).Inc()
	return *res
}

// Run executes one daily buy: plan, size and send the deposit, wait for it to
// settle, then place one limit buy per planned product.
func (p *Planner) Run(ctx context.Context, orders *Orders, overrides *Overrides) (res Result) {
	res.Deposited = decimal.Zero
	p.plan, p.deposited, p.currency = nil, decimal.Zero, p.Currency(orders)
	currency := p.currency
	defer func() { res.Summary = p.Summary() }()

	// COMPUTING_PLAN
	p.enter(StateComputingPlan)
	if orders == nil {
		p.report.Error("Missing orders, nothing to do", nil)
		return p.abort(&res, ErrMissingOrders)
	}
	if orders.Deposit == nil || strings.TrimSpace(orders.Deposit.Source) == "" || orders.Deposit.Amount <= 0 {
		p.report.Error("Missing deposit source or amount", orders.Deposit)
		return p.abort(&res, ErrMissingDeposit)
	}
	if orders.DryRun {
		p.config.DryRun = true
	}

	plan, err := p.computePlan(ctx, orders, overrides)
	if err != nil {
		return p.abort(&res, err)
	}
	res.Plan = plan
	p.plan = plan
	p.report.Infof(plan, "Planned %d of %d products, %s needed",
		countPlanned(plan), len(plan.Products), report.FormatMoney(allocation.RoundCents(plan.AmountToDeposit), currency))

	// SIZING_DEPOSIT
	p.enter(StateSizingDeposit)
	deposit := orders.Deposit
	minimum := orDefault(deposit.Minimum, p.config.DepositMinimum)
	maximum := orDefault(deposit.Maximum, p.config.DepositMaximum)

	amount := plan.AmountToDeposit.Mul(decimal.NewFromFloat(1 + p.config.DepositMargin))
	if amount.GreaterThanOrEqual(decimal.NewFromFloat(maximum)) {
		p.report.Errorf(map[string]any{"amount": amount, "maximum": maximum},
			"Calculated amount to deposit (%s) is too high.", report.FormatMoney(amount, currency))
		return p.abort(&res, ErrDepositTooHigh)
	}
	if !amount.IsPositive() {
		p.report.Errorf(map[string]any{"amount": amount, "deposit": deposit},
			"Invalid amount to deposit (%s).", report.FormatMoney(amount, currency))
		return p.abort(&res, ErrInvalidDeposit)
	}

	accounts, err := p.exchange.Accounts(ctx)
	if err != nil {
		p.report.Errorf(nil, "Could not read accounts: %s", connectors.ErrorMessage(err))
		return p.abort(&res, ErrAccounts)
	}
	available := decimal.Zero
	if acc := model.FindAccount(accounts, currency); acc != nil {
		available = acc.Available
	}

	amount = amount.Sub(available)
	target := decimal.Zero
	if !amount.IsPositive() {
		p.report.Infof(map[string]any{"available": available, "currency": currency},
			"Account already has %s available, no need to deposit additional funds.",
			report.FormatMoney(available, currency))
		metrics.Deposits.WithLabelValues("skipped").Inc()
	} else {
		if amount.LessThan(decimal.NewFromFloat(minimum)) {
			amount = decimal.NewFromFloat(minimum)
		}
		amount = allocation.RoundCents(amount)
		if p.sendDeposit(ctx, deposit.Source, amount, currency) {
			res.Deposited = amount
			p.deposited = amount
			target = amount
		}
	}

	// AWAITING_SETTLEMENT
	p.enter(StateAwaitingSettlement)
	if target.IsPositive() && !p.config.DryRun {
		p.awaitSettlement(ctx, currency, target)
	}

	// PLACING_ORDERS
	p.enter(StatePlacingOrders)
	for _, pp := range plan.Products {
		if !pp.Planned() {
			continue
		}
		p.placeOrder(ctx, pp, currency)
	}

	p.enter(StateDone)
	res.State = StateDone
	metrics.Runs.WithLabelValues(strings.ToLower(string(StateDone))).Inc()
	return res
}

// computePlan collects history and market data for every valid product and runs
// the allocation engine over them.
func (p *Planner) computePlan(ctx context.Context, orders *Orders, overrides *Overrides) (*allocation.Plan, error) {
	weights := make(map[model.ProductID]float64, len(orders.Products))
	products := make([]model.ProductID, 0, len(orders.Products))
	for _, pw := range orders.Products {
		id, err := model.ParseProductID(pw.Product)
		if err != nil {
			p.report.Errorf(pw, "Invalid product %q, skipped", pw.Product)
			continue
		}
		if _, dup := weights[id]; dup {
			p.report.Errorf(pw, "Product %s listed more than once, keeping the first entry", id)
			continue
		}
		weights[id] = pw.Weight
		products = append(products, id)
	}
	if len(products) == 0 {
		p.report.Error("No valid products to plan", orders.Products)
		return nil, ErrNoProducts
	}

	fills := ledger.NewAggregator(p.exchange, p.report, p.collections...).Collect(ctx, products)

	inputs := make([]allocation.Input, 0, len(products))
	for _, id := range products {
		info, err := p.exchange.Product(ctx, id)
		if err != nil {
			p.report.Errorf(map[string]any{"product": id}, "Could not load product %s: %s", id, connectors.ErrorMessage(err))
			continue
		}
		stats, err := p.exchange.ProductStats(ctx, id)
		if err != nil {
			p.report.Errorf(map[string]any{"product": id}, "Could not load stats for %s: %s", id, connectors.ErrorMessage(err))
			continue
		}
		inputs = append(inputs, allocation.Input{
			Product: id,
			Weight:  weights[id],
			Fills:   fills[id],
			Info:    *info,
			Stats:   *stats,
		})
	}

	opts := []allocation.Option{allocation.WithClock(p.now)}
	if orders.Weighting != nil {
		opts = append(opts, allocation.WithWeighting(*orders.Weighting))
	}
	if overrides != nil && overrides.Days > 0 {
		opts = append(opts, allocation.WithOverrideDays(overrides.Days))
	}

	engine := allocation.NewEngine(p.report, opts...)
	return engine.Compute(inputs, orders.Deposit.Amount), nil
}

// sendDeposit resolves the payment method and requests the deposit. It reports
// whether funds were (or, in dry run, would have been) requested.
func (p *Planner) sendDeposit(ctx context.Context, source string, amount decimal.Decimal, currency string) bool {
	methods, err := p.exchange.PaymentMethods(ctx)
	if err != nil {
		p.report.Errorf(nil, "Could not list payment methods: %s", connectors.ErrorMessage(err))
		metrics.Deposits.WithLabelValues("failed").Inc()
		return false
	}

	method := findPaymentMethod(methods, source)
	if method == nil {
		p.report.Errorf(map[string]string{"source": source}, "No payment method found matching name '%s'", source)
		metrics.Deposits.WithLabelValues("failed").Inc()
		return false
	}

	req := model.DepositRequest{PaymentMethodID: method.ID, Amount: amount, Currency: currency}

	if p.config.DryRun {
		p.report.Infof(req, "Dry run: would deposit %s from %s.", report.FormatMoney(amount, currency), source)
		metrics.Deposits.WithLabelValues("dry_run").Inc()
		return true
	}

	dep, err := p.exchange.DepositFromPaymentMethod(ctx, req)
	if err != nil {
		p.report.Errorf(req, "Deposit from %s failed: %s", source, connectors.ErrorMessage(err))
		metrics.Deposits.WithLabelValues("failed").Inc()
		return false
	}

	p.report.Infof(dep, "Deposit for %s from %s successful.", report.FormatMoney(amount, currency), source)
	metrics.Deposits.WithLabelValues("sent").Inc()
	metrics.LastDepositAmount.Set(amount.InexactFloat64())
	return true
}

// awaitSettlement polls the account until target is available or the poll budget
// runs out. Orders go out either way.
func (p *Planner) awaitSettlement(ctx context.Context, currency string, target decimal.Decimal) {
	for i := 0; i < p.config.SettlePolls; i++ {
		if err := p.sleep(ctx, p.config.SettleInterval); err != nil {
			p.report.Errorf(nil, "Stopped waiting for deposit: %v", err)
			return
		}
		accounts, err := p.exchange.Accounts(ctx)
		if err != nil {
			logger.WithError(err).Warn("Settlement poll failed")
			continue
		}
		if acc := model.FindAccount(accounts, currency); acc != nil && acc.Available.GreaterThanOrEqual(target) {
			p.report.Infof(nil, "Deposit available after %d check(s).", i+1)
			return
		}
	}
	p.report.Infof(map[string]any{"polls": p.config.SettlePolls, "target": target},
		"Deposit not yet available after %d checks, placing orders anyway.", p.config.SettlePolls)
}

func (p *Planner) placeOrder(ctx context.Context, pp *allocation.ProductPlan, currency string) {
	order := model.NewLimitBuy(pp.Product, pp.AmountToBuy.Decimal, pp.AdjustedPrice.Decimal, p.newClientOid())
	spent := report.FormatMoney(allocation.RoundCents(order.Notional()), currency)
	price := report.FormatMoney(allocation.RoundCents(order.Price), currency)

	if p.config.DryRun {
		p.report.Infof(order, "Dry run: would spend %s on %s (%s %s order for %s at price %s)",
			spent, pp.Product, order.Type, order.Side, order.Size.String(), price)
		metrics.Orders.WithLabelValues(pp.Product.String(), "dry_run").Inc()
		return
	}

	placed, err := p.exchange.PlaceOrder(ctx, order)
	if err != nil {
		if apiErr, ok := connectors.AsAPIError(err); ok {
			logger.WithFields(logger.Fields{"product": pp.Product, "kind": apiErr.Kind()}).Warn("Order rejected by exchange")
		}
		p.report.Errorf(order, "Order for %s failed: %s", pp.Product, connectors.ErrorMessage(err))
		metrics.Orders.WithLabelValues(pp.Product.String(), "failed").Inc()
		return
	}

	p.report.Infof(placed, "Spent %s on %s (%s %s order for %s at price %s)",
		spent, pp.Product, order.Type, order.Side, order.Size.String(), price)
	metrics.Orders.WithLabelValues(pp.Product.String(), "placed").Inc()
}

// findPaymentMethod matches source as a case-insensitive substring of the name.
func findPaymentMethod(methods []model.PaymentMethod, source string) *model.PaymentMethod {
	needle := strings.ToLower(strings.TrimSpace(source))
	for i := range methods {
		if strings.Contains(strings.ToLower(methods[i].Name), needle) {
			return &methods[i]
		}
	}
	return nil
}

func countPlanned(plan *allocation.Plan) int {
	n := 0
	for _, pp := range plan.Products {
		if pp.Planned() {
			n++
		}
	}
	return n
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
