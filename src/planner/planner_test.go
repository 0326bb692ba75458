package planner

// Test index:
//  1. TestRunDepositsAndPlacesOrders walks the happy path through every state.
//  2. TestRunAbortsWhenDepositTooHigh makes no deposit or order calls above the maximum.
//  3. TestRunPlacesOrdersAfterSettlementTimeout keeps going when funds never show up.
//  4. TestRunIsolatesOrderFailures keeps placing orders after one fails.
//  5. TestRunSkipsDepositWhenBalanceCovers uses the existing balance.
//  6. TestRunWithoutPaymentMethod still orders against the balance.
//  7. TestRunDryRun logs deposit and orders without sending them.
//  8. TestRunMissingDeposit aborts before any exchange call.
//  9. TestStats reports the cost basis of products with fills.
// 10. TestRunIsNotIdempotent deposits and orders again when re-run after a partial failure.

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dailybuy/src/connectors"
	"dailybuy/src/model"
	"dailybuy/src/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeExchange struct {
	fills    map[model.ProductID][]model.Fill
	prices   map[model.ProductID]string
	accounts [][]model.Account // one entry per Accounts call, the last one repeats
	methods  []model.PaymentMethod
	orderErr map[model.ProductID]error

	accountCalls int
	methodCalls  int
	deposits     []model.DepositRequest
	orders       []model.OrderRequest
}

func (f *fakeExchange) Fills(_ context.Context, p model.ProductID) ([]model.Fill, error) {
	return f.fills[p], nil
}

func (f *fakeExchange) Product(_ context.Context, p model.ProductID) (*model.Product, error) {
	return &model.Product{
		ID:             p.String(),
		BaseIncrement:  decimal.RequireFromString("0.00000001"),
		QuoteIncrement: decimal.RequireFromString("0.01"),
		BaseMinSize:    decimal.RequireFromString("0.0001"),
	}, nil
}

func (f *fakeExchange) ProductStats(_ context.Context, p model.ProductID) (*model.ProductStats, error) {
	price, ok := f.prices[p]
	if !ok {
		return nil, &connectors.APIError{Message: "NotFound", Status: 404}
	}
	last := decimal.RequireFromString(price)
	return &model.ProductStats{Open: last, Last: last}, nil
}

func (f *fakeExchange) Accounts(context.Context) ([]model.Account, error) {
	f.accountCalls++
	if len(f.accounts) == 0 {
		return nil, nil
	}
	i := f.accountCalls - 1
	if i >= len(f.accounts) {
		i = len(f.accounts) - 1
	}
	return f.accounts[i], nil
}

func (f *fakeExchange) PaymentMethods(context.Context) ([]model.PaymentMethod, error) {
	f.methodCalls++
	return f.methods, nil
}

func (f *fakeExchange) DepositFromPaymentMethod(_ context.Context, d model.DepositRequest) (*model.Deposit, error) {
	f.deposits = append(f.deposits, d)
	return &model.Deposit{ID: "dep-1", Amount: d.Amount, Currency: d.Currency}, nil
}

func (f *fakeExchange) PlaceOrder(_ context.Context, o model.OrderRequest) (*model.Order, error) {
	f.orders = append(f.orders, o)
	if err := f.orderErr[model.ProductID(o.ProductID)]; err != nil {
		return nil, err
	}
	return &model.Order{ID: "ord-" + o.ProductID, ProductID: o.ProductID, Status: "pending"}, nil
}

func usd(available string) []model.Account {
	return []model.Account{
		{Currency: "BTC", Available: decimal.NewFromInt(1)},
		{Currency: "USD", Available: decimal.RequireFromString(available)},
	}
}

func boughtYesterday(p model.ProductID, price string) []model.Fill {
	return []model.Fill{{
		ProductID: p.String(),
		Side:      "buy",
		Size:      decimal.NewFromInt(1),
		Price:     decimal.RequireFromString(price),
		CreatedAt: testNow.Add(-24 * time.Hour),
	}}
}

func newExchange(products ...model.ProductID) *fakeExchange {
	f := &fakeExchange{
		fills:   map[model.ProductID][]model.Fill{},
		prices:  map[model.ProductID]string{},
		methods: []model.PaymentMethod{{ID: "pm-card", Name: "Visa debit"}, {ID: "pm-bank", Name: "Bank of Test ****1234"}},
	}
	for _, p := range products {
		f.fills[p] = boughtYesterday(p, "100")
		f.prices[p] = "100"
	}
	return f
}

type sleepRecorder struct{ calls int }

func (s *sleepRecorder) sleep(context.Context, time.Duration) error {
	s.calls++
	return nil
}

func newTestPlanner(ex Exchange, rep *report.Report, sleeper *sleepRecorder, opts ...Option) *Planner {
	n := 0
	all := []Option{
		WithClock(func() time.Time { return testNow }),
		WithSettle(5, time.Second),
		WithSleep(sleeper.sleep),
		WithDryRun(false),
		WithClientOid(func() string { n++; return fmt.Sprintf("oid-%d", n) }),
	}
	return New(ex, rep, append(all, opts...)...)
}

func dailyOrders(budget float64, products ...string) *Orders {
	o := &Orders{Deposit: &Deposit{Source: "bank", Amount: budget, Currency: "USD"}}
	for _, p := range products {
		o.Products = append(o.Products, ProductWeight{Product: p, Weight: 1})
	}
	return o
}

func TestRunDepositsAndPlacesOrders(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("0"), usd("10.52")}
	rep := report.New(nil)
	sleeper := &sleepRecorder{}

	res := newTestPlanner(ex, rep, sleeper).Run(context.Background(), dailyOrders(10, "BTC-USD"), nil)

	require.NoError(t, res.Err)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, rep.Errors())

	require.Len(t, ex.deposits, 1)
	assert.Equal(t, "pm-bank", ex.deposits[0].PaymentMethodID)
	assert.Equal(t, "10.52", ex.deposits[0].Amount.String())
	assert.Equal(t, "USD", ex.deposits[0].Currency)

	// settled on the first poll
	assert.Equal(t, 1, sleeper.calls)
	assert.Equal(t, 2, ex.accountCalls)

	require.Len(t, ex.orders, 1)
	order := ex.orders[0]
	assert.Equal(t, "limit", order.Type)
	assert.Equal(t, "buy", order.Side)
	assert.Equal(t, "BTC-USD", order.ProductID)
	assert.Equal(t, "0.1", order.Size.String())
	assert.Equal(t, "100.2", order.Price.String())
	assert.Equal(t, "oid-1", order.ClientOid)

	assert.Equal(t, "$10.02 USD", res.Summary.Spent)
	assert.Equal(t, "$10.52 USD", res.Summary.Deposited)
}

func TestRunAbortsWhenDepositTooHigh(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("0")}
	rep := report.New(nil)

	orders := dailyOrders(250, "BTC-USD")
	orders.Deposit.Maximum = 200

	p := newTestPlanner(ex, rep, &sleepRecorder{})
	res := p.Run(context.Background(), orders, nil)

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StateAborted, p.State())
	assert.ErrorIs(t, res.Err, ErrDepositTooHigh)

	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "is too high")

	assert.Zero(t, ex.accountCalls)
	assert.Zero(t, ex.methodCalls)
	assert.Empty(t, ex.deposits)
	assert.Empty(t, ex.orders)
	assert.Equal(t, "$0.00 USD", res.Summary.Deposited)
}

func TestRunPlacesOrdersAfterSettlementTimeout(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("0")}
	rep := report.New(nil)
	sleeper := &sleepRecorder{}

	res := newTestPlanner(ex, rep, sleeper).Run(context.Background(), dailyOrders(10, "BTC-USD"), nil)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 5, sleeper.calls)
	assert.Equal(t, 6, ex.accountCalls)
	assert.Len(t, ex.deposits, 1)
	assert.Len(t, ex.orders, 1)
	assert.Empty(t, rep.Errors())
}

func TestRunIsolatesOrderFailures(t *testing.T) {
	ex := newExchange("BTC-USD", "ETH-USD")
	ex.accounts = [][]model.Account{usd("100")}
	ex.orderErr = map[model.ProductID]error{
		"BTC-USD": &connectors.APIError{Message: "Insufficient funds", Status: 400},
	}
	rep := report.New(nil)

	res := newTestPlanner(ex, rep, &sleepRecorder{}).Run(context.Background(), dailyOrders(10, "BTC-USD", "ETH-USD"), nil)

	assert.Equal(t, StateDone, res.State)
	require.Len(t, ex.orders, 2)
	assert.Equal(t, "ETH-USD", ex.orders[1].ProductID)

	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Order for BTC-USD failed: Insufficient funds")
}

func TestRunSkipsDepositWhenBalanceCovers(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("500")}
	rep := report.New(nil)
	sleeper := &sleepRecorder{}

	res := newTestPlanner(ex, rep, sleeper).Run(context.Background(), dailyOrders(10, "BTC-USD"), nil)

	assert.Equal(t, StateDone, res.State)
	assert.Zero(t, ex.methodCalls)
	assert.Empty(t, ex.deposits)
	assert.Zero(t, sleeper.calls)
	assert.Len(t, ex.orders, 1)
	assert.Equal(t, "$0.00 USD", res.Summary.Deposited)

	found := false
	for _, e := range rep.Entries() {
		if e.LogType == report.LogTypeInfo && e.Message == "Account already has $500.00 USD available, no need to deposit additional funds." {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunWithoutPaymentMethod(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("5")}
	ex.methods = []model.PaymentMethod{{ID: "pm-card", Name: "Visa debit"}}
	rep := report.New(nil)

	res := newTestPlanner(ex, rep, &sleepRecorder{}).Run(context.Background(), dailyOrders(10, "BTC-USD"), nil)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, ex.deposits)
	assert.Len(t, ex.orders, 1)

	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "No payment method found matching name 'bank'", errs[0].Message)
}

func TestRunDryRun(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("0")}
	rep := report.New(nil)
	sleeper := &sleepRecorder{}

	orders := dailyOrders(10, "BTC-USD")
	orders.DryRun = true

	res := newTestPlanner(ex, rep, sleeper).Run(context.Background(), orders, nil)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, ex.methodCalls)
	assert.Empty(t, ex.deposits)
	assert.Empty(t, ex.orders)
	assert.Zero(t, sleeper.calls)
	assert.Equal(t, "$10.52 USD", res.Summary.Deposited)
}

func TestRunMissingDeposit(t *testing.T) {
	ex := newExchange("BTC-USD")
	rep := report.New(nil)

	res := newTestPlanner(ex, rep, &sleepRecorder{}).Run(context.Background(), &Orders{Products: []ProductWeight{{Product: "BTC-USD", Weight: 1}}}, nil)
	assert.Equal(t, StateAborted, res.State)
	assert.True(t, errors.Is(res.Err, ErrMissingDeposit))

	res = newTestPlanner(ex, rep, &sleepRecorder{}).Run(context.Background(), nil, nil)
	assert.ErrorIs(t, res.Err, ErrMissingOrders)

	assert.Zero(t, ex.accountCalls)
	assert.Len(t, rep.Errors(), 2)
}

func TestRunSkipsInvalidAndUnpricedProducts(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.accounts = [][]model.Account{usd("100")}
	ex.fills["ETH-USD"] = boughtYesterday("ETH-USD", "100")
	rep := report.New(nil)

	res := newTestPlanner(ex, rep, &sleepRecorder{}).Run(context.Background(), dailyOrders(10, "BTC-USD", "ETH-USD", "not a product"), nil)

	assert.Equal(t, StateDone, res.State)
	require.Len(t, ex.orders, 1)
	assert.Equal(t, "BTC-USD", ex.orders[0].ProductID)
	assert.Len(t, rep.Errors(), 2)
}

func TestStats(t *testing.T) {
	ex := newExchange("BTC-USD")
	ex.fills["BTC-USD"] = append(ex.fills["BTC-USD"], model.Fill{
		ProductID: "BTC-USD", Side: "buy",
		Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(200),
		CreatedAt: testNow.Add(-48 * time.Hour),
	})
	rep := report.New(nil)

	stats := newTestPlanner(ex, rep, &sleepRecorder{}).Stats(context.Background(), []string{"BTC-USD", "ETH-USD"})

	require.Len(t, stats, 1)
	btc := stats["BTC-USD"]
	assert.Equal(t, 2, btc.Fills)
	assert.Equal(t, 2.0, btc.TotalAmount)
	assert.Equal(t, 300.0, btc.TotalCost)
	require.NotNil(t, btc.AverageCost)
	assert.Equal(t, 150.0, *btc.AverageCost)
	require.NotNil(t, btc.Elapsed)
	assert.InDelta(t, 1.0, btc.Elapsed.Days, 1e-9)
	assert.InDelta(t, 24.0, btc.Elapsed.Hours, 1e-9)
	assert.NotNil(t, btc.Info)
	assert.NotNil(t, btc.Stats)
	assert.Empty(t, rep.Errors())
}

func TestRunIsNotIdempotent(t *testing.T) {
	ex := newExchange("BTC-USD", "ETH-USD")
	ex.accounts = [][]model.Account{usd("0")}
	ex.orderErr = map[model.ProductID]error{"ETH-USD": &connectors.APIError{Message: "Insufficient funds", Status: 400}}
	rep := report.New(nil)
	p := newTestPlanner(ex, rep, &sleepRecorder{})
	orders := dailyOrders(10, "BTC-USD", "ETH-USD")

	first := p.Run(context.Background(), orders, nil)
	require.Equal(t, StateDone, first.State)
	require.Len(t, rep.Errors(), 1)

	// retrying after the ETH failure deposits again and re-orders BTC too
	ex.orderErr = nil
	second := p.Run(context.Background(), orders, nil)
	require.Equal(t, StateDone, second.State)

	require.Len(t, ex.deposits, 2)
	assert.True(t, ex.deposits[0].Amount.Equal(ex.deposits[1].Amount))

	require.Len(t, ex.orders, 4)
	var btc []model.OrderRequest
	for _, o := range ex.orders {
		if o.ProductID == "BTC-USD" {
			btc = append(btc, o)
		}
	}
	require.Len(t, btc, 2)
	assert.NotEqual(t, btc[0].ClientOid, btc[1].ClientOid)

	assert.Equal(t, first.Summary.Deposited, second.Summary.Deposited)
	assert.Equal(t, first.Summary.Spent, second.Summary.Spent)
	assert.Equal(t, second.Summary.Spent, p.Summary().Spent)
}
