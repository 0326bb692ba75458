// Package metrics holds the prometheus collectors updated during a daily buy run.
//
//   - dailybuy_exchange_requests_total{method,outcome} – exchange HTTP attempts (ok|api_error|transport_error|decode_error)
//   - dailybuy_exchange_retries_total{method}           – transport failures that were retried
//   - dailybuy_runs_total{state}                         – planner runs by final state (done|aborted)
//   - dailybuy_orders_total{product,outcome}             – limit buys (placed|failed|dry_run)
//   - dailybuy_deposits_total{outcome}                   – deposits (sent|failed|skipped|dry_run)
//   - dailybuy_last_deposit_amount                       – last deposit amount in quote currency
//   - dailybuy_supplemental_source_failures_total{kind}  – supplemental sources that returned nothing due to errors
//
// Collectors are registered in init() and served by the /metrics route.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ExchangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_exchange_requests_total",
			Help: "Exchange HTTP attempts by outcome",
		},
		[]string{"method", "outcome"},
	)

	ExchangeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_exchange_retries_total",
			Help: "Exchange requests retried after a transport failure",
		},
		[]string{"method"},
	)

	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_runs_total",
			Help: "Planner runs by final state",
		},
		[]string{"state"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_orders_total",
			Help: "Limit buy orders by outcome",
		},
		[]string{"product", "outcome"},
	)

	Deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_deposits_total",
			Help: "Deposits by outcome",
		},
		[]string{"outcome"},
	)

	LastDepositAmount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailybuy_last_deposit_amount",
			Help: "Amount of the last deposit, in quote currency",
		},
	)

	SupplementalSourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailybuy_supplemental_source_failures_total",
			Help: "Supplemental ledger reads that failed and yielded no fills",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		ExchangeRequests,
		ExchangeRetries,
		Runs,
		Orders,
		Deposits,
		LastDepositAmount,
		SupplementalSourceFailures,
	)
}
