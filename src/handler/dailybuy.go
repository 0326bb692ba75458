package handler

import (
	"context"
	"fmt"
	"net/http"

	"dailybuy/src/connectors"
	"dailybuy/src/database"
	"dailybuy/src/ledger"
	"dailybuy/src/planner"
	"dailybuy/src/report"
	"dailybuy/src/repository"
	"dailybuy/src/security"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Response is the JSON body returned by every endpoint.
type Response struct {
	Log     []report.LogEntry `json:"log"`
	Summary *report.Summary   `json:"summary,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// Swapped in tests.
var (
	newExchange = func(creds security.Credentials) planner.Exchange {
		return connectors.NewCoinbaseClient(creds.Key, creds.Passphrase, creds.Secret)
	}
	newSheetReader = func(key string) ledger.SheetReader {
		return connectors.NewSheetsClient(key)
	}
	newSupplementalStore = func() ledger.SupplementalStore {
		if !database.Enabled() {
			return nil
		}
		return repository.NewSupplementalFillRepository()
	}
	newExceptionRepository = func() *repository.ExceptionRepository {
		if database.MainDB == nil {
			return nil
		}
		return repository.NewExceptionRepository()
	}
)

func newReport(op string) *report.Report {
	return report.New(logger.Fields{"op": op, "run": uuid.NewString()})
}

// authorize logs the missing credential flags and reports whether the run may go on.
func authorize(rep *report.Report, creds security.Credentials) bool {
	if creds.Complete() {
		return true
	}
	rep.Error("Missing required params for authorization", creds.Presence())
	return false
}

// recoverRun turns a panic into a 500 with an "Exception caught" entry.
func recoverRun(ctx context.Context, rep *report.Report, method string, status *int, contextData map[string]interface{}) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	*status = http.StatusInternalServerError
	rep.Errorf(nil, "Exception caught: %s", err.Error())
	Capture(ctx, newExceptionRepository(), "handler", method, "error", err, contextData)
}

// collections builds the supplemental sources requested by the caller.
func collections(rep *report.Report, google *planner.Google, db *planner.Database) []ledger.Collection {
	var out []ledger.Collection
	if google != nil && google.Sheets != nil && google.Sheets.Key != "" && len(google.Sheets.Names) > 0 {
		out = append(out, ledger.Collection{
			Source: ledger.NewSheetSource(newSheetReader(google.Sheets.Key)),
			Names:  google.Sheets.Names,
		})
	}
	if db != nil && len(db.Names) > 0 {
		store := newSupplementalStore()
		if store == nil {
			rep.Error("Database sources requested but the database is disabled", db.Names)
		} else {
			out = append(out, ledger.Collection{
				Source: ledger.NewDatabaseSource(store),
				Names:  db.Names,
			})
		}
	}
	return out
}

func depositCurrency(orders *planner.Orders) string {
	if orders != nil && orders.Deposit != nil && orders.Deposit.Currency != "" {
		return orders.Deposit.Currency
	}
	return planner.GetConfig().DepositCurrency
}

// DailyBuy runs one daily buy and returns the HTTP status and response body.
// The summary is always set: zero before a plan exists, the run's progress
// when it was cut short by a panic.
func DailyBuy(ctx context.Context, params DailyBuyParams) (status int, resp Response) {
	rep := newReport("daily-buy")
	status = http.StatusOK

	var p *planner.Planner
	defer func() {
		summary := report.NewSummary(decimal.Zero, decimal.Zero, depositCurrency(params.Orders))
		if p != nil {
			summary = p.Summary()
		}
		resp.Summary = &summary
		resp.Log = rep.Entries()
	}()
	defer recoverRun(ctx, rep, "DailyBuy", &status, map[string]interface{}{
		"orders":    params.Orders,
		"overrides": params.Overrides,
		"google":    params.Google,
		"database":  params.Database,
	})

	if !authorize(rep, params.Coinbase) {
		return http.StatusUnauthorized, resp
	}

	p = planner.New(newExchange(params.Coinbase), rep,
		planner.WithCollections(collections(rep, params.Google, params.Database)...))
	res := p.Run(ctx, params.Orders, params.Overrides)

	logger.WithFields(logger.Fields{
		"state":     res.State,
		"spent":     res.Summary.Spent,
		"deposited": res.Summary.Deposited,
	}).Info("Daily buy finished")
	return status, resp
}

// CryptoStats reports the cost basis of each product. Nothing is deposited or ordered.
func CryptoStats(ctx context.Context, params StatsParams) (status int, resp Response) {
	rep := newReport("crypto-stats")
	status = http.StatusOK
	defer func() { resp.Log = rep.Entries() }()
	defer recoverRun(ctx, rep, "CryptoStats", &status, map[string]interface{}{
		"products": params.Products,
		"google":   params.Google,
		"database": params.Database,
	})

	if !authorize(rep, params.Coinbase) {
		return http.StatusUnauthorized, resp
	}

	p := planner.New(newExchange(params.Coinbase), rep,
		planner.WithCollections(collections(rep, params.Google, params.Database)...))
	resp.Data = p.Stats(ctx, params.Products)
	return status, resp
}

// Accounts lists the exchange accounts the credentials can see.
func Accounts(ctx context.Context, params AccountsParams) (status int, resp Response) {
	rep := newReport("accounts")
	status = http.StatusOK
	defer func() { resp.Log = rep.Entries() }()
	defer recoverRun(ctx, rep, "Accounts", &status, nil)

	if !authorize(rep, params.Coinbase) {
		return http.StatusUnauthorized, resp
	}

	accounts, err := newExchange(params.Coinbase).Accounts(ctx)
	if err != nil {
		rep.Errorf(nil, "Could not load accounts: %s", connectors.ErrorMessage(err))
		return http.StatusBadGateway, resp
	}
	resp.Data = accounts
	return status, resp
}
