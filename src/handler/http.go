package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"dailybuy/src/report"

	logger "github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	if resp.Log == nil {
		resp.Log = []report.LogEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func badRequest(w http.ResponseWriter, op string, err error) {
	rep := newReport(op)
	rep.Errorf(nil, "Invalid params: %s", err.Error())
	writeJSON(w, http.StatusBadRequest, Response{Log: rep.Entries()})
}

// serve decodes params of type P from the request and hands them to run.
func serve[P any](op string, run func(context.Context, P) (int, Response)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params P
		if err := decodeParams(r, &params); err != nil {
			logger.WithError(err).WithField("op", op).Warn("invalid request params")
			badRequest(w, op, err)
			return
		}
		status, resp := run(r.Context(), params)
		writeJSON(w, status, resp)
	}
}

// DailyBuyHandler serves GET|POST /daily-buy.
func DailyBuyHandler() http.HandlerFunc {
	return serve("daily-buy", DailyBuy)
}

// CryptoStatsHandler serves GET|POST /crypto-stats.
func CryptoStatsHandler() http.HandlerFunc {
	return serve("crypto-stats", CryptoStats)
}

// AccountsHandler serves GET|POST /accounts.
func AccountsHandler() http.HandlerFunc {
	return serve("accounts", Accounts)
}
