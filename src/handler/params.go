package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dailybuy/src/planner"
	"dailybuy/src/security"
)

// DailyBuyParams is the body of /daily-buy and of `dailybuy --file`.
type DailyBuyParams struct {
	Coinbase  security.Credentials `json:"coinbase"`
	Orders    *planner.Orders      `json:"orders"`
	Overrides *planner.Overrides   `json:"overrides,omitempty"`
	Google    *planner.Google      `json:"google,omitempty"`
	Database  *planner.Database    `json:"database,omitempty"`
}

// StatsParams is the body of /crypto-stats and of `stats --file`.
type StatsParams struct {
	Coinbase security.Credentials `json:"coinbase"`
	Products []string             `json:"products"`
	Google   *planner.Google      `json:"google,omitempty"`
	Database *planner.Database    `json:"database,omitempty"`
}

// AccountsParams is the body of /accounts.
type AccountsParams struct {
	Coinbase security.Credentials `json:"coinbase"`
}

// decodeParams merges the JSON body with query parameters holding URL-encoded
// JSON. A key present in the body wins over the same key in the query. Query
// values that are not JSON are taken as plain strings, so unrelated parameters
// are ignored.
func decodeParams(r *http.Request, dst any) error {
	merged := map[string]json.RawMessage{}

	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &merged); err != nil {
				return fmt.Errorf("decode body: %w", err)
			}
		}
	}

	for key, values := range r.URL.Query() {
		if _, ok := merged[key]; ok || len(values) == 0 {
			continue
		}
		raw := []byte(values[0])
		if !json.Valid(raw) {
			quoted, err := json.Marshal(values[0])
			if err != nil {
				return err
			}
			raw = quoted
		}
		merged[key] = raw
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
