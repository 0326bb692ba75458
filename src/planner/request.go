package planner

import "dailybuy/src/allocation"

// Deposit describes how the run is funded. Amount is the daily budget.
type Deposit struct {
	Source   string  `json:"source"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Minimum  float64 `json:"minimum,omitempty"`
	Maximum  float64 `json:"maximum,omitempty"`
}

type ProductWeight struct {
	Product string  `json:"product"`
	Weight  float64 `json:"weight"`
}

type Orders struct {
	Deposit   *Deposit              `json:"deposit"`
	Products  []ProductWeight       `json:"products"`
	Weighting *allocation.Weighting `json:"weighting,omitempty"`
	DryRun    bool                  `json:"dryRun,omitempty"`
}

type Overrides struct {
	Days float64 `json:"days,omitempty"`
}

// Sheets points at a published spreadsheet and the sheets holding fills.
type Sheets struct {
	Key   string   `json:"key"`
	Names []string `json:"names"`
}

type Google struct {
	Sheets *Sheets `json:"sheets,omitempty"`
}

// Database names the supplemental_fills sources to include.
type Database struct {
	Names []string `json:"names"`
}
