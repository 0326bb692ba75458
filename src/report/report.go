package report

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type LogType string

const (
	LogTypeInfo  LogType = "INFO"
	LogTypeError LogType = "ERROR"
)

// LogEntry is one decision or failure of a run. Entries are never changed after append.
type LogEntry struct {
	LogType LogType `json:"logType"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
}

// Report is the append-only execution log of a single run. Every entry is
// mirrored to logrus.
type Report struct {
	mu      sync.Mutex
	entries []LogEntry
	fields  logger.Fields
}

func New(fields logger.Fields) *Report {
	return &Report{entries: []LogEntry{}, fields: fields}
}

func (r *Report) Info(message string, data any) {
	r.add(LogTypeInfo, message, data)
}

func (r *Report) Error(message string, data any) {
	r.add(LogTypeError, message, data)
}

func (r *Report) Infof(data any, format string, args ...any) {
	r.add(LogTypeInfo, fmt.Sprintf(format, args...), data)
}

func (r *Report) Errorf(data any, format string, args ...any) {
	r.add(LogTypeError, fmt.Sprintf(format, args...), data)
}

func (r *Report) add(t LogType, message string, data any) {
	r.mu.Lock()
	r.entries = append(r.entries, LogEntry{LogType: t, Message: message, Data: data})
	r.mu.Unlock()

	entry := logger.WithFields(r.fields)
	if t == LogTypeError {
		entry.Error(message)
		return
	}
	entry.Info(message)
}

// Entries returns a copy of the log so far.
func (r *Report) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Errors returns only ERROR entries.
func (r *Report) Errors() []LogEntry {
	var out []LogEntry
	for _, e := range r.Entries() {
		if e.LogType == LogTypeError {
			out = append(out, e)
		}
	}
	return out
}

// Summary is returned next to the log: spent and deposited in the deposit currency.
type Summary struct {
	Spent        string          `json:"spent"`
	Deposited    string          `json:"deposited"`
	Currency     string          `json:"currency"`
	SpentRaw     decimal.Decimal `json:"-"`
	DepositedRaw decimal.Decimal `json:"-"`
}

func NewSummary(spent, deposited decimal.Decimal, currency string) Summary {
	return Summary{
		Spent:        FormatMoney(spent, currency),
		Deposited:    FormatMoney(deposited, currency),
		Currency:     currency,
		SpentRaw:     spent,
		DepositedRaw: deposited,
	}
}

var currencyPrefix = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatMoney renders "$12.30 USD"; unknown currencies get no prefix.
func FormatMoney(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s%s %s", currencyPrefix[currency], amount.StringFixed(2), currency)
}
