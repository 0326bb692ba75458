package report

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKeepsOrder(t *testing.T) {
	r := New(nil)
	r.Info("first", nil)
	r.Errorf(map[string]int{"n": 2}, "second %d", 2)
	r.Infof(nil, "third")

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, LogTypeError, entries[1].LogType)
	assert.Equal(t, "second 2", entries[1].Message)
	assert.Equal(t, "third", entries[2].Message)
	assert.Len(t, r.Errors(), 1)

	// copies do not leak into the report
	entries[0].Message = "changed"
	assert.Equal(t, "first", r.Entries()[0].Message)
}

func TestLogEntryJSON(t *testing.T) {
	raw, err := json.Marshal(LogEntry{LogType: LogTypeInfo, Message: "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"logType":"INFO","message":"ok"}`, string(raw))
}

func TestSummary(t *testing.T) {
	s := NewSummary(decimal.RequireFromString("12.345"), decimal.NewFromInt(20), "USD")
	assert.Equal(t, "$12.35 USD", s.Spent)
	assert.Equal(t, "$20.00 USD", s.Deposited)

	assert.Equal(t, "3.10 CAD", FormatMoney(decimal.RequireFromString("3.1"), "CAD"))
}
