package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-03-04T05:06:07.891Z", time.Date(2021, 3, 4, 5, 6, 7, 891000000, time.UTC)},
		{"2021-03-04T05:06:07Z", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"2021-03-04 05:06:07", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"3/4/2021 05:06:07", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"3/4/2021", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{" 2021-03-04 ", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: want %s got %s", tt.in, tt.want, got)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("")
	assert.Error(t, err)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 7.5, DaysBetween(a, b), 1e-9)
	assert.InDelta(t, 7.5, DaysBetween(b, a), 1e-9)
}
