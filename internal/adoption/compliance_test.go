package adoption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"any":      ModeAny,
		"ANY":      ModeAny,
		"majority": ModeMajority,
		"all":      ModeAll,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("most")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "any, majority, all")
}

func TestCompliant(t *testing.T) {
	tests := []struct {
		name      string
		compliant int
		total     int
		mode      Mode
		want      bool
	}{
		{"any with one hit", 1, 100, ModeAny, true},
		{"any with none", 0, 5, ModeAny, false},
		{"majority exactly half", 1, 2, ModeMajority, true},
		{"majority six of thirteen", 6, 13, ModeMajority, false},
		{"majority three of nine", 3, 9, ModeMajority, false},
		{"any three of nine", 3, 9, ModeAny, true},
		{"majority seven of thirteen", 7, 13, ModeMajority, true},
		{"all complete", 4, 4, ModeAll, true},
		{"all one short", 3, 4, ModeAll, false},
		{"empty is never compliant", 0, 0, ModeAny, false},
		{"empty all", 0, 0, ModeAll, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compliant(tt.compliant, tt.total, tt.mode))
		})
	}
}

func TestStatsPercent(t *testing.T) {
	tests := []struct {
		stats Stats
		want  float64
	}{
		{Stats{Compliant: 6, Total: 13}, 46.15},
		{Stats{Compliant: 1, Total: 2}, 50.00},
		{Stats{Compliant: 1, Total: 3}, 33.33},
		{Stats{Compliant: 2, Total: 3}, 66.67},
		{Stats{Compliant: 3, Total: 3}, 100.00},
		{Stats{}, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.stats.Percent(), 0.0001, "stats %s", tt.stats.String())
	}
}

func TestStatsRateBounds(t *testing.T) {
	s := Stats{Compliant: 6, Total: 13}
	assert.GreaterOrEqual(t, s.Rate(), 0.0)
	assert.LessOrEqual(t, s.Rate(), 1.0)
	assert.LessOrEqual(t, s.Compliant, s.Total)
	assert.Equal(t, "6/13", s.String())
}
