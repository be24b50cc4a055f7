package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-ledger/internal/apperr"
)

func TestSplitEvenly(t *testing.T) {
	tests := []struct {
		name  string
		total string
		n     int
		scale int32
		want  []string
	}{
		{"even", "100", 2, 9, []string{"50", "50"}},
		{"thirds", "100", 3, 9, []string{"33.333333334", "33.333333333", "33.333333333"}},
		{"integer units", "10", 3, 0, []string{"4", "3", "3"}},
		{"single", "7.5", 1, 2, []string{"7.5"}},
		{"dust", "0.000000001", 4, 9, []string{"0.000000001", "0", "0", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			shares, err := SplitEvenly(total, tt.n, tt.scale)
			require.NoError(t, err)
			require.Len(t, shares, tt.n)

			sum := decimal.Zero
			for i, s := range shares {
				assert.True(t, s.Equal(decimal.RequireFromString(tt.want[i])), "share %d = %s, want %s", i, s, tt.want[i])
				sum = sum.Add(s)
			}
			assert.True(t, sum.Equal(total), "shares sum to %s, want %s", sum, total)
		})
	}
}

func TestSplitEvenlyConservesForManyCounts(t *testing.T) {
	total := decimal.RequireFromString("1234.567890123")
	for n := 1; n <= 50; n++ {
		shares, err := SplitEvenly(total, n, 9)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s)
		}
		assert.True(t, sum.Equal(total), "n=%d sum=%s", n, sum)
	}
}

func TestSplitEvenlyRejectsBadInput(t *testing.T) {
	_, err := SplitEvenly(decimal.NewFromInt(10), 0, 9)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = SplitEvenly(decimal.NewFromInt(-10), 2, 9)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
