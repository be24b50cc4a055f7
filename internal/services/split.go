package services

import (
	"agent-ledger/internal/apperr"

	"github.com/shopspring/decimal"
)

// SplitEvenly divides total into n shares truncated to scale decimal places.
// The truncation remainder goes to the first share, so the shares always sum
// to total exactly.
func SplitEvenly(total decimal.Decimal, n int, scale int32) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, apperr.Validation("split", "cannot split across %d creators", n)
	}
	if total.IsNegative() {
		return nil, apperr.Validation("split", "cannot split negative amount %s", total)
	}

	share, _ := total.QuoRem(decimal.NewFromInt(int64(n)), scale)
	remainder := total.Sub(share.Mul(decimal.NewFromInt(int64(n))))

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = share
	}
	shares[0] = shares[0].Add(remainder)
	return shares, nil
}
