package lending

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	maxU64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// ToLamports converts a human amount to the smallest unit of an asset with the given decimals,
// rounding toward zero.
func ToLamports(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	lamports := amount.Shift(int32(decimals)).Floor()
	if lamports.GreaterThan(maxU64) {
		return 0, ErrAmountOverflow
	}
	return lamports.BigInt().Uint64(), nil
}

// FromLamports is the inverse of ToLamports for display.
func FromLamports(lamports uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -int32(decimals))
}
