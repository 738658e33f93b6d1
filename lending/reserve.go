package lending

import (
	"github.com/shopspring/decimal"

	"github.com/egaotan/solana-lending/tokenlending"
)

// ReserveLiquidity is the supply side of a reserve in human amounts.
type ReserveLiquidity struct {
	Available   decimal.Decimal
	Borrowed    decimal.Decimal
	Total       decimal.Decimal
	Utilization decimal.Decimal
}

// NewReserveLiquidity reports utilization as borrowed / (available + borrowed), zero for an
// empty reserve.
func NewReserveLiquidity(reserve *tokenlending.ReserveLayout) *ReserveLiquidity {
	decimals := reserve.LiquidityMintDecimals
	available := FromLamports(reserve.AvailableLiquidity, decimals)
	borrowed := FromLamports(reserve.BorrowedAmount(), decimals)
	total := available.Add(borrowed)
	utilization := decimal.Zero
	if total.IsPositive() {
		utilization = borrowed.Div(total)
	}
	return &ReserveLiquidity{
		Available:   available,
		Borrowed:    borrowed,
		Total:       total,
		Utilization: utilization,
	}
}
