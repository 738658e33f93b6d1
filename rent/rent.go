package rent

import (
	"context"

	"github.com/pkg/errors"

	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Shape names an account layout whose byte size is fixed.
type Shape int

const (
	TokenAccount Shape = iota
	Mint
	Obligation
	LendingMarket
	Reserve
	Memory
	DexMarket
)

func (s Shape) Size() uint64 {
	switch s {
	case TokenAccount:
		return uint64(spltoken.TokenLayoutSize)
	case Mint:
		return uint64(spltoken.MintLayoutSize)
	case Obligation:
		return uint64(tokenlending.ObligationLayoutSize)
	case LendingMarket:
		return uint64(tokenlending.LendingMarketLayoutSize)
	case Reserve:
		return uint64(tokenlending.ReserveLayoutSize)
	case Memory:
		return uint64(tokenlending.MemoryLayoutSize)
	case DexMarket:
		return uint64(serum.MarketLayoutSize)
	default:
		return 0
	}
}

func (s Shape) String() string {
	switch s {
	case TokenAccount:
		return "token account"
	case Mint:
		return "mint"
	case Obligation:
		return "obligation"
	case LendingMarket:
		return "lending market"
	case Reserve:
		return "reserve"
	case Memory:
		return "memory"
	case DexMarket:
		return "dex market"
	default:
		return "unknown"
	}
}

type Fetcher interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

type Calculator struct {
	fetcher Fetcher
}

func NewCalculator(fetcher Fetcher) *Calculator {
	return &Calculator{fetcher: fetcher}
}

// MinimumBalance returns the lamports an account of the given shape needs to be rent exempt.
// Every call queries the chain.
func (c *Calculator) MinimumBalance(ctx context.Context, shape Shape) (uint64, error) {
	size := shape.Size()
	if size == 0 {
		return 0, errors.Errorf("unknown account shape: %d", shape)
	}
	return c.fetcher.GetMinimumBalanceForRentExemption(ctx, size)
}
