package lending

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Lookup reads the on-chain records the orchestrators depend on. Every call reads fresh state.
type Lookup interface {
	LendingMarket(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedLendingMarket, error)
	Reserve(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedReserve, error)
	Obligation(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedObligation, error)
	Mint(ctx context.Context, key solana.PublicKey) (*spltoken.KeyedToken, error)
	DexMarket(ctx context.Context, key solana.PublicKey) (*serum.KeyedMarket, error)
}
