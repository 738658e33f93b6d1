package app

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

type Asset int

const (
	Liquidity Asset = iota
	Collateral
)

// Resolver turns the addresses of an http request into the accounts an operation needs.
type Resolver interface {
	Holding(ctx context.Context, wallet solana.PublicKey, key solana.PublicKey) (*spltoken.KeyedUser, error)
	Decimals(ctx context.Context, reserve solana.PublicKey, asset Asset) (uint8, error)
	Reserve(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedReserve, error)
}

// ChainLookup reads every record straight from the chain. Nothing is cached between calls.
type ChainLookup struct {
	backend *backend.Backend
	lending *tokenlending.Program
	token   *spltoken.Program
	serum   *serum.Program
	market  solana.PublicKey
}

func NewChainLookup(be *backend.Backend, lending *tokenlending.Program, token *spltoken.Program, dex *serum.Program, market solana.PublicKey) *ChainLookup {
	return &ChainLookup{
		backend: be,
		lending: lending,
		token:   token,
		serum:   dex,
		market:  market,
	}
}

// LendingMarket only serves the configured market when one is set.
func (l *ChainLookup) LendingMarket(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedLendingMarket, error) {
	if !l.market.IsZero() && key != l.market {
		return nil, errors.Wrapf(tokenlending.ErrAccountMissing, "lending market(%s) is not served", key)
	}
	return l.lending.RetrieveLendingMarket(ctx, key)
}

func (l *ChainLookup) Reserve(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedReserve, error) {
	return l.lending.RetrieveReserve(ctx, key)
}

func (l *ChainLookup) Obligation(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedObligation, error) {
	return l.lending.RetrieveObligation(ctx, key)
}

func (l *ChainLookup) Mint(ctx context.Context, key solana.PublicKey) (*spltoken.KeyedToken, error) {
	return l.token.RetrieveToken(ctx, key)
}

func (l *ChainLookup) DexMarket(ctx context.Context, key solana.PublicKey) (*serum.KeyedMarket, error) {
	return l.serum.RetrieveMarket(ctx, key)
}

// Holding returns the token account key, or the wallet's SOL balance when key is the wallet.
func (l *ChainLookup) Holding(ctx context.Context, wallet solana.PublicKey, key solana.PublicKey) (*spltoken.KeyedUser, error) {
	if key == wallet {
		lamports, err := l.backend.Balance(ctx, wallet)
		if err != nil {
			return nil, err
		}
		return spltoken.WalletNative(wallet, lamports), nil
	}
	user, err := l.token.RetrieveUser(ctx, key)
	if err != nil {
		return nil, err
	}
	if user.Owner != wallet {
		return nil, errors.Errorf("account(%s) is owned by %s, not by the wallet", key, user.Owner)
	}
	return user, nil
}

func (l *ChainLookup) Decimals(ctx context.Context, key solana.PublicKey, asset Asset) (uint8, error) {
	reserve, err := l.Reserve(ctx, key)
	if err != nil {
		return 0, err
	}
	mint := reserve.LiquidityMint
	if asset == Collateral {
		mint = reserve.CollateralMint
	}
	token, err := l.Mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return token.Decimals, nil
}
