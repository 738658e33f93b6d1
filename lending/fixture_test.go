package lending

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-lending/program"
	"github.com/egaotan/solana-lending/provision"
	"github.com/egaotan/solana-lending/rent"
	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

const lamportsPerByte = 10

var tokenAccountRent = uint64(165 * lamportsPerByte)

type fakeFetcher struct{}

func (f *fakeFetcher) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return size * lamportsPerByte, nil
}

type fakeFinder struct {
	existing map[solana.PublicKey]bool
}

func (f *fakeFinder) FindAccount(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, bool, error) {
	address, err := spltoken.FindAssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	return address, f.existing[address], nil
}

type fakeLookup struct {
	markets     map[solana.PublicKey]*tokenlending.KeyedLendingMarket
	reserves    map[solana.PublicKey]*tokenlending.KeyedReserve
	obligations map[solana.PublicKey]*tokenlending.KeyedObligation
	mints       map[solana.PublicKey]*spltoken.KeyedToken
	dexMarkets  map[solana.PublicKey]*serum.KeyedMarket
}

func (f *fakeLookup) LendingMarket(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedLendingMarket, error) {
	if market, ok := f.markets[key]; ok {
		return market, nil
	}
	return nil, errors.Wrapf(tokenlending.ErrAccountMissing, "lending market(%s)", key)
}

func (f *fakeLookup) Reserve(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedReserve, error) {
	if reserve, ok := f.reserves[key]; ok {
		return reserve, nil
	}
	return nil, errors.Wrapf(tokenlending.ErrAccountMissing, "reserve(%s)", key)
}

func (f *fakeLookup) Obligation(ctx context.Context, key solana.PublicKey) (*tokenlending.KeyedObligation, error) {
	if obligation, ok := f.obligations[key]; ok {
		return obligation, nil
	}
	return nil, errors.Wrapf(tokenlending.ErrAccountMissing, "obligation(%s)", key)
}

func (f *fakeLookup) Mint(ctx context.Context, key solana.PublicKey) (*spltoken.KeyedToken, error) {
	if mint, ok := f.mints[key]; ok {
		return mint, nil
	}
	return nil, errors.Errorf("mint(%s) is missing", key)
}

func (f *fakeLookup) DexMarket(ctx context.Context, key solana.PublicKey) (*serum.KeyedMarket, error) {
	if market, ok := f.dexMarkets[key]; ok {
		return market, nil
	}
	return nil, errors.Wrapf(serum.ErrMarketMissing, "market(%s)", key)
}

// fixture is a lending market with a USDC-like reserve (6 decimals, quote asset) and a
// SOL-like reserve (9 decimals) priced on one dex market.
type fixture struct {
	wallet       solana.PublicKey
	lookup       *fakeLookup
	finder       *fakeFinder
	market       *tokenlending.KeyedLendingMarket
	usdc         *tokenlending.KeyedReserve
	sol          *tokenlending.KeyedReserve
	dex          *serum.KeyedMarket
	orchestrator *Orchestrator
	lending      *tokenlending.Program
}

func newKey(t *testing.T) solana.PublicKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func newReserve(t *testing.T, market solana.PublicKey, liquidityMint solana.PublicKey) *tokenlending.KeyedReserve {
	return &tokenlending.KeyedReserve{
		Key: newKey(t),
		ReserveLayout: tokenlending.ReserveLayout{
			LendingMarket:          market,
			LiquidityMint:          liquidityMint,
			LiquiditySupply:        newKey(t),
			CollateralMint:         newKey(t),
			CollateralSupply:       newKey(t),
			CollateralFeesReceiver: newKey(t),
		},
	}
}

func newFixture(t *testing.T, hostFee HostFee) *fixture {
	f := &fixture{
		wallet: newKey(t),
		finder: &fakeFinder{existing: map[solana.PublicKey]bool{}},
		lookup: &fakeLookup{
			markets:     map[solana.PublicKey]*tokenlending.KeyedLendingMarket{},
			reserves:    map[solana.PublicKey]*tokenlending.KeyedReserve{},
			obligations: map[solana.PublicKey]*tokenlending.KeyedObligation{},
			mints:       map[solana.PublicKey]*spltoken.KeyedToken{},
			dexMarkets:  map[solana.PublicKey]*serum.KeyedMarket{},
		},
	}
	usdcMint, solMint := newKey(t), program.NativeMint
	f.market = &tokenlending.KeyedLendingMarket{
		Key:                 newKey(t),
		LendingMarketLayout: tokenlending.LendingMarketLayout{QuoteTokenMint: usdcMint},
	}
	f.lookup.markets[f.market.Key] = f.market
	f.usdc = newReserve(t, f.market.Key, usdcMint)
	f.sol = newReserve(t, f.market.Key, solMint)
	f.dex = &serum.KeyedMarket{Key: newKey(t), MarketLayout: serum.MarketLayout{Bids: newKey(t), Asks: newKey(t)}}
	f.sol.DexMarketOption = [4]byte{1}
	f.sol.DexMarket = f.dex.Key
	f.lookup.dexMarkets[f.dex.Key] = f.dex
	for _, reserve := range []*tokenlending.KeyedReserve{f.usdc, f.sol} {
		f.lookup.reserves[reserve.Key] = reserve
	}
	f.lookup.mints[usdcMint] = &spltoken.KeyedToken{Key: usdcMint, TokenLayout: spltoken.TokenLayout{Decimals: 6}}
	f.lookup.mints[solMint] = &spltoken.KeyedToken{Key: solMint, TokenLayout: spltoken.TokenLayout{Decimals: 9}}
	f.lookup.mints[f.usdc.CollateralMint] = &spltoken.KeyedToken{Key: f.usdc.CollateralMint, TokenLayout: spltoken.TokenLayout{Decimals: 6}}
	f.lookup.mints[f.sol.CollateralMint] = &spltoken.KeyedToken{Key: f.sol.CollateralMint, TokenLayout: spltoken.TokenLayout{Decimals: 9}}

	calculator := rent.NewCalculator(&fakeFetcher{})
	f.lending = tokenlending.NewProgram(solana.PublicKey{}, nil)
	provisioner := provision.NewProvisioner(f.finder, calculator, spltoken.NewProgram(nil), f.lending.Id())
	f.orchestrator = NewOrchestrator(f.lending, provisioner, calculator, f.lookup, hostFee)
	return f
}

// own marks the wallet's associated account for mint as existing.
func (f *fixture) own(t *testing.T, owner solana.PublicKey, mint solana.PublicKey) solana.PublicKey {
	address, err := spltoken.FindAssociatedAddress(owner, mint)
	require.NoError(t, err)
	f.finder.existing[address] = true
	return address
}

func (f *fixture) tokenAccount(t *testing.T, mint solana.PublicKey, amount uint64) *spltoken.KeyedUser {
	return &spltoken.KeyedUser{
		Key:        newKey(t),
		UserLayout: spltoken.UserLayout{Mint: mint, Owner: f.wallet, Amount: amount},
	}
}

type step struct {
	program solana.PublicKey
	command byte
}

func steps(t *testing.T, instructions []solana.Instruction) []step {
	out := make([]step, 0, len(instructions))
	for _, instruction := range instructions {
		data, err := instruction.Data()
		require.NoError(t, err)
		s := step{program: instruction.ProgramID()}
		if len(data) > 0 {
			s.command = data[0]
		}
		out = append(out, s)
	}
	return out
}

var (
	stepCreateAccount  = step{program.System, 0}
	stepCreateAssoc    = step{program.AssociatedToken, 0}
	stepInitUser       = step{program.Token, byte(spltoken.CommandInitializeAccount)}
	stepApprove        = step{program.Token, byte(spltoken.CommandApprove)}
	stepRevoke         = step{program.Token, byte(spltoken.CommandRevoke)}
	stepClose          = step{program.Token, byte(spltoken.CommandCloseAccount)}
	stepAccrue         = step{program.TokenLending, byte(tokenlending.CommandAccrueReserveInterest)}
	stepInitObligation = step{program.TokenLending, byte(tokenlending.CommandInitObligation)}
	stepDeposit        = step{program.TokenLending, byte(tokenlending.CommandDepositReserveLiquidity)}
	stepWithdraw       = step{program.TokenLending, byte(tokenlending.CommandWithdrawReserveLiquidity)}
	stepBorrow         = step{program.TokenLending, byte(tokenlending.CommandBorrowReserveLiquidity)}
	stepRepay          = step{program.TokenLending, byte(tokenlending.CommandRepayReserveLiquidity)}
)
