// Package lending builds the transactions of the four lending operations: deposit, withdraw,
// borrow and repay.
//
// Every transaction accrues interest on the reserves it touches immediately before the
// mutating instruction. Transfers go through a single use transfer authority approved for the
// exact amount, and every approval and wrapped native account is released by cleanup
// instructions at the end of the same transaction.
package lending

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/program"
	"github.com/egaotan/solana-lending/provision"
	"github.com/egaotan/solana-lending/rent"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

type Orchestrator struct {
	log         *logrus.Entry
	lending     *tokenlending.Program
	provisioner *provision.Provisioner
	rent        *rent.Calculator
	lookup      Lookup
	hostFee     HostFee
}

func NewOrchestrator(lending *tokenlending.Program, provisioner *provision.Provisioner, calculator *rent.Calculator, lookup Lookup, hostFee HostFee) *Orchestrator {
	switch fee := hostFee.(type) {
	case nil:
		hostFee = NoHostFee{}
	case *HostFeeAddress:
		if fee == nil || fee.Owner.IsZero() {
			hostFee = NoHostFee{}
		} else {
			hostFee = *fee
		}
	case HostFeeAddress:
		if fee.Owner.IsZero() {
			hostFee = NoHostFee{}
		}
	}
	return &Orchestrator{
		log:         logrus.StandardLogger().WithField("service", "lending"),
		lending:     lending,
		provisioner: provisioner,
		rent:        calculator,
		lookup:      lookup,
		hostFee:     hostFee,
	}
}

// market resolves the lending market of reserve and the authority owning its supplies.
func (o *Orchestrator) market(ctx context.Context, reserve *tokenlending.KeyedReserve) (*tokenlending.KeyedLendingMarket, solana.PublicKey, error) {
	if reserve.LendingMarket.IsZero() {
		return nil, solana.PublicKey{}, errors.Wrapf(ErrMarketMissing, "reserve(%s)", reserve.Key)
	}
	market, err := o.lookup.LendingMarket(ctx, reserve.LendingMarket)
	if err != nil {
		if errors.Is(err, tokenlending.ErrAccountMissing) {
			return nil, solana.PublicKey{}, errors.Wrapf(ErrMarketMissing, "reserve(%s): %s", reserve.Key, err)
		}
		return nil, solana.PublicKey{}, err
	}
	authority, _, err := tokenlending.DeriveAuthority(market.Key, o.lending.Id())
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return market, authority, nil
}

// tokenAccountRent is only queried when a native balance has to be wrapped.
func (o *Orchestrator) tokenAccountRent(ctx context.Context, source *spltoken.KeyedUser) (uint64, error) {
	if !spltoken.IsWalletNative(source) {
		return 0, nil
	}
	return o.rent.MinimumBalance(ctx, rent.TokenAccount)
}

// spendable makes source usable by the token program, funding a wrapped account with amount
// plus its rent when source is the wallet's native balance.
func (o *Orchestrator) spendable(ctx context.Context, b *batch.Builder, source *spltoken.KeyedUser, owner solana.PublicKey, amount uint64, rentLamports uint64) (solana.PublicKey, error) {
	if amount > math.MaxUint64-rentLamports {
		return solana.PublicKey{}, ErrAmountOverflow
	}
	return o.provisioner.EnsureWrappedAccount(ctx, b, source, owner, amount+rentLamports)
}

func checkWallet(wallet solana.PublicKey) error {
	if wallet.IsZero() {
		return ErrWalletNotConnected
	}
	return nil
}

func checkSource(source *spltoken.KeyedUser) error {
	if source == nil {
		return errors.New("source account is required")
	}
	return nil
}

// checkNativeSource only lets the wallet's SOL balance fund a reserve of wrapped SOL.
func checkNativeSource(source *spltoken.KeyedUser, liquidityMint solana.PublicKey) error {
	if spltoken.IsWalletNative(source) && liquidityMint != program.NativeMint {
		return errors.Wrapf(ErrSourceMintMismatch, "native balance cannot fund mint(%s)", liquidityMint)
	}
	return nil
}
