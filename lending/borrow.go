package lending

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

// BorrowPlan is either *BorrowReady or *BorrowRequiresSetup.
type BorrowPlan interface {
	isBorrowPlan()
}

// BorrowReady borrows against an existing obligation in a single transaction.
type BorrowReady struct {
	Transaction *batch.Transaction
}

// BorrowRequiresSetup creates the obligation first. The borrow transaction is only available
// through Then, once Setup is confirmed.
type BorrowRequiresSetup struct {
	Setup          *batch.Transaction
	Obligation     solana.PublicKey
	ObligationMint solana.PublicKey
	Receipt        solana.PublicKey
	next           func(ctx context.Context) (*batch.Transaction, error)
}

func (*BorrowReady) isBorrowPlan()         {}
func (*BorrowRequiresSetup) isBorrowPlan() {}

// Then builds the borrow transaction referencing the accounts created by Setup.
func (s *BorrowRequiresSetup) Then(ctx context.Context, receipt *backend.Receipt) (*batch.Transaction, error) {
	if receipt == nil || receipt.Signature == (solana.Signature{}) {
		return nil, ErrSetupNotConfirmed
	}
	return s.next(ctx)
}

type borrowContext struct {
	req            *BorrowRequest
	depositReserve *tokenlending.KeyedReserve
	borrowReserve  *tokenlending.KeyedReserve
	market         *tokenlending.KeyedLendingMarket
	authority      solana.PublicKey
	dexMarket      *serum.KeyedMarket
	orderBookSide  solana.PublicKey
	amount         uint64
}

type obligationAccounts struct {
	obligation solana.PublicKey
	mint       solana.PublicKey
	receipt    solana.PublicKey
}

// Borrow resolves everything the borrow needs before building anything: reserves, market, price
// venue and amount. A missing price venue fails the whole operation.
func (o *Orchestrator) Borrow(ctx context.Context, req *BorrowRequest) (BorrowPlan, error) {
	if err := checkWallet(req.Wallet); err != nil {
		return nil, err
	}
	if err := checkSource(req.Source); err != nil {
		return nil, err
	}
	bc := &borrowContext{req: req}
	var err error
	if bc.depositReserve, err = o.lookup.Reserve(ctx, req.DepositReserve); err != nil {
		return nil, err
	}
	if bc.borrowReserve, err = o.lookup.Reserve(ctx, req.BorrowReserve); err != nil {
		return nil, err
	}
	if bc.market, bc.authority, err = o.market(ctx, bc.depositReserve); err != nil {
		return nil, err
	}
	if err = o.priceVenue(ctx, bc); err != nil {
		return nil, err
	}
	if bc.amount, err = o.borrowAmount(ctx, bc); err != nil {
		return nil, err
	}

	choice := req.Obligation
	if existing, ok := choice.(*ExistingObligation); ok {
		if existing == nil {
			choice = NewObligation{}
		} else {
			choice = *existing
		}
	}
	switch choice := choice.(type) {
	case ExistingObligation:
		obligation, err := o.lookup.Obligation(ctx, choice.Obligation)
		if err != nil {
			return nil, err
		}
		tx, err := o.borrowAction(ctx, bc, &obligationAccounts{
			obligation: obligation.Key,
			mint:       obligation.TokenMint,
			receipt:    choice.Receipt,
		})
		if err != nil {
			return nil, err
		}
		return &BorrowReady{Transaction: tx}, nil
	case NewObligation, *NewObligation, nil:
		return o.borrowSetup(ctx, bc)
	default:
		return nil, errors.Errorf("unknown obligation choice %T", req.Obligation)
	}
}

// priceVenue prefers the dex market of the borrow reserve over the deposit reserve's. Asks are
// used when the deposit asset is the market's quote token.
func (o *Orchestrator) priceVenue(ctx context.Context, bc *borrowContext) error {
	var key solana.PublicKey
	switch {
	case bc.borrowReserve.HasDexMarket():
		key = bc.borrowReserve.DexMarket
	case bc.depositReserve.HasDexMarket():
		key = bc.depositReserve.DexMarket
	default:
		return errors.Wrapf(ErrPriceVenueMissing, "reserves(%s, %s)", bc.depositReserve.Key, bc.borrowReserve.Key)
	}
	dexMarket, err := o.lookup.DexMarket(ctx, key)
	if err != nil {
		return errors.Wrapf(ErrPriceVenueMissing, "dex market(%s): %s", key, err)
	}
	bc.dexMarket = dexMarket
	bc.orderBookSide = dexMarket.Side(bc.market.QuoteTokenMint == bc.depositReserve.LiquidityMint)
	return nil
}

func (o *Orchestrator) borrowAmount(ctx context.Context, bc *borrowContext) (uint64, error) {
	var mint solana.PublicKey
	switch bc.req.AmountType {
	case tokenlending.LiquidityBorrowAmount:
		mint = bc.borrowReserve.LiquidityMint
	case tokenlending.CollateralDepositAmount:
		mint = bc.depositReserve.CollateralMint
	default:
		return 0, errors.Wrapf(ErrUnknownAmountType, "%d", bc.req.AmountType)
	}
	if bc.req.Amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	token, err := o.lookup.Mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return ToLamports(bc.req.Amount, token.Decimals)
}

// borrowSetup only creates and initializes the obligation, its receipt mint and the wallet's
// receipt account.
func (o *Orchestrator) borrowSetup(ctx context.Context, bc *borrowContext) (BorrowPlan, error) {
	wallet := bc.req.Wallet
	b := batch.NewBuilder()
	obligation, err := o.provisioner.CreateUninitializedObligation(ctx, b, wallet)
	if err != nil {
		return nil, err
	}
	mint, err := o.provisioner.CreateUninitializedMint(ctx, b, wallet)
	if err != nil {
		return nil, err
	}
	receipt, err := o.provisioner.CreateUninitializedAccount(ctx, b, wallet)
	if err != nil {
		return nil, err
	}
	accounts := &obligationAccounts{
		obligation: obligation.PublicKey(),
		mint:       mint.PublicKey(),
		receipt:    receipt.PublicKey(),
	}
	b.Add(o.lending.InstructionInitObligation(&tokenlending.InitObligationAccounts{
		DepositReserve:        bc.depositReserve.Key,
		BorrowReserve:         bc.borrowReserve.Key,
		Obligation:            accounts.obligation,
		ObligationMint:        accounts.mint,
		ObligationTokenOutput: accounts.receipt,
		ObligationTokenOwner:  wallet,
		LendingMarket:         bc.market.Key,
		Authority:             bc.authority,
	}))

	o.log.WithField("obligation", accounts.obligation.String()).Info("borrow setup built")
	return &BorrowRequiresSetup{
		Setup:          b.Build(),
		Obligation:     accounts.obligation,
		ObligationMint: accounts.mint,
		Receipt:        accounts.receipt,
		next: func(ctx context.Context) (*batch.Transaction, error) {
			return o.borrowAction(ctx, bc, accounts)
		},
	}, nil
}

func (o *Orchestrator) borrowAction(ctx context.Context, bc *borrowContext, obligation *obligationAccounts) (*batch.Transaction, error) {
	wallet := bc.req.Wallet
	rentLamports, err := o.tokenAccountRent(ctx, bc.req.Source)
	if err != nil {
		return nil, err
	}
	spend := bc.amount
	if bc.req.AmountType == tokenlending.LiquidityBorrowAmount {
		spend = bc.req.Source.Amount
		if spltoken.IsWalletNative(bc.req.Source) {
			if spend > rentLamports {
				spend -= rentLamports
			} else {
				spend = 0
			}
		}
	}

	b := batch.NewBuilder()
	source, err := o.spendable(ctx, b, bc.req.Source, wallet, spend, rentLamports)
	if err != nil {
		return nil, err
	}
	destination, err := o.provisioner.FindOrCreateAssociatedAccount(ctx, b, wallet, wallet, bc.borrowReserve.LiquidityMint)
	if err != nil {
		return nil, err
	}
	var hostFeeReceiver solana.PublicKey
	if host, ok := o.hostFee.(HostFeeAddress); ok {
		hostFeeReceiver, err = o.provisioner.FindOrCreateAssociatedAccount(ctx, b, wallet, host.Owner, bc.depositReserve.CollateralMint)
		if err != nil {
			return nil, err
		}
	}
	transferAuthority, err := o.provisioner.Approve(b, source, wallet, spend, nil)
	if err != nil {
		return nil, err
	}
	memory, err := o.provisioner.CreateTemporaryMemoryAccount(b, wallet)
	if err != nil {
		return nil, err
	}
	b.Add(o.lending.InstructionAccrueInterest(bc.depositReserve.Key, bc.borrowReserve.Key))
	b.Add(o.lending.InstructionBorrow(bc.amount, bc.req.AmountType, &tokenlending.BorrowAccounts{
		Source:                       source,
		Destination:                  destination,
		DepositReserve:               bc.depositReserve.Key,
		DepositCollateralSupply:      bc.depositReserve.CollateralSupply,
		DepositCollateralFeeReceiver: bc.depositReserve.CollateralFeesReceiver,
		BorrowReserve:                bc.borrowReserve.Key,
		BorrowLiquiditySupply:        bc.borrowReserve.LiquiditySupply,
		Obligation:                   obligation.obligation,
		ObligationMint:               obligation.mint,
		ObligationTokenOutput:        obligation.receipt,
		LendingMarket:                bc.market.Key,
		Authority:                    bc.authority,
		TransferAuthority:            transferAuthority.PublicKey(),
		DexMarket:                    bc.dexMarket.Key,
		DexOrderBookSide:             bc.orderBookSide,
		Memory:                       memory.PublicKey(),
		HostFeeReceiver:              hostFeeReceiver,
	}))

	o.log.WithFields(logrus.Fields{
		"obligation": obligation.obligation.String(),
		"amount":     bc.amount,
		"type":       bc.req.AmountType.String(),
		"spend":      spend,
	}).Info("borrow built")
	return b.Build(), nil
}
