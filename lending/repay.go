package lending

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Repay builds one transaction paying back liquidity and releasing collateral. The receipt is
// approved for its whole balance so the program can burn what the repayment covers.
func (o *Orchestrator) Repay(ctx context.Context, req *RepayRequest) (*batch.Transaction, error) {
	if err := checkWallet(req.Wallet); err != nil {
		return nil, err
	}
	if err := checkSource(req.Source); err != nil {
		return nil, err
	}
	if req.Receipt == nil {
		return nil, errors.New("obligation receipt account is required")
	}
	repayReserve, err := o.lookup.Reserve(ctx, req.RepayReserve)
	if err != nil {
		return nil, err
	}
	withdrawReserve, err := o.lookup.Reserve(ctx, req.WithdrawReserve)
	if err != nil {
		return nil, err
	}
	if err := checkNativeSource(req.Source, repayReserve.LiquidityMint); err != nil {
		return nil, err
	}
	market, authority, err := o.market(ctx, repayReserve)
	if err != nil {
		return nil, err
	}
	obligation, err := o.lookup.Obligation(ctx, req.Obligation)
	if err != nil {
		return nil, err
	}
	rentLamports, err := o.tokenAccountRent(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	b := batch.NewBuilder()
	source, err := o.spendable(ctx, b, req.Source, req.Wallet, req.Amount, rentLamports)
	if err != nil {
		return nil, err
	}
	transferAuthority, err := o.provisioner.Approve(b, source, req.Wallet, req.Amount, nil)
	if err != nil {
		return nil, err
	}
	destination, err := o.provisioner.FindOrCreateAssociatedAccount(ctx, b, req.Wallet, req.Wallet, withdrawReserve.CollateralMint)
	if err != nil {
		return nil, err
	}
	_, err = o.provisioner.Approve(b, req.Receipt.Key, req.Wallet, req.Receipt.Amount, transferAuthority)
	if err != nil {
		return nil, err
	}
	b.Add(o.lending.InstructionAccrueInterest(repayReserve.Key, withdrawReserve.Key))
	b.Add(o.lending.InstructionRepay(req.Amount, &tokenlending.RepayAccounts{
		Source:                   source,
		Destination:              destination,
		RepayReserve:             repayReserve.Key,
		RepayLiquiditySupply:     repayReserve.LiquiditySupply,
		WithdrawReserve:          withdrawReserve.Key,
		WithdrawCollateralSupply: withdrawReserve.CollateralSupply,
		Obligation:               obligation.Key,
		ObligationMint:           obligation.TokenMint,
		ObligationInput:          req.Receipt.Key,
		LendingMarket:            market.Key,
		Authority:                authority,
		TransferAuthority:        transferAuthority.PublicKey(),
	}))

	o.log.WithFields(logrus.Fields{
		"obligation": obligation.Key.String(),
		"amount":     req.Amount,
		"receipt":    req.Receipt.Amount,
	}).Info("repay built")
	return b.Build(), nil
}
