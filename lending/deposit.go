package lending

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Deposit builds one transaction moving liquidity into a reserve in exchange for collateral.
func (o *Orchestrator) Deposit(ctx context.Context, req *DepositRequest) (*batch.Transaction, error) {
	if err := checkWallet(req.Wallet); err != nil {
		return nil, err
	}
	if err := checkSource(req.Source); err != nil {
		return nil, err
	}
	reserve, err := o.lookup.Reserve(ctx, req.Reserve)
	if err != nil {
		return nil, err
	}
	if err := checkNativeSource(req.Source, reserve.LiquidityMint); err != nil {
		return nil, err
	}
	market, authority, err := o.market(ctx, reserve)
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
	destination, err := o.provisioner.FindOrCreateAssociatedAccount(ctx, b, req.Wallet, req.Wallet, reserve.CollateralMint)
	if err != nil {
		return nil, err
	}
	b.Add(o.lending.InstructionAccrueInterest(reserve.Key))
	b.Add(o.lending.InstructionDeposit(req.Amount, &tokenlending.DepositAccounts{
		Source:            source,
		Destination:       destination,
		Reserve:           reserve.Key,
		LiquiditySupply:   reserve.LiquiditySupply,
		CollateralMint:    reserve.CollateralMint,
		LendingMarket:     market.Key,
		Authority:         authority,
		TransferAuthority: transferAuthority.PublicKey(),
	}))

	o.log.WithFields(logrus.Fields{
		"reserve": reserve.Key.String(),
		"amount":  req.Amount,
		"source":  source.String(),
	}).Info("deposit built")
	return b.Build(), nil
}
