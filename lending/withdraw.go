package lending

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Withdraw builds one transaction redeeming collateral for the reserve's liquidity.
func (o *Orchestrator) Withdraw(ctx context.Context, req *WithdrawRequest) (*batch.Transaction, error) {
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
	market, authority, err := o.market(ctx, reserve)
	if err != nil {
		return nil, err
	}

	b := batch.NewBuilder()
	transferAuthority, err := o.provisioner.Approve(b, req.Source.Key, req.Wallet, req.Amount, nil)
	if err != nil {
		return nil, err
	}
	destination, err := o.provisioner.FindOrCreateAssociatedAccount(ctx, b, req.Wallet, req.Wallet, reserve.LiquidityMint)
	if err != nil {
		return nil, err
	}
	b.Add(o.lending.InstructionAccrueInterest(reserve.Key))
	b.Add(o.lending.InstructionWithdraw(req.Amount, &tokenlending.WithdrawAccounts{
		Source:            req.Source.Key,
		Destination:       destination,
		Reserve:           reserve.Key,
		CollateralMint:    reserve.CollateralMint,
		LiquiditySupply:   reserve.LiquiditySupply,
		LendingMarket:     market.Key,
		Authority:         authority,
		TransferAuthority: transferAuthority.PublicKey(),
	}))

	o.log.WithFields(logrus.Fields{
		"reserve": reserve.Key.String(),
		"amount":  req.Amount,
	}).Info("withdraw built")
	return b.Build(), nil
}
