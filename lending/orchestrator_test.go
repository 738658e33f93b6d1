package lending

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

func approveAmount(t *testing.T, instruction solana.Instruction) uint64 {
	amount, err := spltoken.DecodeApproveAmount(instruction)
	require.NoError(t, err)
	return amount
}

func TestDeposit_Scenario(t *testing.T) {
	f := newFixture(t, nil)
	f.own(t, f.wallet, f.usdc.CollateralMint)
	amount, err := ToLamports(decimal.RequireFromString("12.5"), 6)
	require.NoError(t, err)
	source := f.tokenAccount(t, f.usdc.LiquidityMint, 100_000_000)

	tx, err := f.orchestrator.Deposit(context.Background(), &DepositRequest{
		Wallet:  f.wallet,
		Source:  source,
		Amount:  amount,
		Reserve: f.usdc.Key,
	})
	require.NoError(t, err)

	instructions := tx.Instructions()
	assert.Equal(t, []step{stepApprove, stepAccrue, stepDeposit}, steps(t, instructions))
	assert.Equal(t, uint64(12_500_000), approveAmount(t, instructions[0]))
	assert.Equal(t, f.usdc.Key, instructions[1].Accounts()[1].PublicKey)
	data, err := instructions[2].Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(12_500_000), binary.LittleEndian.Uint64(data[1:9]))

	delegate := instructions[0].Accounts()[1].PublicKey
	assert.Equal(t, delegate, instructions[2].Accounts()[7].PublicKey)
	assert.NotNil(t, tx.Signer(delegate))
	assert.Equal(t, []step{stepRevoke}, steps(t, tx.Cleanup()))
	assert.Equal(t, source.Key, tx.Cleanup()[0].Accounts()[0].PublicKey)

	authority, _, err := tokenlending.DeriveAuthority(f.market.Key, f.lending.Id())
	require.NoError(t, err)
	assert.Equal(t, authority, instructions[2].Accounts()[6].PublicKey)
}

func TestDeposit_WrapsNativeBalance(t *testing.T) {
	f := newFixture(t, nil)
	source := spltoken.WalletNative(f.wallet, 5_000_000_000)

	tx, err := f.orchestrator.Deposit(context.Background(), &DepositRequest{
		Wallet:  f.wallet,
		Source:  source,
		Amount:  1_000_000_000,
		Reserve: f.sol.Key,
	})
	require.NoError(t, err)

	instructions := tx.Instructions()
	assert.Equal(t, []step{stepCreateAccount, stepInitUser, stepApprove, stepCreateAssoc, stepAccrue, stepDeposit},
		steps(t, instructions))
	data, err := instructions[0].Data()
	require.NoError(t, err)
	assert.Equal(t, 1_000_000_000+tokenAccountRent, binary.LittleEndian.Uint64(data[4:12]))

	wrapped := instructions[0].Accounts()[1].PublicKey
	assert.Equal(t, wrapped, instructions[5].Accounts()[0].PublicKey)
	assert.Equal(t, []step{stepRevoke, stepClose}, steps(t, tx.Cleanup()))
	assert.Equal(t, wrapped, tx.Cleanup()[1].Accounts()[0].PublicKey)
	assert.Equal(t, f.wallet, tx.Cleanup()[1].Accounts()[1].PublicKey)
}

func TestDeposit_Preconditions(t *testing.T) {
	f := newFixture(t, nil)
	source := f.tokenAccount(t, f.usdc.LiquidityMint, 1)

	_, err := f.orchestrator.Deposit(context.Background(), &DepositRequest{Source: source, Amount: 1, Reserve: f.usdc.Key})
	assert.Equal(t, ErrWalletNotConnected, err)

	orphan := newReserve(t, newKey(t), f.usdc.LiquidityMint)
	f.lookup.reserves[orphan.Key] = orphan
	_, err = f.orchestrator.Deposit(context.Background(), &DepositRequest{Wallet: f.wallet, Source: source, Amount: 1, Reserve: orphan.Key})
	assert.True(t, errors.Is(err, ErrMarketMissing))

	_, err = f.orchestrator.Deposit(context.Background(), &DepositRequest{Wallet: f.wallet, Source: source, Amount: 1, Reserve: newKey(t)})
	assert.True(t, errors.Is(err, tokenlending.ErrAccountMissing))
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, nil)
	source := f.tokenAccount(t, f.usdc.CollateralMint, 50)

	tx, err := f.orchestrator.Withdraw(context.Background(), &WithdrawRequest{
		Wallet:  f.wallet,
		Source:  source,
		Amount:  50,
		Reserve: f.usdc.Key,
	})
	require.NoError(t, err)

	instructions := tx.Instructions()
	assert.Equal(t, []step{stepApprove, stepCreateAssoc, stepAccrue, stepWithdraw}, steps(t, instructions))
	assert.Equal(t, uint64(50), approveAmount(t, instructions[0]))
	destination, err := spltoken.FindAssociatedAddress(f.wallet, f.usdc.LiquidityMint)
	require.NoError(t, err)
	assert.Equal(t, destination, instructions[3].Accounts()[1].PublicKey)
	assert.Equal(t, []step{stepRevoke}, steps(t, tx.Cleanup()))
}

func TestBorrow_NewObligationScenario(t *testing.T) {
	f := newFixture(t, nil)
	source := f.tokenAccount(t, f.usdc.CollateralMint, 2_000_000_000)

	plan, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
		Wallet:         f.wallet,
		Source:         source,
		DepositReserve: f.usdc.Key,
		BorrowReserve:  f.sol.Key,
		Amount:         decimal.NewFromInt(100),
		AmountType:     tokenlending.LiquidityBorrowAmount,
		Obligation:     NewObligation{},
	})
	require.NoError(t, err)
	setup, ok := plan.(*BorrowRequiresSetup)
	require.True(t, ok)

	assert.Equal(t, []step{stepCreateAccount, stepCreateAccount, stepCreateAccount, stepInitObligation},
		steps(t, setup.Setup.Instructions()))
	assert.Empty(t, setup.Setup.Cleanup())
	init := setup.Setup.Instructions()[3].Accounts()
	assert.Equal(t, setup.Obligation, init[2].PublicKey)
	assert.Equal(t, setup.ObligationMint, init[3].PublicKey)
	assert.Equal(t, setup.Receipt, init[4].PublicKey)
	assert.Equal(t, f.wallet, init[5].PublicKey)
	assert.Len(t, setup.Setup.Signers(), 3)

	_, err = setup.Then(context.Background(), nil)
	assert.Equal(t, ErrSetupNotConfirmed, err)
	_, err = setup.Then(context.Background(), &backend.Receipt{})
	assert.Equal(t, ErrSetupNotConfirmed, err)

	tx, err := setup.Then(context.Background(), &backend.Receipt{Signature: solana.Signature{1}})
	require.NoError(t, err)
	instructions := tx.Instructions()
	assert.Equal(t, []step{stepCreateAssoc, stepApprove, stepCreateAccount, stepAccrue, stepBorrow}, steps(t, instructions))

	borrow := instructions[4]
	data, err := borrow.Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, byte(tokenlending.LiquidityBorrowAmount), data[9])
	accounts := borrow.Accounts()
	require.Len(t, accounts, 19)
	assert.Equal(t, setup.Obligation, accounts[7].PublicKey)
	assert.Equal(t, setup.ObligationMint, accounts[8].PublicKey)
	assert.Equal(t, setup.Receipt, accounts[9].PublicKey)
	assert.Equal(t, f.dex.Key, accounts[13].PublicKey)
	// depositing the quote asset prices against asks
	assert.Equal(t, f.dex.Asks, accounts[14].PublicKey)
	assert.Equal(t, instructions[2].Accounts()[1].PublicKey, accounts[15].PublicKey)

	assert.Equal(t, uint64(2_000_000_000), approveAmount(t, instructions[1]))
	accrue := instructions[3].Accounts()
	assert.Equal(t, f.usdc.Key, accrue[1].PublicKey)
	assert.Equal(t, f.sol.Key, accrue[2].PublicKey)
	assert.Equal(t, []step{stepRevoke}, steps(t, tx.Cleanup()))
}

func TestBorrow_ExistingObligation(t *testing.T) {
	f := newFixture(t, nil)
	f.own(t, f.wallet, f.sol.LiquidityMint)
	obligation := &tokenlending.KeyedObligation{
		Key:              newKey(t),
		ObligationLayout: tokenlending.ObligationLayout{TokenMint: newKey(t)},
	}
	f.lookup.obligations[obligation.Key] = obligation
	receipt := newKey(t)
	source := f.tokenAccount(t, f.usdc.CollateralMint, 9_000_000)

	plan, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
		Wallet:         f.wallet,
		Source:         source,
		DepositReserve: f.usdc.Key,
		BorrowReserve:  f.sol.Key,
		Amount:         decimal.RequireFromString("2.5"),
		AmountType:     tokenlending.CollateralDepositAmount,
		Obligation:     ExistingObligation{Obligation: obligation.Key, Receipt: receipt},
	})
	require.NoError(t, err)
	ready, ok := plan.(*BorrowReady)
	require.True(t, ok)

	instructions := ready.Transaction.Instructions()
	assert.Equal(t, []step{stepApprove, stepCreateAccount, stepAccrue, stepBorrow}, steps(t, instructions))
	assert.NotContains(t, steps(t, instructions), stepInitObligation)
	assert.Equal(t, uint64(2_500_000), approveAmount(t, instructions[0]))
	accounts := instructions[3].Accounts()
	assert.Equal(t, obligation.Key, accounts[7].PublicKey)
	assert.Equal(t, obligation.TokenMint, accounts[8].PublicKey)
	assert.Equal(t, receipt, accounts[9].PublicKey)
	data, err := instructions[3].Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, byte(tokenlending.CollateralDepositAmount), data[9])
}

func TestBorrow_HostFeeAndBidSide(t *testing.T) {
	host := newKey(t)
	f := newFixture(t, &HostFeeAddress{Owner: host})
	f.own(t, f.wallet, f.usdc.LiquidityMint)
	obligation := &tokenlending.KeyedObligation{Key: newKey(t)}
	f.lookup.obligations[obligation.Key] = obligation
	source := f.tokenAccount(t, f.sol.CollateralMint, 1_000)

	plan, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
		Wallet:         f.wallet,
		Source:         source,
		DepositReserve: f.sol.Key,
		BorrowReserve:  f.usdc.Key,
		Amount:         decimal.NewFromInt(1),
		AmountType:     tokenlending.LiquidityBorrowAmount,
		Obligation:     &ExistingObligation{Obligation: obligation.Key, Receipt: newKey(t)},
	})
	require.NoError(t, err)
	tx := plan.(*BorrowReady).Transaction

	instructions := tx.Instructions()
	assert.Equal(t, []step{stepCreateAssoc, stepApprove, stepCreateAccount, stepAccrue, stepBorrow}, steps(t, instructions))
	receiver, err := spltoken.FindAssociatedAddress(host, f.sol.CollateralMint)
	require.NoError(t, err)
	accounts := instructions[4].Accounts()
	require.Len(t, accounts, 20)
	assert.Equal(t, receiver, accounts[19].PublicKey)
	// the dex market comes from the deposit reserve when the borrow reserve has none
	assert.Equal(t, f.dex.Key, accounts[13].PublicKey)
	assert.Equal(t, f.dex.Bids, accounts[14].PublicKey)
}

func TestBorrow_PriceVenueMissing(t *testing.T) {
	f := newFixture(t, nil)
	f.sol.DexMarketOption = [4]byte{}
	source := f.tokenAccount(t, f.usdc.CollateralMint, 1)
	req := &BorrowRequest{
		Wallet:         f.wallet,
		Source:         source,
		DepositReserve: f.usdc.Key,
		BorrowReserve:  f.sol.Key,
		Amount:         decimal.NewFromInt(1),
		AmountType:     tokenlending.LiquidityBorrowAmount,
		Obligation:     NewObligation{},
	}

	_, err := f.orchestrator.Borrow(context.Background(), req)
	assert.True(t, errors.Is(err, ErrPriceVenueMissing))

	f.sol.DexMarketOption = [4]byte{1}
	f.sol.DexMarket = newKey(t)
	_, err = f.orchestrator.Borrow(context.Background(), req)
	assert.True(t, errors.Is(err, ErrPriceVenueMissing))
}

func TestBorrow_NegativeAmount(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
		Wallet:         f.wallet,
		Source:         f.tokenAccount(t, f.usdc.CollateralMint, 1),
		DepositReserve: f.usdc.Key,
		BorrowReserve:  f.sol.Key,
		Amount:         decimal.NewFromInt(-1),
		AmountType:     tokenlending.LiquidityBorrowAmount,
	})
	assert.Equal(t, ErrNegativeAmount, err)
}

func TestRepay_ApprovesFullReceipt(t *testing.T) {
	f := newFixture(t, nil)
	f.own(t, f.wallet, f.usdc.CollateralMint)
	obligation := &tokenlending.KeyedObligation{
		Key:              newKey(t),
		ObligationLayout: tokenlending.ObligationLayout{TokenMint: newKey(t)},
	}
	f.lookup.obligations[obligation.Key] = obligation
	source := f.tokenAccount(t, f.sol.LiquidityMint, 10_000)
	receipt := &spltoken.KeyedUser{Key: newKey(t), UserLayout: spltoken.UserLayout{Mint: obligation.TokenMint, Owner: f.wallet, Amount: 500}}

	tx, err := f.orchestrator.Repay(context.Background(), &RepayRequest{
		Wallet:          f.wallet,
		Source:          source,
		Amount:          120,
		Obligation:      obligation.Key,
		Receipt:         receipt,
		RepayReserve:    f.sol.Key,
		WithdrawReserve: f.usdc.Key,
	})
	require.NoError(t, err)

	instructions := tx.Instructions()
	assert.Equal(t, []step{stepApprove, stepApprove, stepAccrue, stepRepay}, steps(t, instructions))
	assert.Equal(t, uint64(120), approveAmount(t, instructions[0]))
	assert.Equal(t, uint64(500), approveAmount(t, instructions[1]))
	assert.Equal(t, receipt.Key, instructions[1].Accounts()[0].PublicKey)
	delegate := instructions[0].Accounts()[1].PublicKey
	assert.Equal(t, delegate, instructions[1].Accounts()[1].PublicKey)
	assert.Len(t, tx.Signers(), 1)

	repay := instructions[3].Accounts()
	assert.Equal(t, obligation.TokenMint, repay[7].PublicKey)
	assert.Equal(t, receipt.Key, repay[8].PublicKey)
	assert.Equal(t, delegate, repay[11].PublicKey)
	assert.Equal(t, []step{stepRevoke, stepRevoke}, steps(t, tx.Cleanup()))
}

func TestRepay_WrapsExactAmount(t *testing.T) {
	f := newFixture(t, nil)
	f.own(t, f.wallet, f.usdc.CollateralMint)
	obligation := &tokenlending.KeyedObligation{Key: newKey(t)}
	f.lookup.obligations[obligation.Key] = obligation

	tx, err := f.orchestrator.Repay(context.Background(), &RepayRequest{
		Wallet:          f.wallet,
		Source:          spltoken.WalletNative(f.wallet, 9_000_000_000),
		Amount:          700,
		Obligation:      obligation.Key,
		Receipt:         f.tokenAccount(t, newKey(t), 3),
		RepayReserve:    f.sol.Key,
		WithdrawReserve: f.usdc.Key,
	})
	require.NoError(t, err)

	instructions := tx.Instructions()
	data, err := instructions[0].Data()
	require.NoError(t, err)
	assert.Equal(t, 700+tokenAccountRent, binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, []step{stepRevoke, stepRevoke, stepClose}, steps(t, tx.Cleanup()))
}

func createdLamports(t *testing.T, instruction solana.Instruction) uint64 {
	data, err := instruction.Data()
	require.NoError(t, err)
	return binary.LittleEndian.Uint64(data[4:12])
}

func TestBorrow_WrapsNativeSource(t *testing.T) {
	f := newFixture(t, nil)
	f.own(t, f.wallet, f.usdc.LiquidityMint)
	obligation := &tokenlending.KeyedObligation{Key: newKey(t)}
	f.lookup.obligations[obligation.Key] = obligation
	borrow := func(balance uint64, amount decimal.Decimal, amountType tokenlending.BorrowAmountType) *batch.Transaction {
		plan, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
			Wallet:         f.wallet,
			Source:         spltoken.WalletNative(f.wallet, balance),
			DepositReserve: f.sol.Key,
			BorrowReserve:  f.usdc.Key,
			Amount:         amount,
			AmountType:     amountType,
			Obligation:     ExistingObligation{Obligation: obligation.Key, Receipt: newKey(t)},
		})
		require.NoError(t, err)
		ready, ok := plan.(*BorrowReady)
		require.True(t, ok)
		return ready.Transaction
	}
	wrapSteps := []step{stepCreateAccount, stepInitUser, stepApprove, stepCreateAccount, stepAccrue, stepBorrow}

	cases := []struct {
		name       string
		balance    uint64
		amount     decimal.Decimal
		amountType tokenlending.BorrowAmountType
		funded     uint64
		approved   uint64
	}{
		{"liquidity spends balance less rent", 5_000_000_000, decimal.NewFromInt(10), tokenlending.LiquidityBorrowAmount,
			5_000_000_000, 5_000_000_000 - tokenAccountRent},
		{"liquidity balance below rent", 100, decimal.NewFromInt(10), tokenlending.LiquidityBorrowAmount,
			tokenAccountRent, 0},
		{"collateral spends amount", 5_000_000_000, decimal.NewFromInt(2), tokenlending.CollateralDepositAmount,
			2_000_000_000 + tokenAccountRent, 2_000_000_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tx := borrow(c.balance, c.amount, c.amountType)
			instructions := tx.Instructions()
			require.Equal(t, wrapSteps, steps(t, instructions))
			assert.Equal(t, c.funded, createdLamports(t, instructions[0]))
			assert.Equal(t, c.approved, approveAmount(t, instructions[2]))
			assert.Equal(t, uint64(0), createdLamports(t, instructions[3]))

			wrapped := instructions[0].Accounts()[1].PublicKey
			assert.Equal(t, wrapped, instructions[5].Accounts()[0].PublicKey)
			assert.Equal(t, []step{stepRevoke, stepClose}, steps(t, tx.Cleanup()))
			assert.Equal(t, wrapped, tx.Cleanup()[0].Accounts()[0].PublicKey)
			assert.Equal(t, wrapped, tx.Cleanup()[1].Accounts()[0].PublicKey)
		})
	}
}

func TestNilPointerChoices(t *testing.T) {
	var host *HostFeeAddress
	f := newFixture(t, host)
	assert.Equal(t, NoHostFee{}, f.orchestrator.hostFee)

	var existing *ExistingObligation
	plan, err := f.orchestrator.Borrow(context.Background(), &BorrowRequest{
		Wallet:         f.wallet,
		Source:         f.tokenAccount(t, f.usdc.CollateralMint, 10),
		DepositReserve: f.usdc.Key,
		BorrowReserve:  f.sol.Key,
		Amount:         decimal.NewFromInt(1),
		AmountType:     tokenlending.LiquidityBorrowAmount,
		Obligation:     existing,
	})
	require.NoError(t, err)
	_, ok := plan.(*BorrowRequiresSetup)
	assert.True(t, ok)
}

func TestNativeSourceNeedsNativeReserve(t *testing.T) {
	f := newFixture(t, nil)
	obligation := &tokenlending.KeyedObligation{Key: newKey(t)}
	f.lookup.obligations[obligation.Key] = obligation
	native := spltoken.WalletNative(f.wallet, 9_000_000_000)

	_, err := f.orchestrator.Repay(context.Background(), &RepayRequest{
		Wallet:          f.wallet,
		Source:          native,
		Amount:          700,
		Obligation:      obligation.Key,
		Receipt:         f.tokenAccount(t, newKey(t), 3),
		RepayReserve:    f.usdc.Key,
		WithdrawReserve: f.sol.Key,
	})
	assert.True(t, errors.Is(err, ErrSourceMintMismatch))

	_, err = f.orchestrator.Deposit(context.Background(), &DepositRequest{
		Wallet:  f.wallet,
		Source:  native,
		Amount:  1,
		Reserve: f.usdc.Key,
	})
	assert.True(t, errors.Is(err, ErrSourceMintMismatch))
}
