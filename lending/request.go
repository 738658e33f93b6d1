package lending

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/tokenlending"
)

// DepositRequest moves Amount smallest units of liquidity from Source into Reserve.
type DepositRequest struct {
	Wallet  solana.PublicKey
	Source  *spltoken.KeyedUser
	Amount  uint64
	Reserve solana.PublicKey
}

// WithdrawRequest redeems Amount collateral tokens held in Source from Reserve.
type WithdrawRequest struct {
	Wallet  solana.PublicKey
	Source  *spltoken.KeyedUser
	Amount  uint64
	Reserve solana.PublicKey
}

// ObligationChoice is either NewObligation or ExistingObligation.
type ObligationChoice interface {
	isObligationChoice()
}

// NewObligation asks the borrow to create and initialize a fresh obligation first.
type NewObligation struct{}

// ExistingObligation borrows more against an obligation the wallet already holds. Receipt is
// the wallet's obligation token account.
type ExistingObligation struct {
	Obligation solana.PublicKey
	Receipt    solana.PublicKey
}

func (NewObligation) isObligationChoice()      {}
func (ExistingObligation) isObligationChoice() {}

// HostFee is either NoHostFee or HostFeeAddress.
type HostFee interface {
	isHostFee()
}

type NoHostFee struct{}

// HostFeeAddress names the owner whose collateral account receives the host share of the fee.
type HostFeeAddress struct {
	Owner solana.PublicKey
}

func (NoHostFee) isHostFee()      {}
func (HostFeeAddress) isHostFee() {}

// BorrowRequest borrows from BorrowReserve against collateral of DepositReserve held in Source.
// Amount is a human amount, read as liquidity to receive or collateral to deposit per AmountType.
type BorrowRequest struct {
	Wallet         solana.PublicKey
	Source         *spltoken.KeyedUser
	DepositReserve solana.PublicKey
	BorrowReserve  solana.PublicKey
	Amount         decimal.Decimal
	AmountType     tokenlending.BorrowAmountType
	Obligation     ObligationChoice
}

// RepayRequest pays Amount smallest units from Source back to RepayReserve and releases
// collateral of WithdrawReserve. Receipt is the obligation token account being burned.
type RepayRequest struct {
	Wallet          solana.PublicKey
	Source          *spltoken.KeyedUser
	Amount          uint64
	Obligation      solana.PublicKey
	Receipt         *spltoken.KeyedUser
	RepayReserve    solana.PublicKey
	WithdrawReserve solana.PublicKey
}
