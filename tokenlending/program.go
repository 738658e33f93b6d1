package tokenlending

import (
	"context"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/program"
)

var (
	ErrAccountMissing = errors.New("lending account is missing")
)

type Command byte

const (
	CommandInitLendingMarket Command = iota
	CommandInitReserve
	CommandInitObligation
	CommandDepositReserveLiquidity
	CommandWithdrawReserveLiquidity
	CommandBorrowReserveLiquidity
	CommandRepayReserveLiquidity
	CommandLiquidateObligation
	CommandAccrueReserveInterest
)

type BorrowAmountType uint8

const (
	LiquidityBorrowAmount BorrowAmountType = iota
	CollateralDepositAmount
)

func (t BorrowAmountType) String() string {
	switch t {
	case LiquidityBorrowAmount:
		return "liquidity"
	case CollateralDepositAmount:
		return "collateral"
	default:
		return "unknown"
	}
}

type Program struct {
	backend *backend.Backend
	log     *logrus.Entry
	id      solana.PublicKey
}

func NewProgram(id solana.PublicKey, be *backend.Backend) *Program {
	if id.IsZero() {
		id = program.TokenLending
	}
	p := &Program{
		backend: be,
		log:     logrus.StandardLogger().WithField("program", "token lending"),
		id:      id,
	}
	return p
}

func (p *Program) Name() string {
	return "token lending"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Start() error {
	p.log.Infof("start token lending program: %s......", p.Id())
	return nil
}

func (p *Program) Stop() error {
	p.log.Info("stop token lending program......")
	return nil
}

func (p *Program) retrieve(ctx context.Context, key solana.PublicKey, name string) (*backend.Account, error) {
	account, err := p.backend.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	if !account.Exists() {
		return nil, errors.Wrapf(ErrAccountMissing, "%s(%s)", name, key)
	}
	if account.Account.Owner != p.id {
		return nil, errors.Errorf("account(%s) is not %s program account, expected: %s, actual: %s",
			key, p.Name(), p.id, account.Account.Owner)
	}
	return account, nil
}

func (p *Program) RetrieveLendingMarket(ctx context.Context, key solana.PublicKey) (*KeyedLendingMarket, error) {
	account, err := p.retrieve(ctx, key, "lending market")
	if err != nil {
		return nil, err
	}
	market, err := ParseLendingMarket(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "lending market(%s)", key)
	}
	return &KeyedLendingMarket{Key: key, Height: account.Height, LendingMarketLayout: market}, nil
}

func (p *Program) RetrieveReserve(ctx context.Context, key solana.PublicKey) (*KeyedReserve, error) {
	account, err := p.retrieve(ctx, key, "reserve")
	if err != nil {
		return nil, err
	}
	reserve, err := ParseReserve(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "reserve(%s)", key)
	}
	return &KeyedReserve{Key: key, Height: account.Height, ReserveLayout: reserve}, nil
}

func (p *Program) RetrieveObligation(ctx context.Context, key solana.PublicKey) (*KeyedObligation, error) {
	account, err := p.retrieve(ctx, key, "obligation")
	if err != nil {
		return nil, err
	}
	obligation, err := ParseObligation(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "obligation(%s)", key)
	}
	return &KeyedObligation{Key: key, Height: account.Height, ObligationLayout: obligation}, nil
}

func amountData(command Command, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(command)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

// InstructionAccrueInterest brings the cumulative borrow rate of every reserve up to the current slot.
func (p *Program) InstructionAccrueInterest(reserves ...solana.PublicKey) solana.Instruction {
	accounts := make([]*solana.AccountMeta, 0, len(reserves)+1)
	accounts = append(accounts, program.Readonly(program.SysClock, false))
	for _, reserve := range reserves {
		accounts = append(accounts, program.Writable(reserve, false))
	}
	return program.NewInstruction(p.id, []byte{byte(CommandAccrueReserveInterest)}, accounts...)
}

type InitObligationAccounts struct {
	DepositReserve        solana.PublicKey
	BorrowReserve         solana.PublicKey
	Obligation            solana.PublicKey
	ObligationMint        solana.PublicKey
	ObligationTokenOutput solana.PublicKey
	ObligationTokenOwner  solana.PublicKey
	LendingMarket         solana.PublicKey
	Authority             solana.PublicKey
}

func (p *Program) InstructionInitObligation(accounts *InitObligationAccounts) solana.Instruction {
	return program.NewInstruction(p.id, []byte{byte(CommandInitObligation)},
		program.Readonly(accounts.DepositReserve, false),
		program.Readonly(accounts.BorrowReserve, false),
		program.Writable(accounts.Obligation, false),
		program.Writable(accounts.ObligationMint, false),
		program.Writable(accounts.ObligationTokenOutput, false),
		program.Readonly(accounts.ObligationTokenOwner, false),
		program.Readonly(accounts.LendingMarket, false),
		program.Readonly(accounts.Authority, false),
		program.Readonly(program.SysClock, false),
		program.Readonly(program.SysRent, false),
		program.Readonly(program.Token, false),
	)
}

type DepositAccounts struct {
	Source            solana.PublicKey
	Destination       solana.PublicKey
	Reserve           solana.PublicKey
	LiquiditySupply   solana.PublicKey
	CollateralMint    solana.PublicKey
	LendingMarket     solana.PublicKey
	Authority         solana.PublicKey
	TransferAuthority solana.PublicKey
}

// InstructionDeposit moves liquidity into a reserve and mints collateral to the destination.
func (p *Program) InstructionDeposit(amount uint64, accounts *DepositAccounts) solana.Instruction {
	return program.NewInstruction(p.id, amountData(CommandDepositReserveLiquidity, amount),
		program.Writable(accounts.Source, false),
		program.Writable(accounts.Destination, false),
		program.Writable(accounts.Reserve, false),
		program.Writable(accounts.LiquiditySupply, false),
		program.Writable(accounts.CollateralMint, false),
		program.Readonly(accounts.LendingMarket, false),
		program.Readonly(accounts.Authority, false),
		program.Readonly(accounts.TransferAuthority, true),
		program.Readonly(program.SysClock, false),
		program.Readonly(program.Token, false),
	)
}

type WithdrawAccounts struct {
	Source            solana.PublicKey
	Destination       solana.PublicKey
	Reserve           solana.PublicKey
	CollateralMint    solana.PublicKey
	LiquiditySupply   solana.PublicKey
	LendingMarket     solana.PublicKey
	Authority         solana.PublicKey
	TransferAuthority solana.PublicKey
}

// InstructionWithdraw burns collateral and returns the matching liquidity.
func (p *Program) InstructionWithdraw(amount uint64, accounts *WithdrawAccounts) solana.Instruction {
	return program.NewInstruction(p.id, amountData(CommandWithdrawReserveLiquidity, amount),
		program.Writable(accounts.Source, false),
		program.Writable(accounts.Destination, false),
		program.Writable(accounts.Reserve, false),
		program.Writable(accounts.CollateralMint, false),
		program.Writable(accounts.LiquiditySupply, false),
		program.Readonly(accounts.LendingMarket, false),
		program.Readonly(accounts.Authority, false),
		program.Readonly(accounts.TransferAuthority, true),
		program.Readonly(program.SysClock, false),
		program.Readonly(program.Token, false),
	)
}

type BorrowAccounts struct {
	Source                       solana.PublicKey
	Destination                  solana.PublicKey
	DepositReserve               solana.PublicKey
	DepositCollateralSupply      solana.PublicKey
	DepositCollateralFeeReceiver solana.PublicKey
	BorrowReserve                solana.PublicKey
	BorrowLiquiditySupply        solana.PublicKey
	Obligation                   solana.PublicKey
	ObligationMint               solana.PublicKey
	ObligationTokenOutput        solana.PublicKey
	LendingMarket                solana.PublicKey
	Authority                    solana.PublicKey
	TransferAuthority            solana.PublicKey
	DexMarket                    solana.PublicKey
	DexOrderBookSide             solana.PublicKey
	Memory                       solana.PublicKey
	// HostFeeReceiver is appended last when set.
	HostFeeReceiver solana.PublicKey
}

func (p *Program) InstructionBorrow(amount uint64, amountType BorrowAmountType, accounts *BorrowAccounts) solana.Instruction {
	data := make([]byte, 10)
	data[0] = byte(CommandBorrowReserveLiquidity)
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = byte(amountType)
	metas := []*solana.AccountMeta{
		program.Writable(accounts.Source, false),
		program.Writable(accounts.Destination, false),
		program.Readonly(accounts.DepositReserve, false),
		program.Writable(accounts.DepositCollateralSupply, false),
		program.Writable(accounts.DepositCollateralFeeReceiver, false),
		program.Writable(accounts.BorrowReserve, false),
		program.Writable(accounts.BorrowLiquiditySupply, false),
		program.Writable(accounts.Obligation, false),
		program.Writable(accounts.ObligationMint, false),
		program.Writable(accounts.ObligationTokenOutput, false),
		program.Readonly(accounts.LendingMarket, false),
		program.Readonly(accounts.Authority, false),
		program.Readonly(accounts.TransferAuthority, true),
		program.Readonly(accounts.DexMarket, false),
		program.Readonly(accounts.DexOrderBookSide, false),
		program.Writable(accounts.Memory, false),
		program.Readonly(program.SysClock, false),
		program.Readonly(program.SysRent, false),
		program.Readonly(program.Token, false),
	}
	if !accounts.HostFeeReceiver.IsZero() {
		metas = append(metas, program.Writable(accounts.HostFeeReceiver, false))
	}
	return program.NewInstruction(p.id, data, metas...)
}

type RepayAccounts struct {
	Source                   solana.PublicKey
	Destination              solana.PublicKey
	RepayReserve             solana.PublicKey
	RepayLiquiditySupply     solana.PublicKey
	WithdrawReserve          solana.PublicKey
	WithdrawCollateralSupply solana.PublicKey
	Obligation               solana.PublicKey
	ObligationMint           solana.PublicKey
	ObligationInput          solana.PublicKey
	LendingMarket            solana.PublicKey
	Authority                solana.PublicKey
	TransferAuthority        solana.PublicKey
}

// InstructionRepay pays back liquidity, burns obligation tokens and releases collateral.
func (p *Program) InstructionRepay(amount uint64, accounts *RepayAccounts) solana.Instruction {
	return program.NewInstruction(p.id, amountData(CommandRepayReserveLiquidity, amount),
		program.Writable(accounts.Source, false),
		program.Writable(accounts.Destination, false),
		program.Writable(accounts.RepayReserve, false),
		program.Writable(accounts.RepayLiquiditySupply, false),
		program.Readonly(accounts.WithdrawReserve, false),
		program.Writable(accounts.WithdrawCollateralSupply, false),
		program.Writable(accounts.Obligation, false),
		program.Writable(accounts.ObligationMint, false),
		program.Writable(accounts.ObligationInput, false),
		program.Readonly(accounts.LendingMarket, false),
		program.Readonly(accounts.Authority, false),
		program.Readonly(accounts.TransferAuthority, true),
		program.Readonly(program.SysClock, false),
		program.Readonly(program.Token, false),
	)
}
