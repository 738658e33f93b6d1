package tokenlending

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-lending/program"
)

func newKey(t *testing.T) solana.PublicKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func encode(t *testing.T, v interface{}) []byte {
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, v))
	return buf.Bytes()
}

func decodeCommand(t *testing.T, instruction solana.Instruction) (Command, bool) {
	if instruction.ProgramID() != program.TokenLending {
		return 0, false
	}
	data, err := instruction.Data()
	require.NoError(t, err)
	require.NotEmpty(t, data)
	return Command(data[0]), true
}

func TestLayoutSizes(t *testing.T) {
	assert.Len(t, encode(t, &LendingMarketLayout{}), LendingMarketLayoutSize)
	assert.Len(t, encode(t, &ReserveLayout{}), ReserveLayoutSize)
	assert.Len(t, encode(t, &ObligationLayout{}), ObligationLayoutSize)
}

func TestParseReserve(t *testing.T) {
	market, mint, dex := newKey(t), newKey(t), newKey(t)
	layout := &ReserveLayout{
		Version:               1,
		LendingMarket:         market,
		LiquidityMint:         mint,
		LiquidityMintDecimals: 6,
		DexMarketOption:       [4]byte{1},
		DexMarket:             dex,
		AvailableLiquidity:    1000,
	}
	reserve, err := ParseReserve(encode(t, layout))
	require.NoError(t, err)
	assert.Equal(t, market, reserve.LendingMarket)
	assert.Equal(t, mint, reserve.LiquidityMint)
	assert.Equal(t, uint8(6), reserve.LiquidityMintDecimals)
	assert.Equal(t, uint64(1000), reserve.AvailableLiquidity)
	assert.True(t, reserve.HasDexMarket())

	layout.DexMarketOption = [4]byte{}
	reserve, err = ParseReserve(encode(t, layout))
	require.NoError(t, err)
	assert.False(t, reserve.HasDexMarket())

	_, err = ParseReserve(make([]byte, 12))
	assert.Error(t, err)
}

func TestParseLendingMarketAndObligation(t *testing.T) {
	quote := newKey(t)
	market, err := ParseLendingMarket(encode(t, &LendingMarketLayout{Version: 1, QuoteTokenMint: quote}))
	require.NoError(t, err)
	assert.Equal(t, quote, market.QuoteTokenMint)

	tokenMint := newKey(t)
	obligation, err := ParseObligation(encode(t, &ObligationLayout{DepositedCollateralTokens: 42, TokenMint: tokenMint}))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), obligation.DepositedCollateralTokens)
	assert.Equal(t, tokenMint, obligation.TokenMint)
}

func TestDeriveAuthority(t *testing.T) {
	market := newKey(t)
	first, bump, err := DeriveAuthority(market, program.TokenLending)
	require.NoError(t, err)
	second, bump2, err := DeriveAuthority(market, program.TokenLending)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, bump, bump2)

	other, _, err := DeriveAuthority(newKey(t), program.TokenLending)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestInstructionAccrueInterest(t *testing.T) {
	p := NewProgram(solana.PublicKey{}, nil)
	a, b := newKey(t), newKey(t)
	instruction := p.InstructionAccrueInterest(a, b)

	data, err := instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(CommandAccrueReserveInterest)}, data)
	accounts := instruction.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, program.SysClock, accounts[0].PublicKey)
	assert.Equal(t, a, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, b, accounts[2].PublicKey)

	command, ok := decodeCommand(t, instruction)
	assert.True(t, ok)
	assert.Equal(t, CommandAccrueReserveInterest, command)
}

func TestInstructionDeposit(t *testing.T) {
	p := NewProgram(solana.PublicKey{}, nil)
	accounts := &DepositAccounts{
		Source:            newKey(t),
		Destination:       newKey(t),
		Reserve:           newKey(t),
		LiquiditySupply:   newKey(t),
		CollateralMint:    newKey(t),
		LendingMarket:     newKey(t),
		Authority:         newKey(t),
		TransferAuthority: newKey(t),
	}
	instruction := p.InstructionDeposit(12_500_000, accounts)

	assert.Equal(t, program.TokenLending, instruction.ProgramID())
	data, err := instruction.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	amount := binary.LittleEndian.Uint64(data[1:9])
	assert.Equal(t, uint64(12_500_000), amount)
	metas := instruction.Accounts()
	require.Len(t, metas, 10)
	assert.Equal(t, accounts.Source, metas[0].PublicKey)
	assert.Equal(t, accounts.TransferAuthority, metas[7].PublicKey)
	assert.True(t, metas[7].IsSigner)
	assert.Equal(t, program.Token, metas[9].PublicKey)
}

func TestInstructionBorrow(t *testing.T) {
	p := NewProgram(solana.PublicKey{}, nil)
	accounts := &BorrowAccounts{
		Source:            newKey(t),
		Destination:       newKey(t),
		Obligation:        newKey(t),
		TransferAuthority: newKey(t),
		DexOrderBookSide:  newKey(t),
		Memory:            newKey(t),
	}
	instruction := p.InstructionBorrow(100_000_000_000, CollateralDepositAmount, accounts)

	data, err := instruction.Data()
	require.NoError(t, err)
	require.Len(t, data, 10)
	assert.Equal(t, byte(CommandBorrowReserveLiquidity), data[0])
	assert.Equal(t, uint64(100_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, byte(CollateralDepositAmount), data[9])
	metas := instruction.Accounts()
	require.Len(t, metas, 19)
	assert.Equal(t, accounts.Obligation, metas[7].PublicKey)
	assert.Equal(t, accounts.Memory, metas[15].PublicKey)
	assert.True(t, metas[15].IsWritable)

	accounts.HostFeeReceiver = newKey(t)
	metas = p.InstructionBorrow(1, LiquidityBorrowAmount, accounts).Accounts()
	require.Len(t, metas, 20)
	assert.Equal(t, accounts.HostFeeReceiver, metas[19].PublicKey)
}

func TestInstructionRepayAndInitObligation(t *testing.T) {
	p := NewProgram(solana.PublicKey{}, nil)
	repay := p.InstructionRepay(7, &RepayAccounts{ObligationInput: newKey(t)})
	command, ok := decodeCommand(t, repay)
	assert.True(t, ok)
	assert.Equal(t, CommandRepayReserveLiquidity, command)
	assert.Len(t, repay.Accounts(), 14)

	init := p.InstructionInitObligation(&InitObligationAccounts{Obligation: newKey(t)})
	command, ok = decodeCommand(t, init)
	assert.True(t, ok)
	assert.Equal(t, CommandInitObligation, command)
	assert.Len(t, init.Accounts(), 11)

	_, ok = decodeCommand(t, program.NewInstruction(program.Token, []byte{4}))
	assert.False(t, ok)
}

func wadBytes(t *testing.T, value *big.Int) [16]byte {
	var out [16]byte
	be := value.Bytes()
	require.LessOrEqual(t, len(be), 16)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out
}

func TestReserveBorrowedAmount(t *testing.T) {
	reserve := &ReserveLayout{}
	assert.Equal(t, uint64(0), reserve.BorrowedAmount())

	// 250.9 smallest units in wad
	value, ok := new(big.Int).SetString("250900000000000000000", 10)
	require.True(t, ok)
	reserve.BorrowedLiquidityWad = wadBytes(t, value)
	assert.Equal(t, uint64(250), reserve.BorrowedAmount())

	for i := range reserve.BorrowedLiquidityWad {
		reserve.BorrowedLiquidityWad[i] = 0xff
	}
	assert.Equal(t, uint64(math.MaxUint64), reserve.BorrowedAmount())
}
