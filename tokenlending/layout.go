package tokenlending

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	LendingMarketLayoutSize = 160
	ReserveLayoutSize       = 602
	ObligationLayoutSize    = 265
	// MemoryLayoutSize is the scratch space the borrow instruction uses to walk the order book.
	MemoryLayoutSize = 65548
)

type LendingMarketLayout struct {
	Version        uint8
	BumpSeed       uint8
	QuoteTokenMint solana.PublicKey
	TokenProgramId solana.PublicKey
	Padding        [94]byte
}

type ReserveConfigLayout struct {
	OptimalUtilizationRate uint8
	LoanToValueRatio       uint8
	LiquidationBonus       uint8
	LiquidationThreshold   uint8
	MinBorrowRate          uint8
	OptimalBorrowRate      uint8
	MaxBorrowRate          uint8
	BorrowFeeWad           uint64
	HostFeePercentage      uint8
}

type ReserveLayout struct {
	Version                 uint8
	LastUpdateSlot          uint64
	LendingMarket           solana.PublicKey
	LiquidityMint           solana.PublicKey
	LiquidityMintDecimals   uint8
	LiquiditySupply         solana.PublicKey
	CollateralMint          solana.PublicKey
	CollateralSupply        solana.PublicKey
	CollateralFeesReceiver  solana.PublicKey
	DexMarketOption         [4]byte
	DexMarket               solana.PublicKey
	Config                  ReserveConfigLayout
	CumulativeBorrowRateWad [16]byte
	BorrowedLiquidityWad    [16]byte
	AvailableLiquidity      uint64
	CollateralMintSupply    uint64
	Padding                 [300]byte
}

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// wadToAmount scales a little endian u128 wad down to smallest units, rounding down and
// saturating at the u64 range.
func wadToAmount(value [16]byte) uint64 {
	be := make([]byte, len(value))
	for i, b := range value {
		be[len(value)-1-i] = b
	}
	amount := new(big.Int).Quo(new(big.Int).SetBytes(be), wad)
	if !amount.IsUint64() {
		return math.MaxUint64
	}
	return amount.Uint64()
}

// BorrowedAmount is the liquidity currently lent out, in smallest units.
func (r *ReserveLayout) BorrowedAmount() uint64 {
	return wadToAmount(r.BorrowedLiquidityWad)
}

// HasDexMarket reports whether the reserve is configured with a price venue.
func (r *ReserveLayout) HasDexMarket() bool {
	return r.DexMarketOption[0] == 1 && !r.DexMarket.IsZero()
}

type ObligationLayout struct {
	Version                   uint8
	LastUpdateSlot            uint64
	DepositedCollateralTokens uint64
	CollateralReserve         solana.PublicKey
	CumulativeBorrowRateWad   [16]byte
	BorrowedLiquidityWad      [16]byte
	BorrowReserve             solana.PublicKey
	TokenMint                 solana.PublicKey
	Padding                   [120]byte
}

type KeyedLendingMarket struct {
	Key    solana.PublicKey
	Height uint64
	LendingMarketLayout
}

type KeyedReserve struct {
	Key    solana.PublicKey
	Height uint64
	ReserveLayout
}

type KeyedObligation struct {
	Key    solana.PublicKey
	Height uint64
	ObligationLayout
}

func parse(data []byte, size int, name string, v interface{}) error {
	if len(data) != size {
		return errors.Errorf("%s data size is not valid, expected: %d, actual: %d", name, size, len(data))
	}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
	if err != nil {
		return errors.Wrapf(err, "%s data is not valid", name)
	}
	return nil
}

func ParseLendingMarket(data []byte) (LendingMarketLayout, error) {
	market := LendingMarketLayout{}
	err := parse(data, LendingMarketLayoutSize, "lending market", &market)
	return market, err
}

func ParseReserve(data []byte) (ReserveLayout, error) {
	reserve := ReserveLayout{}
	err := parse(data, ReserveLayoutSize, "reserve", &reserve)
	return reserve, err
}

func ParseObligation(data []byte) (ObligationLayout, error) {
	obligation := ObligationLayout{}
	err := parse(data, ObligationLayoutSize, "obligation", &obligation)
	return obligation, err
}
