package serum

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	MarketLayoutSize = 388
)

type AccountFlagLayout struct {
	IsInitialized  uint8
	IsMarket       uint8
	IsOpenOrders   uint8
	IsRequestQueue uint8
	IsEventQueue   uint8
	IsBids         uint8
	IsAsks         uint8
	_              uint8
}

type MarketLayout struct {
	Data1                  [5]byte
	AccountFlag            AccountFlagLayout
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	BaseToken              solana.PublicKey
	QuoteToken             solana.PublicKey
	BaseVault              solana.PublicKey
	BaseDepositsTotal      uint64
	BaseFeesAccrued        uint64
	QuoteVault             solana.PublicKey
	QuoteDepositsTotal     uint64
	QuoteFeesAccrued       uint64
	QuoteDustThreshold     uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	BaseLotSize            uint64
	QuoteLotSize           uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
	Data2                  [7]byte
}

type KeyedMarket struct {
	Key    solana.PublicKey
	Height uint64
	MarketLayout
}

// Side returns the order book side to price against: asks when buying the base token with
// the quote token, bids otherwise.
func (m *KeyedMarket) Side(asks bool) solana.PublicKey {
	if asks {
		return m.Asks
	}
	return m.Bids
}

func ParseMarket(data []byte) (MarketLayout, error) {
	market := MarketLayout{}
	if len(data) != MarketLayoutSize {
		return market, errors.Errorf("market data size is not valid, expected: %d, actual: %d", MarketLayoutSize, len(data))
	}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &market)
	if err != nil {
		return market, errors.Wrap(err, "market data is not valid")
	}
	if market.AccountFlag.IsInitialized == 0 || market.AccountFlag.IsMarket == 0 {
		return market, errors.New("account is not an initialized market")
	}
	return market, nil
}
