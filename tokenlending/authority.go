package tokenlending

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	ErrDerivationExhausted = errors.New("no viable bump seed for lending market authority")
)

// DeriveAuthority returns the program derived address that owns a market's reserve supplies.
func DeriveAuthority(market solana.PublicKey, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	authority, bump, err := solana.FindProgramAddress([][]byte{market.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, errors.Wrapf(ErrDerivationExhausted, "market(%s): %s", market, err)
	}
	return authority, bump, nil
}
