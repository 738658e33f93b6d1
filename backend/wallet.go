package backend

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

type Wallet struct {
	pubkey solana.PublicKey
	prikey solana.PrivateKey
}

func (backend *Backend) ImportWallet(priKey string) (solana.PublicKey, error) {
	pri, err := solana.PrivateKeyFromBase58(priKey)
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "import wallet")
	}
	pub := pri.PublicKey()
	backend.wallets = append(backend.wallets, &Wallet{
		pubkey: pub,
		prikey: pri,
	})
	return pub, nil
}

func (backend *Backend) getWallet(key solana.PublicKey) *solana.PrivateKey {
	for _, wallet := range backend.wallets {
		if wallet.pubkey == key {
			return &wallet.prikey
		}
	}
	return nil
}

// SetPlayer selects the wallet that pays fees and owns the user side of every operation.
func (backend *Backend) SetPlayer(player solana.PublicKey) {
	backend.player = player
}

func (backend *Backend) Player() solana.PublicKey {
	return backend.player
}

// Connected reports whether the player has a key loaded to sign with.
func (backend *Backend) Connected() bool {
	return !backend.player.IsZero() && backend.getWallet(backend.player) != nil
}
