package spltoken

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/egaotan/solana-lending/program"
)

var (
	TokenLayoutSize = 165
	MintLayoutSize  = 82
)

// UserLayout is a token account.
type UserLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

// TokenLayout is a mint.
type TokenLayout struct {
	MintAuthorityOption   [4]byte
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              byte
	IsInitialized         uint8
	FreezeAuthorityOption [4]byte
	FreezeAuthority       solana.PublicKey
}

type KeyedUser struct {
	Key    solana.PublicKey
	Height uint64
	UserLayout
}

type KeyedToken struct {
	Key    solana.PublicKey
	Height uint64
	TokenLayout
}

// WalletNative describes the wallet's own SOL balance as if it were a token account. Such an
// account cannot be spent by the token program and must be wrapped first.
func WalletNative(wallet solana.PublicKey, lamports uint64) *KeyedUser {
	return &KeyedUser{
		Key: wallet,
		UserLayout: UserLayout{
			Mint:   program.NativeMint,
			Owner:  wallet,
			Amount: lamports,
		},
	}
}

// IsWalletNative reports whether user is the wallet's SOL balance rather than a token account.
func IsWalletNative(user *KeyedUser) bool {
	return user.Key == user.Owner && user.Mint == program.NativeMint
}

func ParseUser(data []byte) (UserLayout, error) {
	user := UserLayout{}
	if len(data) != TokenLayoutSize {
		return user, errors.Errorf("token account data size is not valid, expected: %d, actual: %d", TokenLayoutSize, len(data))
	}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &user)
	if err != nil {
		return user, errors.Wrap(err, "token account data is not valid")
	}
	return user, nil
}

func ParseToken(data []byte) (TokenLayout, error) {
	token := TokenLayout{}
	if len(data) != MintLayoutSize {
		return token, errors.Errorf("mint data size is not valid, expected: %d, actual: %d", MintLayoutSize, len(data))
	}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &token)
	if err != nil {
		return token, errors.Wrap(err, "mint data is not valid")
	}
	return token, nil
}
