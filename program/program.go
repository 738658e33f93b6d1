package program

import "github.com/gagliardetto/solana-go"

var (
	Token           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedToken = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	System          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	SysClock        = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	SysRent         = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	TokenLending    = solana.MustPublicKeyFromBase58("LendZqTs7gn5CTSJU1jWKhKuVpjJGom45nnwPb2AMTi")
	SerumV3         = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

var (
	USDC       = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// Program is the lifecycle shared by every on-chain program wrapper.
type Program interface {
	Start() error
	Stop() error
	Name() string
	Id() solana.PublicKey
}
