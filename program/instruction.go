package program

import "github.com/gagliardetto/solana-go"

// Instruction is a raw instruction whose data has already been packed.
type Instruction struct {
	IsAccounts  []*solana.AccountMeta
	IsData      []byte
	IsProgramID solana.PublicKey
}

func NewInstruction(programID solana.PublicKey, data []byte, accounts ...*solana.AccountMeta) *Instruction {
	return &Instruction{
		IsAccounts:  accounts,
		IsData:      data,
		IsProgramID: programID,
	}
}

func (i *Instruction) Accounts() []*solana.AccountMeta {
	return i.IsAccounts
}

func (i *Instruction) ProgramID() solana.PublicKey {
	return i.IsProgramID
}

func (i *Instruction) Data() ([]byte, error) {
	return i.IsData, nil
}

func Writable(key solana.PublicKey, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: true}
}

func Readonly(key solana.PublicKey, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: false}
}
