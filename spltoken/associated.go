package spltoken

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/egaotan/solana-lending/program"
)

// FindAssociatedAddress returns the canonical token account address of (owner, mint).
func FindAssociatedAddress(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress([][]byte{
		owner.Bytes(),
		program.Token.Bytes(),
		mint.Bytes(),
	}, program.AssociatedToken)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "find associated address of (%s, %s)", owner, mint)
	}
	return address, nil
}

// InstructionCreateAssociated creates the canonical token account of (owner, mint), funded by payer.
//
//  0. `[writable, signer]` payer
//  1. `[writable]` associated account
//  2. `[]` owner
//  3. `[]` mint
//  4. `[]` system program
//  5. `[]` token program
//  6. `[]` rent sysvar
func (p *Program) InstructionCreateAssociated(payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	address, err := FindAssociatedAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	instruction := program.NewInstruction(program.AssociatedToken, []byte{},
		program.Writable(payer, true),
		program.Writable(address, false),
		program.Readonly(owner, false),
		program.Readonly(mint, false),
		program.Readonly(program.System, false),
		program.Readonly(p.id, false),
		program.Readonly(program.SysRent, false),
	)
	return instruction, address, nil
}
