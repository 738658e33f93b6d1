package batch

import (
	"github.com/gagliardetto/solana-go"
)

// Transaction is the ordered result of a Builder. It is never mutated after Build.
type Transaction struct {
	instructions []solana.Instruction
	cleanup      []solana.Instruction
	signers      []solana.PrivateKey
}

// Instructions returns the regular instructions in emission order.
func (tx *Transaction) Instructions() []solana.Instruction {
	out := make([]solana.Instruction, len(tx.instructions))
	copy(out, tx.instructions)
	return out
}

// Cleanup returns the cleanup instructions in execution order.
func (tx *Transaction) Cleanup() []solana.Instruction {
	out := make([]solana.Instruction, len(tx.cleanup))
	copy(out, tx.cleanup)
	return out
}

// All concatenates instructions and cleanup, which is what gets submitted.
func (tx *Transaction) All() []solana.Instruction {
	out := make([]solana.Instruction, 0, len(tx.instructions)+len(tx.cleanup))
	out = append(out, tx.instructions...)
	out = append(out, tx.cleanup...)
	return out
}

// Signers returns the keys, besides the fee payer, that must sign.
func (tx *Transaction) Signers() []solana.PrivateKey {
	out := make([]solana.PrivateKey, len(tx.signers))
	copy(out, tx.signers)
	return out
}

func (tx *Transaction) Signer(pubkey solana.PublicKey) *solana.PrivateKey {
	for i := range tx.signers {
		if tx.signers[i].PublicKey() == pubkey {
			return &tx.signers[i]
		}
	}
	return nil
}

func (tx *Transaction) IsEmpty() bool {
	return len(tx.instructions) == 0 && len(tx.cleanup) == 0
}
