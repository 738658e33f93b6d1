// Package batch collects the instructions, cleanup instructions and extra signers of one
// atomic transaction.
//
// Cleanup instructions are registered as soon as the resource they release is created and
// are emitted after every regular instruction, in reverse order of registration. A builder
// that is abandoned half way still yields its cleanup on Build.
package batch

import (
	"github.com/badgerodon/collections/stack"
	"github.com/gagliardetto/solana-go"
)

type accountKey struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

type Builder struct {
	instructions []solana.Instruction
	cleanup      *stack.Stack
	signers      []solana.PrivateKey
	accounts     map[accountKey]solana.PublicKey
	built        bool
}

func NewBuilder() *Builder {
	return &Builder{
		instructions: make([]solana.Instruction, 0),
		cleanup:      stack.New(),
		signers:      make([]solana.PrivateKey, 0),
		accounts:     make(map[accountKey]solana.PublicKey),
	}
}

func (b *Builder) Add(instructions ...solana.Instruction) {
	b.instructions = append(b.instructions, instructions...)
}

// Defer registers an instruction that must run after the action.
func (b *Builder) Defer(instruction solana.Instruction) {
	b.cleanup.Push(instruction)
}

// Sign registers keys that must co-sign the transaction. A key registered twice is kept once.
func (b *Builder) Sign(keys ...solana.PrivateKey) {
	for _, key := range keys {
		if b.hasSigner(key.PublicKey()) {
			continue
		}
		b.signers = append(b.signers, key)
	}
}

func (b *Builder) hasSigner(pubkey solana.PublicKey) bool {
	for _, signer := range b.signers {
		if signer.PublicKey() == pubkey {
			return true
		}
	}
	return false
}

// Remember records the token account chosen for (owner, mint) in this batch.
func (b *Builder) Remember(owner, mint, account solana.PublicKey) {
	b.accounts[accountKey{owner: owner, mint: mint}] = account
}

// Recall returns the token account already chosen for (owner, mint) in this batch.
func (b *Builder) Recall(owner, mint solana.PublicKey) (solana.PublicKey, bool) {
	account, ok := b.accounts[accountKey{owner: owner, mint: mint}]
	return account, ok
}

func (b *Builder) Len() int {
	return len(b.instructions)
}

func (b *Builder) CleanupLen() int {
	return b.cleanup.Len()
}

// Build drains the builder into an immutable transaction. Calling Build twice panics.
func (b *Builder) Build() *Transaction {
	if b.built {
		panic("batch: builder already built")
	}
	b.built = true
	tx := &Transaction{
		instructions: make([]solana.Instruction, len(b.instructions)),
		cleanup:      make([]solana.Instruction, 0, b.cleanup.Len()),
		signers:      make([]solana.PrivateKey, len(b.signers)),
	}
	copy(tx.instructions, b.instructions)
	copy(tx.signers, b.signers)
	for b.cleanup.Len() > 0 {
		tx.cleanup = append(tx.cleanup, b.cleanup.Pop().(solana.Instruction))
	}
	return tx
}
