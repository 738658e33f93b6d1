// Package provision appends the instructions that create, wrap and delegate the auxiliary
// accounts a lending operation needs.
//
// A wallet has at most one canonical token account per mint: its associated token account.
// A second account holding the same mint is never discovered and is treated as absent.
package provision

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/program"
	"github.com/egaotan/solana-lending/rent"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/system"
)

type AccountFinder interface {
	FindAccount(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, bool, error)
}

type Provisioner struct {
	log            *logrus.Entry
	finder         AccountFinder
	rent           *rent.Calculator
	system         *system.Program
	token          *spltoken.Program
	lendingProgram solana.PublicKey
}

func NewProvisioner(finder AccountFinder, calculator *rent.Calculator, token *spltoken.Program, lendingProgram solana.PublicKey) *Provisioner {
	return &Provisioner{
		log:            logrus.StandardLogger().WithField("service", "provision"),
		finder:         finder,
		rent:           calculator,
		system:         system.NewProgram(),
		token:          token,
		lendingProgram: lendingProgram,
	}
}

// FindOrCreateAssociatedAccount returns the canonical token account of (owner, mint), adding
// its creation to b when it does not exist yet. Asking twice within one builder yields the same
// address and a single create.
func (p *Provisioner) FindOrCreateAssociatedAccount(ctx context.Context, b *batch.Builder, payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	if account, ok := b.Recall(owner, mint); ok {
		return account, nil
	}
	account, found, err := p.finder.FindAccount(ctx, owner, mint)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "find token account of (%s, %s)", owner, mint)
	}
	if !found {
		instruction, address, err := p.token.InstructionCreateAssociated(payer, owner, mint)
		if err != nil {
			return solana.PublicKey{}, err
		}
		b.Add(instruction)
		account = address
		p.log.WithFields(logrus.Fields{"owner": owner.String(), "mint": mint.String(), "account": account.String()}).
			Debug("create associated token account")
	}
	b.Remember(owner, mint, account)
	return account, nil
}

func (p *Provisioner) createAccount(b *batch.Builder, payer solana.PublicKey, shape rent.Shape, lamports uint64, owner solana.PublicKey) (solana.PrivateKey, error) {
	account, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, errors.Wrapf(err, "generate %s key", shape)
	}
	b.Add(p.system.InstructionCreateAccount(payer, account.PublicKey(), lamports, shape.Size(), owner))
	b.Sign(account)
	return account, nil
}

func (p *Provisioner) createRentExempt(ctx context.Context, b *batch.Builder, payer solana.PublicKey, shape rent.Shape, owner solana.PublicKey) (solana.PrivateKey, error) {
	lamports, err := p.rent.MinimumBalance(ctx, shape)
	if err != nil {
		return nil, err
	}
	return p.createAccount(b, payer, shape, lamports, owner)
}

// CreateUninitializedAccount creates a rent exempt token account the caller must initialize.
func (p *Provisioner) CreateUninitializedAccount(ctx context.Context, b *batch.Builder, payer solana.PublicKey) (solana.PrivateKey, error) {
	return p.createRentExempt(ctx, b, payer, rent.TokenAccount, p.token.Id())
}

func (p *Provisioner) CreateUninitializedMint(ctx context.Context, b *batch.Builder, payer solana.PublicKey) (solana.PrivateKey, error) {
	return p.createRentExempt(ctx, b, payer, rent.Mint, p.token.Id())
}

func (p *Provisioner) CreateUninitializedObligation(ctx context.Context, b *batch.Builder, payer solana.PublicKey) (solana.PrivateKey, error) {
	return p.createRentExempt(ctx, b, payer, rent.Obligation, p.lendingProgram)
}

// CreateTemporaryMemoryAccount creates scratch space for a single borrow. It holds no lamports
// and is never reused.
func (p *Provisioner) CreateTemporaryMemoryAccount(b *batch.Builder, payer solana.PublicKey) (solana.PrivateKey, error) {
	return p.createAccount(b, payer, rent.Memory, 0, p.lendingProgram)
}

// EnsureWrappedAccount returns a token account the token program can spend from. The wallet's
// SOL balance is moved into a temporary native token account funded with requiredLamports,
// closed back to owner after the action.
func (p *Provisioner) EnsureWrappedAccount(ctx context.Context, b *batch.Builder, source *spltoken.KeyedUser, owner solana.PublicKey, requiredLamports uint64) (solana.PublicKey, error) {
	if !spltoken.IsWalletNative(source) {
		return source.Key, nil
	}
	account, err := p.createAccount(b, owner, rent.TokenAccount, requiredLamports, p.token.Id())
	if err != nil {
		return solana.PublicKey{}, err
	}
	b.Add(p.token.InstructionInitUser(account.PublicKey(), program.NativeMint, owner))
	b.Defer(p.token.InstructionCloseAccount(account.PublicKey(), owner, owner))
	p.log.WithFields(logrus.Fields{"account": account.PublicKey().String(), "lamports": requiredLamports}).
		Debug("wrap native balance")
	return account.PublicKey(), nil
}

// Approve lets a transfer authority move amount out of source and queues the matching revoke.
// A nil delegate generates a new authority; otherwise delegate is reused.
func (p *Provisioner) Approve(b *batch.Builder, source solana.PublicKey, owner solana.PublicKey, amount uint64, delegate solana.PrivateKey) (solana.PrivateKey, error) {
	if delegate == nil {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate transfer authority")
		}
		delegate = key
		b.Sign(delegate)
	}
	b.Add(p.token.InstructionApprove(source, delegate.PublicKey(), owner, amount))
	b.Defer(p.token.InstructionRevoke(source, owner))
	return delegate, nil
}
