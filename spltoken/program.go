package spltoken

import (
	"context"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/program"
)

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
)

type Program struct {
	backend *backend.Backend
	log     *logrus.Entry
	id      solana.PublicKey
}

func NewProgram(be *backend.Backend) *Program {
	p := &Program{
		backend: be,
		log:     logrus.StandardLogger().WithField("program", "spl token"),
		id:      program.Token,
	}
	return p
}

func (p *Program) Name() string {
	return "spl token"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Start() error {
	p.log.Infof("start spl token program: %s......", p.Id())
	return nil
}

func (p *Program) Stop() error {
	p.log.Info("stop spl token program......")
	return nil
}

func (p *Program) RetrieveUser(ctx context.Context, key solana.PublicKey) (*KeyedUser, error) {
	account, err := p.backend.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.parseUser(account)
}

func (p *Program) RetrieveToken(ctx context.Context, key solana.PublicKey) (*KeyedToken, error) {
	account, err := p.backend.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	if !account.Exists() {
		return nil, errors.Errorf("mint(%s) is missing", key)
	}
	if account.Account.Owner != p.id {
		return nil, errors.Errorf("account(%s) is not spl token program account", key)
	}
	token, err := ParseToken(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "mint(%s)", key)
	}
	return &KeyedToken{Key: key, Height: account.Height, TokenLayout: token}, nil
}

// FindAccount looks up the canonical token account of (owner, mint). Only the associated
// address is considered: other accounts the owner may hold for the same mint are not seen.
func (p *Program) FindAccount(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, bool, error) {
	address, err := FindAssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	account, err := p.backend.Account(ctx, address)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	if !account.Exists() {
		return address, false, nil
	}
	user, err := p.parseUser(account)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	if user.Mint != mint || user.Owner != owner {
		return solana.PublicKey{}, false, errors.Errorf("account(%s) belongs to (%s, %s), expected (%s, %s)",
			address, user.Owner, user.Mint, owner, mint)
	}
	return address, true, nil
}

func (p *Program) parseUser(account *backend.Account) (*KeyedUser, error) {
	if !account.Exists() {
		return nil, errors.Errorf("account(%s) is missing", account.PubKey)
	}
	if account.Account.Owner != p.id {
		return nil, errors.Errorf("account(%s) is not spl token program account, expected: %s, actual: %s",
			account.PubKey, p.id, account.Account.Owner)
	}
	user, err := ParseUser(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "spl token account(%s)", account.PubKey)
	}
	return &KeyedUser{Key: account.PubKey, Height: account.Height, UserLayout: user}, nil
}

// InstructionInitUser initializes a token account created by the system program.
func (p *Program) InstructionInitUser(user solana.PublicKey, token solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	return program.NewInstruction(p.id, []byte{byte(CommandInitializeAccount)},
		program.Writable(user, false),
		program.Readonly(token, false),
		program.Readonly(owner, false),
		program.Readonly(program.SysRent, false),
	)
}

// InstructionApprove lets delegate move up to amount out of source.
//
//  0. `[writable]` source
//  1. `[]` delegate
//  2. `[signer]` source owner
func (p *Program) InstructionApprove(source solana.PublicKey, delegate solana.PublicKey, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = byte(CommandApprove)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return program.NewInstruction(p.id, data,
		program.Writable(source, false),
		program.Readonly(delegate, false),
		program.Readonly(owner, true),
	)
}

func (p *Program) InstructionRevoke(source solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	return program.NewInstruction(p.id, []byte{byte(CommandRevoke)},
		program.Writable(source, false),
		program.Readonly(owner, true),
	)
}

// InstructionCloseAccount closes account and sends its lamports to destination.
func (p *Program) InstructionCloseAccount(account solana.PublicKey, destination solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	return program.NewInstruction(p.id, []byte{byte(CommandCloseAccount)},
		program.Writable(account, false),
		program.Writable(destination, false),
		program.Readonly(owner, true),
	)
}

// DecodeCommand returns the token command of instruction, or false when it is not a token instruction.
func DecodeCommand(instruction solana.Instruction) (Command, bool) {
	if instruction.ProgramID() != program.Token {
		return 0, false
	}
	data, err := instruction.Data()
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return Command(data[0]), true
}

// DecodeApproveAmount returns the amount of an approve instruction.
func DecodeApproveAmount(instruction solana.Instruction) (uint64, error) {
	command, ok := DecodeCommand(instruction)
	if !ok || command != CommandApprove {
		return 0, errors.New("is not approve")
	}
	data, _ := instruction.Data()
	if len(data) != 9 {
		return 0, errors.New("data is invalid")
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}
