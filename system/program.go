package system

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/program"
)

const (
	CommandCreateAccount uint32 = 0
)

type Program struct {
	log *logrus.Entry
	id  solana.PublicKey
}

func NewProgram() *Program {
	p := &Program{
		log: logrus.StandardLogger().WithField("program", "system"),
		id:  program.System,
	}
	return p
}

func (p *Program) Name() string {
	return "system"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Start() error {
	p.log.Infof("start system program: %s......", p.Id())
	return nil
}

func (p *Program) Stop() error {
	p.log.Info("stop system program......")
	return nil
}

// InstructionCreateAccount funds newKey with lamports and assigns space bytes owned by ownerId.
//
//  0. `[writable, signer]` funding account
//  1. `[writable, signer]` new account
func (p *Program) InstructionCreateAccount(fromKey solana.PublicKey, newKey solana.PublicKey, lamports uint64, space uint64, ownerId solana.PublicKey) solana.Instruction {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:], CommandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], ownerId.Bytes())
	return program.NewInstruction(p.id, data,
		program.Writable(fromKey, true),
		program.Writable(newKey, true),
	)
}
