package backend

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/config"
)

const (
	ConfirmTry      = 30
	ConfirmInterval = time.Millisecond * 500
)

// Backend is the only component that talks to the rpc node.
type Backend struct {
	logger          *logrus.Entry
	rpcClient       *rpc.Client
	wallets         []*Wallet
	player          solana.PublicKey
	confirmTry      int
	confirmInterval time.Duration
}

func NewBackend(node *config.Node) *Backend {
	backend := &Backend{
		logger:          logrus.StandardLogger().WithField("service", "backend"),
		rpcClient:       rpc.New(node.Rpc),
		wallets:         make([]*Wallet, 0),
		confirmTry:      ConfirmTry,
		confirmInterval: ConfirmInterval,
	}
	return backend
}

func (backend *Backend) SetConfirm(try int, interval time.Duration) {
	backend.confirmTry = try
	backend.confirmInterval = interval
}
