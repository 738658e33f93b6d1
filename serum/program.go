package serum

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/program"
)

var (
	ErrMarketMissing = errors.New("dex market is missing")
)

// Program reads dex markets. The lending program prices collateral against their order books.
type Program struct {
	backend *backend.Backend
	log     *logrus.Entry
	id      solana.PublicKey
}

func NewProgram(id solana.PublicKey, be *backend.Backend) *Program {
	if id.IsZero() {
		id = program.SerumV3
	}
	p := &Program{
		backend: be,
		log:     logrus.StandardLogger().WithField("program", "serum"),
		id:      id,
	}
	return p
}

func (p *Program) Name() string {
	return "serum"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Start() error {
	p.log.Infof("start serum program: %s......", p.Id())
	return nil
}

func (p *Program) Stop() error {
	p.log.Info("stop serum program......")
	return nil
}

func (p *Program) RetrieveMarket(ctx context.Context, key solana.PublicKey) (*KeyedMarket, error) {
	account, err := p.backend.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	if !account.Exists() {
		return nil, errors.Wrapf(ErrMarketMissing, "market(%s)", key)
	}
	if account.Account.Owner != p.id {
		return nil, errors.Errorf("account(%s) is not %s program account, expected: %s, actual: %s",
			key, p.Name(), p.id, account.Account.Owner)
	}
	market, err := ParseMarket(account.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "market(%s)", key)
	}
	return &KeyedMarket{Key: key, Height: account.Height, MarketLayout: market}, nil
}
