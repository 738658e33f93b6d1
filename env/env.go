package env

import (
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Env holds the static token registry loaded from the tokens file.
type Env struct {
	logger     *logrus.Entry
	tokensFile string
	tokens     map[solana.PublicKey]*Token
}

func NewEnv(tokensFile string) *Env {
	env := &Env{
		logger:     logrus.StandardLogger().WithField("service", "env"),
		tokensFile: tokensFile,
		tokens:     make(map[solana.PublicKey]*Token),
	}
	return env
}

func (e *Env) Start() error {
	e.logger.Info("start env......")
	return e.loadTokens()
}

func (e *Env) Stop() {
	e.logger.Info("stop env......")
}
