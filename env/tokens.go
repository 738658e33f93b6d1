package env

import (
	"encoding/json"
	"math/big"
	"os"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Token struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Decimal uint8  `json:"decimal"`
}

// AmountUi converts an amount in smallest units to the human amount.
func (token *Token) AmountUi(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(token.Decimal))
}

func (e *Env) loadTokens() error {
	if e.tokensFile == "" {
		return nil
	}
	infoJson, err := os.ReadFile(e.tokensFile)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.WithField("file", e.tokensFile).Warn("tokens file is missing")
			return nil
		}
		return errors.Wrapf(err, "read tokens %s", e.tokensFile)
	}
	tokens := make(map[solana.PublicKey]*Token)
	if err := json.Unmarshal(infoJson, &tokens); err != nil {
		return errors.Wrapf(err, "parse tokens %s", e.tokensFile)
	}
	e.tokens = tokens
	e.logger.WithField("count", len(tokens)).Info("tokens loaded")
	return nil
}

// Token returns the registry entry of mint, or nil when it is unknown.
func (e *Env) Token(mint solana.PublicKey) *Token {
	if item, ok := e.tokens[mint]; ok {
		return item
	}
	return nil
}

// Symbol names mint for humans, falling back to its address.
func (e *Env) Symbol(mint solana.PublicKey) string {
	if token := e.Token(mint); token != nil && token.Symbol != "" {
		return token.Symbol
	}
	return mint.String()
}

type KeyedToken struct {
	Mint solana.PublicKey `json:"mint"`
	*Token
}

func (e *Env) Tokens() []*KeyedToken {
	tokens := make([]*KeyedToken, 0, len(e.tokens))
	for mint, token := range e.tokens {
		tokens = append(tokens, &KeyedToken{Mint: mint, Token: token})
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Symbol < tokens[j].Symbol
	})
	return tokens
}
