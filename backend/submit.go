package backend

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	"github.com/egaotan/solana-lending/batch"
)

var (
	ErrNoPlayer          = errors.New("no player wallet is configured")
	ErrEmptyBatch        = errors.New("transaction has no instruction")
	ErrNotConfirmed      = errors.New("transaction is not confirmed")
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// Receipt proves a transaction was confirmed on chain.
type Receipt struct {
	Signature solana.Signature
}

func (r *Receipt) String() string {
	return r.Signature.String()
}

// Submit signs tx with the player and every batch signer, sends it as one atomic transaction
// and waits until it is confirmed. Any failure is terminal for tx; nothing is retried.
func (backend *Backend) Submit(ctx context.Context, tx *batch.Transaction) (*Receipt, error) {
	if !backend.Connected() {
		return nil, ErrNoPlayer
	}
	if tx.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	getRecentBlockHashResult, err := backend.rpcClient.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "get recent block hash")
	}

	builder := solana.NewTransactionBuilder()
	for _, i := range tx.All() {
		builder.AddInstruction(i)
	}
	builder.SetRecentBlockHash(getRecentBlockHashResult.Value.Blockhash)
	builder.SetFeePayer(backend.player)
	trx, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build transaction")
	}
	_, err = trx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if signer := tx.Signer(key); signer != nil {
			return signer
		}
		return backend.getWallet(key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}

	signature, err := backend.rpcClient.SendTransactionWithOpts(ctx, trx, false, rpc.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "send transaction")
	}
	backend.logger.WithField("signature", signature.String()).Info("transaction sent")

	if err := backend.confirm(ctx, signature); err != nil {
		backend.logger.WithField("signature", signature.String()).WithError(err).Warn("transaction not confirmed")
		return nil, err
	}
	backend.logger.WithField("signature", signature.String()).Info("transaction confirmed")
	return &Receipt{Signature: signature}, nil
}

func (backend *Backend) confirm(ctx context.Context, signature solana.Signature) error {
	for counter := 0; counter < backend.confirmTry; counter++ {
		out, err := backend.rpcClient.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err == nil && out != nil {
			if out.Meta != nil && out.Meta.Err != nil {
				return errors.Wrapf(ErrTransactionFailed, "%v", out.Meta.Err)
			}
			return nil
		}
		select {
		case <-time.After(backend.confirmInterval):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for confirmation")
		}
	}
	return errors.Wrapf(ErrNotConfirmed, "signature: %s", signature)
}
