package backend

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

const (
	MultipleAccountSliceSize = 100
)

type Account struct {
	PubKey  solana.PublicKey
	Account *rpc.Account
	Height  uint64
}

// Data returns the raw account data, or nil when the account does not exist.
func (account *Account) Data() []byte {
	if account == nil || account.Account == nil {
		return nil
	}
	return account.Account.Data.GetBinary()
}

func (account *Account) Exists() bool {
	return account != nil && account.Account != nil
}

func (backend *Backend) Accounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*Account, error) {
	accounts := make([]*Account, 0, len(pubkeys))
	index, end := 0, 0
	for index < len(pubkeys) {
		if end = index + MultipleAccountSliceSize; end > len(pubkeys) {
			end = len(pubkeys)
		}
		getMultipleAccountsRsp, err := backend.rpcClient.GetMultipleAccountsWithOpts(ctx, pubkeys[index:end],
			&rpc.GetMultipleAccountsOpts{Encoding: solana.EncodingBase64})
		if err != nil {
			return nil, errors.Wrap(err, "get multiple accounts")
		}
		if len(getMultipleAccountsRsp.Value) != end-index {
			return nil, errors.New("get accounts err, some account is missing")
		}
		for i, account := range getMultipleAccountsRsp.Value {
			accounts = append(accounts, &Account{
				PubKey:  pubkeys[index+i],
				Height:  getMultipleAccountsRsp.Context.Slot,
				Account: account,
			})
		}
		index = end
	}
	return accounts, nil
}

// Account fetches one account. A missing account is not an error: the returned Account
// reports Exists() == false.
func (backend *Backend) Account(ctx context.Context, pubkey solana.PublicKey) (*Account, error) {
	accounts, err := backend.Accounts(ctx, []solana.PublicKey{pubkey})
	if err != nil {
		return nil, err
	}
	return accounts[0], nil
}

func (backend *Backend) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := backend.rpcClient.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentFinalized)
	if err != nil {
		return 0, errors.Wrapf(err, "get minimum balance for rent exemption, size: %d", size)
	}
	return lamports, nil
}

func (backend *Backend) HasAccount(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	account, err := backend.Account(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return account.Exists(), nil
}

// Balance returns the lamports held by a system account.
func (backend *Backend) Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	account, err := backend.Account(ctx, pubkey)
	if err != nil {
		return 0, err
	}
	if !account.Exists() {
		return 0, nil
	}
	return account.Account.Lamports, nil
}
