package lending

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrWalletNotConnected = errors.New("wallet is not connected")
	ErrPriceVenueMissing  = errors.New("price venue of the reserve is missing")
	ErrMarketMissing      = errors.New("lending market is missing")
	ErrNegativeAmount     = errors.New("amount is negative")
	ErrAmountOverflow     = errors.New("amount overflows u64")
	ErrSetupNotConfirmed  = errors.New("setup transaction is not confirmed")
	ErrUnknownAmountType  = errors.New("unknown borrow amount type")
	ErrSourceMintMismatch = errors.New("source does not hold the liquidity of the reserve")
)

type Phase string

const (
	PhaseSetup  Phase = "setup"
	PhaseAction Phase = "action"
)

// PhaseError tells the caller which transaction of an operation failed. A setup failure
// means no funds moved.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s transaction: %s", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func (e *PhaseError) Cause() error {
	return e.Err
}
