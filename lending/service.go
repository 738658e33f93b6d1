package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/batch"
	"github.com/egaotan/solana-lending/notify"
)

type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindBorrow   Kind = "borrow"
	KindRepay    Kind = "repay"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Submitter interface {
	Submit(ctx context.Context, tx *batch.Transaction) (*backend.Receipt, error)
}

type Wallet interface {
	Connected() bool
	Player() solana.PublicKey
}

// Record is the outcome of one operation. Phase is the last phase attempted.
type Record struct {
	Id         uuid.UUID
	Kind       Kind
	Phase      Phase
	Wallet     solana.PublicKey
	Signatures []string
	Status     Status
	Err        error
	CreatedAt  time.Time
}

// Recorder must not block beyond enqueueing the record.
type Recorder interface {
	Record(record *Record)
}

type Recorders []Recorder

func (r Recorders) Record(record *Record) {
	for _, recorder := range r {
		recorder.Record(record)
	}
}

type Result struct {
	Id         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Signatures []string  `json:"signatures"`
	Obligation string    `json:"obligation,omitempty"`
	Receipt    string    `json:"receipt,omitempty"`
}

// Service runs an operation end to end: build, submit, notify and record.
type Service struct {
	log          *logrus.Entry
	orchestrator *Orchestrator
	submitter    Submitter
	wallet       Wallet
	notifier     notify.Notifier
	recorder     Recorder
}

func NewService(orchestrator *Orchestrator, submitter Submitter, wallet Wallet, notifier notify.Notifier, recorder Recorder) *Service {
	if recorder == nil {
		recorder = Recorders{}
	}
	return &Service{
		log:          logrus.StandardLogger().WithField("service", "lending service"),
		orchestrator: orchestrator,
		submitter:    submitter,
		wallet:       wallet,
		notifier:     notifier,
		recorder:     recorder,
	}
}

type operation struct {
	service *Service
	record  *Record
	result  *Result
}

var startedMessages = map[Kind]string{
	KindDeposit:  "Depositing funds...",
	KindWithdraw: "Withdrawing funds...",
	KindBorrow:   "Borrowing funds...",
	KindRepay:    "Repaying funds...",
}

func (s *Service) begin(kind Kind) *operation {
	id := uuid.New()
	op := &operation{
		service: s,
		record: &Record{
			Id:        id,
			Kind:      kind,
			Phase:     PhaseAction,
			Wallet:    s.wallet.Player(),
			CreatedAt: time.Now(),
		},
		result: &Result{Id: id, Kind: kind, Signatures: make([]string, 0, 2)},
	}
	s.notifier.Notify(&notify.Notification{Severity: notify.Info, Message: startedMessages[kind]})
	return op
}

// connect fills wallet with the connected player.
func (op *operation) connect(wallet *solana.PublicKey) error {
	if !op.service.wallet.Connected() {
		return ErrWalletNotConnected
	}
	*wallet = op.service.wallet.Player()
	op.record.Wallet = *wallet
	return nil
}

func (op *operation) submit(ctx context.Context, phase Phase, tx *batch.Transaction) (*backend.Receipt, error) {
	op.record.Phase = phase
	receipt, err := op.service.submitter.Submit(ctx, tx)
	if err != nil {
		return nil, &PhaseError{Phase: phase, Err: err}
	}
	op.record.Signatures = append(op.record.Signatures, receipt.String())
	op.result.Signatures = append(op.result.Signatures, receipt.String())
	return receipt, nil
}

func (op *operation) fail(err error) (*Result, error) {
	op.record.Status = StatusFailed
	op.record.Err = err
	op.service.log.WithFields(logrus.Fields{
		"id":    op.record.Id.String(),
		"kind":  op.record.Kind,
		"phase": op.record.Phase,
	}).WithError(err).Warn("operation failed")
	op.service.notifier.Notify(&notify.Notification{
		Severity:    notify.Error,
		Message:     failureMessage(op.record.Kind, err),
		Description: err.Error(),
	})
	op.service.recorder.Record(op.record)
	return op.result, err
}

func (op *operation) succeed(message string, receipt *backend.Receipt) (*Result, error) {
	op.record.Status = StatusSucceeded
	op.service.log.WithFields(logrus.Fields{
		"id":        op.record.Id.String(),
		"kind":      op.record.Kind,
		"signature": receipt.String(),
	}).Info("operation succeeded")
	op.service.notifier.Notify(&notify.Notification{
		Severity:    notify.Success,
		Message:     message,
		Description: fmt.Sprintf("Transaction - %s", receipt),
	})
	op.service.recorder.Record(op.record)
	return op.result, nil
}

func failureMessage(kind Kind, err error) string {
	if phaseErr, ok := err.(*PhaseError); ok && phaseErr.Phase == PhaseSetup {
		return fmt.Sprintf("Creating %s accounts failed, no funds moved.", kind)
	}
	return fmt.Sprintf("Error %s funds.", verb(kind))
}

func verb(kind Kind) string {
	switch kind {
	case KindDeposit:
		return "depositing"
	case KindWithdraw:
		return "withdrawing"
	case KindBorrow:
		return "borrowing"
	case KindRepay:
		return "repaying"
	default:
		return string(kind)
	}
}

func (s *Service) single(ctx context.Context, op *operation, done string, build func() (*batch.Transaction, error)) (*Result, error) {
	tx, err := build()
	if err != nil {
		return op.fail(err)
	}
	receipt, err := op.submit(ctx, PhaseAction, tx)
	if err != nil {
		return op.fail(err)
	}
	return op.succeed(done, receipt)
}

// Reject ends an operation whose request could not be prepared, so the failure is notified and
// recorded like any other.
func (s *Service) Reject(kind Kind, err error) (*Result, error) {
	return s.begin(kind).fail(err)
}

func (s *Service) Deposit(ctx context.Context, req *DepositRequest) (*Result, error) {
	op := s.begin(KindDeposit)
	if err := op.connect(&req.Wallet); err != nil {
		return op.fail(err)
	}
	return s.single(ctx, op, "Funds deposited.", func() (*batch.Transaction, error) {
		return s.orchestrator.Deposit(ctx, req)
	})
}

func (s *Service) Withdraw(ctx context.Context, req *WithdrawRequest) (*Result, error) {
	op := s.begin(KindWithdraw)
	if err := op.connect(&req.Wallet); err != nil {
		return op.fail(err)
	}
	return s.single(ctx, op, "Funds withdrawn.", func() (*batch.Transaction, error) {
		return s.orchestrator.Withdraw(ctx, req)
	})
}

func (s *Service) Repay(ctx context.Context, req *RepayRequest) (*Result, error) {
	op := s.begin(KindRepay)
	if err := op.connect(&req.Wallet); err != nil {
		return op.fail(err)
	}
	return s.single(ctx, op, "Funds repaid.", func() (*batch.Transaction, error) {
		return s.orchestrator.Repay(ctx, req)
	})
}

// Borrow submits the obligation setup when needed and only continues once it is confirmed.
func (s *Service) Borrow(ctx context.Context, req *BorrowRequest) (*Result, error) {
	op := s.begin(KindBorrow)
	if err := op.connect(&req.Wallet); err != nil {
		return op.fail(err)
	}
	plan, err := s.orchestrator.Borrow(ctx, req)
	if err != nil {
		return op.fail(err)
	}

	var tx *batch.Transaction
	switch plan := plan.(type) {
	case *BorrowReady:
		tx = plan.Transaction
	case *BorrowRequiresSetup:
		op.result.Obligation = plan.Obligation.String()
		op.result.Receipt = plan.Receipt.String()
		receipt, err := op.submit(ctx, PhaseSetup, plan.Setup)
		if err != nil {
			return op.fail(err)
		}
		s.notifier.Notify(&notify.Notification{
			Severity:    notify.Success,
			Message:     "Obligation accounts created",
			Description: fmt.Sprintf("Transaction %s", receipt),
		})
		s.notifier.Notify(&notify.Notification{Severity: notify.Info, Message: "Borrowing funds..."})
		op.record.Phase = PhaseAction
		if tx, err = plan.Then(ctx, receipt); err != nil {
			return op.fail(err)
		}
	}

	receipt, err := op.submit(ctx, PhaseAction, tx)
	if err != nil {
		return op.fail(err)
	}
	return op.succeed("Funds borrowed.", receipt)
}
