// Package store journals the outcome of every lending operation.
package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"

	"github.com/egaotan/solana-lending/config"
	"github.com/egaotan/solana-lending/lending"
)

const (
	QueueSize = 32
)

type Store struct {
	ctx           context.Context
	wg            sync.WaitGroup
	log           *logrus.Entry
	operationChan chan *Operation
	dao           *Dao
}

func NewStore(ctx context.Context, db *config.DB) (*Store, error) {
	dao, err := NewDao(db, logger.Warn)
	if err != nil {
		return nil, err
	}
	s := &Store{
		ctx:           ctx,
		log:           logrus.StandardLogger().WithField("service", "store"),
		operationChan: make(chan *Operation, QueueSize),
		dao:           dao,
	}
	return s, nil
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.store()
}

// Stop waits for the writer to exit once the store context is done.
func (s *Store) Stop() {
	s.wg.Wait()
}

func (s *Store) store() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.operationChan:
			if err := s.dao.SaveOperation(op); err != nil {
				s.log.WithField("id", op.Id).WithError(err).Error("save operation")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// StoreOperation queues op for the writer. It reports false and drops op when the queue is full.
func (s *Store) StoreOperation(op *Operation) bool {
	select {
	case s.operationChan <- op:
		return true
	default:
		s.log.WithFields(logrus.Fields{"id": op.Id, "kind": op.Kind}).Warn("operation queue is full, drop")
		return false
	}
}

// Record journals the outcome of a lending operation.
func (s *Store) Record(record *lending.Record) {
	s.StoreOperation(NewOperation(record))
}

func (s *Store) GetOperation(id string) (*Operation, error) {
	return s.dao.SelectOperation(id)
}

func (s *Store) GetOperations(wallet string, limit int) ([]*Operation, error) {
	return s.dao.SelectOperationsByWallet(wallet, limit)
}

func NewOperation(record *lending.Record) *Operation {
	op := &Operation{
		Id:           record.Id.String(),
		Kind:         string(record.Kind),
		Phase:        string(record.Phase),
		Wallet:       record.Wallet.String(),
		Status:       string(record.Status),
		CreatedAt:    record.CreatedAt,
		Transactions: make([]*OperationTransaction, 0, len(record.Signatures)),
	}
	if record.Err != nil {
		op.Error = record.Err.Error()
	}
	for i, signature := range record.Signatures {
		op.Transactions = append(op.Transactions, &OperationTransaction{
			OperationId: op.Id,
			Seq:         i,
			Signature:   signature,
		})
	}
	return op
}
