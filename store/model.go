package store

import (
	"time"
)

type OperationTransaction struct {
	Id          uint64 `gorm:"primaryKey;autoIncrement"`
	OperationId string `gorm:"type:varchar(36);not null;index"`
	Seq         int    `gorm:"type:int;not null"`
	Signature   string `gorm:"type:varchar(120);not null"`
}

type Operation struct {
	Id           string                  `gorm:"primaryKey;type:varchar(36);not null"`
	Kind         string                  `gorm:"type:varchar(16);not null"`
	Phase        string                  `gorm:"type:varchar(16);not null"`
	Wallet       string                  `gorm:"type:varchar(48);not null"`
	Status       string                  `gorm:"type:varchar(16);not null"`
	Error        string                  `gorm:"type:text"`
	CreatedAt    time.Time               `gorm:"not null"`
	Transactions []*OperationTransaction `gorm:"foreignKey:OperationId;references:Id"`
}

// Signature returns the signature of the last submitted transaction.
func (op *Operation) Signature() string {
	if len(op.Transactions) == 0 {
		return ""
	}
	return op.Transactions[len(op.Transactions)-1].Signature
}
