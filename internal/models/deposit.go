package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

func (s DepositStatus) Valid() bool {
	switch s {
	case DepositPending, DepositApproved, DepositRejected:
		return true
	}
	return false
}

var depositTransitions = map[DepositStatus][]DepositStatus{
	DepositPending:  {DepositApproved, DepositRejected},
	DepositApproved: {},
	DepositRejected: {},
}

func (s DepositStatus) CanTransition(to DepositStatus) bool {
	for _, next := range depositTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Deposit is a request to credit an account. It stays pending until an
// admin approves (balance credited, ledger record completed) or rejects
// (no balance change). Both outcomes are terminal.
type Deposit struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Amount    float64            `bson:"amount" json:"amount"`
	Reference string             `bson:"reference" json:"reference"`
	Status    DepositStatus      `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
