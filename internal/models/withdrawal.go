package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
		return true
	}
	return false
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:  {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved: {},
	WithdrawalRejected: {},
}

func (s WithdrawalStatus) CanTransition(to WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BankAccount holds the payout destination for a withdrawal.
type BankAccount struct {
	AccountNumber string `bson:"account_number" json:"account_number" validate:"required,min=10,max=20"`
	AccountName   string `bson:"account_name" json:"account_name" validate:"required,min=2,max=100"`
	BankName      string `bson:"bank_name" json:"bank_name" validate:"required,min=2,max=100"`
	BankCode      string `bson:"bank_code,omitempty" json:"bank_code,omitempty"`
}

// Withdrawal is a request to pay out funds. The amount is debited the
// moment the request is created (funds on hold); approval finalizes the
// debit with no further balance change, rejection refunds it with a
// compensating ledger record.
type Withdrawal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Amount      float64            `bson:"amount" json:"amount"`
	BankAccount BankAccount        `bson:"bank_account" json:"bank_account"`
	Status      WithdrawalStatus   `bson:"status" json:"status"`
	AdminNotes  string             `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	ProcessedBy string             `bson:"processed_by,omitempty" json:"processed_by,omitempty"`
	Reference   string             `bson:"reference" json:"reference"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
