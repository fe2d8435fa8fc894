package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionGame       TransactionType = "game"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionGame:
		return true
	}
	return false
}

type GameResult string

const (
	GameWin  GameResult = "win"
	GameLose GameResult = "lose"
)

func (r GameResult) Valid() bool {
	return r == GameWin || r == GameLose
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRejected  TransactionStatus = "rejected"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionRejected:
		return true
	}
	return false
}

// Terminal reports whether a record may no longer change status.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionRejected
}

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:   {TransactionCompleted, TransactionRejected},
	TransactionCompleted: {},
	TransactionRejected:  {},
}

func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, next := range transactionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transaction is one ledger record. Every balance mutation has exactly one
// record with matching magnitude; amount is always the positive magnitude
// and the direction follows from the type (and result, for games).
type Transaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Type      TransactionType    `bson:"type" json:"type"`
	Amount    float64            `bson:"amount" json:"amount"`
	GameID    string             `bson:"game_id,omitempty" json:"game_id,omitempty"`
	GameName  string             `bson:"game_name,omitempty" json:"game_name,omitempty"`
	Result    GameResult         `bson:"result,omitempty" json:"result,omitempty"`
	Payout    float64            `bson:"payout,omitempty" json:"payout,omitempty"`
	Status    TransactionStatus  `bson:"status" json:"status"`
	Reference string             `bson:"reference" json:"reference"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
