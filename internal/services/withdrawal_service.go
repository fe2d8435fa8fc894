package services

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/events"
	"github.com/playvault/backend/internal/metrics"
	"github.com/playvault/backend/internal/models"
)

// Withdrawal process decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	Create(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error)
	Get(ctx context.Context, id string) (*models.Withdrawal, error)
	Finalize(ctx context.Context, id string, from, to models.WithdrawalStatus, notes, processedBy string) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, page Page) ([]models.Withdrawal, error)
	ListAll(ctx context.Context, page Page) ([]models.Withdrawal, error)
}

// MongoWithdrawalStore keeps withdrawals in the withdrawals collection.
type MongoWithdrawalStore struct {
	col *mongo.Collection
}

func NewMongoWithdrawalStore(db *mongo.Database) *MongoWithdrawalStore {
	return &MongoWithdrawalStore{col: db.Collection("withdrawals")}
}

func (s *MongoWithdrawalStore) Create(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, w); err != nil {
		return nil, storeError(err)
	}
	return w, nil
}

func (s *MongoWithdrawalStore) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "withdrawal not found")
	}

	var w models.Withdrawal
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&w); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "withdrawal not found")
		}
		return nil, storeError(err)
	}
	return &w, nil
}

// Finalize is the compare-and-set that closes a withdrawal. The from
// filter guarantees a request is processed exactly once regardless of how
// many admins click at the same time.
func (s *MongoWithdrawalStore) Finalize(ctx context.Context, id string, from, to models.WithdrawalStatus, notes, processedBy string) (*models.Withdrawal, error) {
	if !from.CanTransition(to) {
		return nil, Errorf(CodeInvalidState, "withdrawal cannot move from %q to %q", from, to)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "withdrawal not found")
	}

	var w models.Withdrawal
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": from},
		bson.M{"$set": bson.M{
			"status":       to,
			"admin_notes":  notes,
			"processed_by": processedBy,
			"updated_at":   time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&w)
	if err == nil {
		return &w, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, storeError(err)
	}

	cur, gerr := s.Get(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, Errorf(CodeInvalidState, "withdrawal already %s", cur.Status)
}

func (s *MongoWithdrawalStore) ListByUser(ctx context.Context, userID string, page Page) ([]models.Withdrawal, error) {
	return s.list(ctx, bson.M{"user_id": userID}, page)
}

func (s *MongoWithdrawalStore) ListByStatus(ctx context.Context, status models.WithdrawalStatus, page Page) ([]models.Withdrawal, error) {
	return s.list(ctx, bson.M{"status": status}, page)
}

func (s *MongoWithdrawalStore) ListAll(ctx context.Context, page Page) ([]models.Withdrawal, error) {
	return s.list(ctx, bson.M{}, page)
}

func (s *MongoWithdrawalStore) list(ctx context.Context, filter bson.M, page Page) ([]models.Withdrawal, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	ws := []models.Withdrawal{}
	if err := cur.All(ctx, &ws); err != nil {
		return nil, storeError(err)
	}
	return ws, nil
}

// WithdrawalService runs the withdrawal workflow. Unlike deposits the
// money leaves the account at request time, so approval releases funds
// already held and rejection has to give them back.
type WithdrawalService struct {
	store    WithdrawalStore
	accounts AccountStore
	ledger   TransactionLedger
	tx       TxRunner
	pub      EventPublisher
	logger   *zap.Logger
}

func NewWithdrawalService(store WithdrawalStore, accounts AccountStore, ledger TransactionLedger, tx TxRunner, pub EventPublisher, logger *zap.Logger) *WithdrawalService {
	return &WithdrawalService{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		tx:       tx,
		pub:      pub,
		logger:   logger,
	}
}

// Request debits the account immediately and opens a pending withdrawal
// plus its pending ledger record under one shared reference. The debit,
// the request and the record land atomically, so a concurrent spender can
// never leave the withdrawal holding money the account no longer has.
// Only the account owner or an admin may open one.
func (s *WithdrawalService) Request(ctx context.Context, caller models.Principal, userID string, amount float64, bank models.BankAccount, reference string) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if min := viper.GetFloat64("withdrawal.minimum"); amount < min {
		return nil, Errorf(CodeInvalidAmount, "minimum withdrawal amount is %.2f", min)
	}
	if !caller.CanAccess(userID) {
		return nil, ErrForbidden
	}

	ref := reference
	if ref == "" {
		ref = newReference("WDR")
	}
	var w *models.Withdrawal
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.DebitIfSufficient(ctx, userID, amount); err != nil {
			return err
		}

		created, err := s.store.Create(ctx, &models.Withdrawal{
			UserID:      userID,
			Amount:      amount,
			BankAccount: bank,
			Reference:   ref,
			Status:      models.WithdrawalPending,
		})
		if err != nil {
			return err
		}

		if _, err := s.ledger.Append(ctx, &models.Transaction{
			UserID:    userID,
			Type:      models.TransactionWithdrawal,
			Amount:    amount,
			Status:    models.TransactionPending,
			Reference: ref,
		}); err != nil {
			return err
		}

		w = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionWithdrawal), string(models.TransactionPending)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventWithdrawalRequested,
		AccountID: userID,
		Reference: ref,
		Amount:    amount,
	})
	s.logger.Info("withdrawal requested",
		zap.String("user_id", userID),
		zap.String("reference", ref),
		zap.Float64("amount", amount))
	return w, nil
}

// Approve finalizes a pending withdrawal. The funds were debited at
// request time, so no balance changes here; the ledger record just moves
// to completed.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, notes, processedBy string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		approved, err := s.store.Finalize(ctx, withdrawalID, models.WithdrawalPending, models.WithdrawalApproved, notes, processedBy)
		if err != nil {
			return err
		}
		if err := s.ledger.UpdateStatusByReference(ctx, approved.Reference, models.TransactionCompleted); err != nil {
			return err
		}
		w = approved
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionWithdrawal), string(models.TransactionCompleted)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventWithdrawalApproved,
		AccountID: w.UserID,
		Reference: w.Reference,
		Amount:    w.Amount,
	})
	s.logger.Info("withdrawal approved",
		zap.String("withdrawal_id", withdrawalID),
		zap.String("reference", w.Reference),
		zap.String("processed_by", processedBy))
	return w, nil
}

// Reject returns the held funds. The credit is paired with a completed
// compensating deposit record referencing REFUND-<original>, so the
// ledger explains both the hold and the give-back.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, notes, processedBy string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rejected, err := s.store.Finalize(ctx, withdrawalID, models.WithdrawalPending, models.WithdrawalRejected, notes, processedBy)
		if err != nil {
			return err
		}
		if err := s.ledger.UpdateStatusByReference(ctx, rejected.Reference, models.TransactionRejected); err != nil {
			return err
		}
		if err := s.accounts.AdjustBalance(ctx, rejected.UserID, rejected.Amount); err != nil {
			return err
		}
		if _, err := s.ledger.Append(ctx, &models.Transaction{
			UserID:    rejected.UserID,
			Type:      models.TransactionDeposit,
			Amount:    rejected.Amount,
			Status:    models.TransactionCompleted,
			Reference: "REFUND-" + rejected.Reference,
			Notes:     "Withdrawal refund",
		}); err != nil {
			return err
		}
		w = rejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionWithdrawal), string(models.TransactionRejected)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventWithdrawalRejected,
		AccountID: w.UserID,
		Reference: w.Reference,
		Amount:    w.Amount,
	})
	s.logger.Info("withdrawal rejected and refunded",
		zap.String("withdrawal_id", withdrawalID),
		zap.String("reference", w.Reference),
		zap.String("processed_by", processedBy))
	return w, nil
}

// Process dispatches an admin decision to Approve or Reject.
func (s *WithdrawalService) Process(ctx context.Context, withdrawalID, decision, notes, processedBy string) (*models.Withdrawal, error) {
	switch decision {
	case DecisionApprove:
		return s.Approve(ctx, withdrawalID, notes, processedBy)
	case DecisionReject:
		return s.Reject(ctx, withdrawalID, notes, processedBy)
	default:
		return nil, Errorf(CodeInvalidState, "unknown decision %q", decision)
	}
}

func (s *WithdrawalService) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	return s.store.Get(ctx, id)
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID string, page Page) ([]models.Withdrawal, error) {
	return s.store.ListByUser(ctx, userID, page)
}

func (s *WithdrawalService) ListPending(ctx context.Context, page Page) ([]models.Withdrawal, error) {
	return s.store.ListByStatus(ctx, models.WithdrawalPending, page)
}

func (s *WithdrawalService) ListAll(ctx context.Context, page Page) ([]models.Withdrawal, error) {
	return s.store.ListAll(ctx, page)
}
