package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/events"
	"github.com/playvault/backend/internal/metrics"
	"github.com/playvault/backend/internal/models"
)

// DepositStore persists deposit requests.
type DepositStore interface {
	Create(ctx context.Context, dep *models.Deposit) (*models.Deposit, error)
	Get(ctx context.Context, id string) (*models.Deposit, error)
	SetStatus(ctx context.Context, id string, from, to models.DepositStatus) (*models.Deposit, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]models.Deposit, error)
	ListByStatus(ctx context.Context, status models.DepositStatus, page Page) ([]models.Deposit, error)
	ListAll(ctx context.Context, page Page) ([]models.Deposit, error)
}

// MongoDepositStore keeps deposits in the deposits collection.
type MongoDepositStore struct {
	col *mongo.Collection
}

func NewMongoDepositStore(db *mongo.Database) *MongoDepositStore {
	return &MongoDepositStore{col: db.Collection("deposits")}
}

func (s *MongoDepositStore) Create(ctx context.Context, dep *models.Deposit) (*models.Deposit, error) {
	if dep.ID.IsZero() {
		dep.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	dep.CreatedAt = now
	dep.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, dep); err != nil {
		return nil, storeError(err)
	}
	return dep, nil
}

func (s *MongoDepositStore) Get(ctx context.Context, id string) (*models.Deposit, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "deposit not found")
	}

	var dep models.Deposit
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&dep); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "deposit not found")
		}
		return nil, storeError(err)
	}
	return &dep, nil
}

// SetStatus moves a deposit from one status to another in a single
// compare-and-set. Two concurrent approvals both filter on the pending
// status; the store matches exactly one of them.
func (s *MongoDepositStore) SetStatus(ctx context.Context, id string, from, to models.DepositStatus) (*models.Deposit, error) {
	if !from.CanTransition(to) {
		return nil, Errorf(CodeInvalidState, "deposit cannot move from %q to %q", from, to)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "deposit not found")
	}

	var dep models.Deposit
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&dep)
	if err == nil {
		return &dep, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, storeError(err)
	}

	// No match: either the deposit is gone or another worker already
	// finalized it. Look again to report the right failure.
	cur, gerr := s.Get(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, Errorf(CodeInvalidState, "deposit already %s", cur.Status)
}

func (s *MongoDepositStore) ListByUser(ctx context.Context, userID string, page Page) ([]models.Deposit, error) {
	return s.list(ctx, bson.M{"user_id": userID}, page)
}

func (s *MongoDepositStore) ListByStatus(ctx context.Context, status models.DepositStatus, page Page) ([]models.Deposit, error) {
	return s.list(ctx, bson.M{"status": status}, page)
}

func (s *MongoDepositStore) ListAll(ctx context.Context, page Page) ([]models.Deposit, error) {
	return s.list(ctx, bson.M{}, page)
}

func (s *MongoDepositStore) list(ctx context.Context, filter bson.M, page Page) ([]models.Deposit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	deps := []models.Deposit{}
	if err := cur.All(ctx, &deps); err != nil {
		return nil, storeError(err)
	}
	return deps, nil
}

// DepositService runs the deposit approval workflow. Money only enters an
// account through Approve; Request records intent without touching the
// balance.
type DepositService struct {
	store    DepositStore
	accounts AccountStore
	ledger   TransactionLedger
	tx       TxRunner
	pub      EventPublisher
	logger   *zap.Logger
}

func NewDepositService(store DepositStore, accounts AccountStore, ledger TransactionLedger, tx TxRunner, pub EventPublisher, logger *zap.Logger) *DepositService {
	return &DepositService{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		tx:       tx,
		pub:      pub,
		logger:   logger,
	}
}

// Request opens a pending deposit and its pending ledger record under one
// shared reference. The balance is untouched until an admin approves.
// The route layer already screens callers; the ownership check here is
// what actually guards the workflow. An empty reference gets a generated
// DEP correlation key.
func (s *DepositService) Request(ctx context.Context, caller models.Principal, userID string, amount float64, reference string) (*models.Deposit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !caller.CanAccess(userID) {
		return nil, ErrForbidden
	}

	ref := reference
	if ref == "" {
		ref = newReference("DEP")
	}
	var dep *models.Deposit
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.accounts.Get(ctx, userID); err != nil {
			return err
		}

		created, err := s.store.Create(ctx, &models.Deposit{
			UserID:    userID,
			Amount:    amount,
			Reference: ref,
			Status:    models.DepositPending,
		})
		if err != nil {
			return err
		}

		if _, err := s.ledger.Append(ctx, &models.Transaction{
			UserID:    userID,
			Type:      models.TransactionDeposit,
			Amount:    amount,
			Status:    models.TransactionPending,
			Reference: ref,
		}); err != nil {
			return err
		}

		dep = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionDeposit), string(models.TransactionPending)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventDepositRequested,
		AccountID: userID,
		Reference: ref,
		Amount:    amount,
	})
	s.logger.Info("deposit requested",
		zap.String("user_id", userID),
		zap.String("reference", ref),
		zap.Float64("amount", amount))
	return dep, nil
}

// Approve credits the account and completes the linked ledger record in
// the same atomic unit that flips the deposit to approved.
func (s *DepositService) Approve(ctx context.Context, depositID string) (*models.Deposit, error) {
	var dep *models.Deposit
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		approved, err := s.store.SetStatus(ctx, depositID, models.DepositPending, models.DepositApproved)
		if err != nil {
			return err
		}
		if err := s.accounts.AdjustBalance(ctx, approved.UserID, approved.Amount); err != nil {
			return err
		}
		if err := s.ledger.UpdateStatusByReference(ctx, approved.Reference, models.TransactionCompleted); err != nil {
			return err
		}
		dep = approved
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionDeposit), string(models.TransactionCompleted)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventDepositApproved,
		AccountID: dep.UserID,
		Reference: dep.Reference,
		Amount:    dep.Amount,
	})
	s.logger.Info("deposit approved",
		zap.String("deposit_id", depositID),
		zap.String("reference", dep.Reference),
		zap.Float64("amount", dep.Amount))
	return dep, nil
}

// Reject closes the deposit without moving money and marks the linked
// ledger record rejected.
func (s *DepositService) Reject(ctx context.Context, depositID string) (*models.Deposit, error) {
	var dep *models.Deposit
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rejected, err := s.store.SetStatus(ctx, depositID, models.DepositPending, models.DepositRejected)
		if err != nil {
			return err
		}
		if err := s.ledger.UpdateStatusByReference(ctx, rejected.Reference, models.TransactionRejected); err != nil {
			return err
		}
		dep = rejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionDeposit), string(models.TransactionRejected)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventDepositRejected,
		AccountID: dep.UserID,
		Reference: dep.Reference,
		Amount:    dep.Amount,
	})
	s.logger.Info("deposit rejected",
		zap.String("deposit_id", depositID),
		zap.String("reference", dep.Reference))
	return dep, nil
}

// ManualAdjust moves money in or out of an account by admin decision. The
// movement is recorded as an already-completed deposit or withdrawal so
// the ledger still explains the balance.
func (s *DepositService) ManualAdjust(ctx context.Context, accountID string, amount float64, notes string) (*models.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	kind := models.TransactionDeposit
	magnitude := amount
	if amount < 0 {
		kind = models.TransactionWithdrawal
		magnitude = -amount
	}
	ref := newReference("ADJ")

	var rec *models.Transaction
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if amount > 0 {
			if err := s.accounts.AdjustBalance(ctx, accountID, amount); err != nil {
				return err
			}
		} else {
			if err := s.accounts.DebitIfSufficient(ctx, accountID, magnitude); err != nil {
				return err
			}
		}

		appended, err := s.ledger.Append(ctx, &models.Transaction{
			UserID:    accountID,
			Type:      kind,
			Amount:    magnitude,
			Status:    models.TransactionCompleted,
			Reference: ref,
			Notes:     notes,
		})
		if err != nil {
			return err
		}
		rec = appended
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BalanceAdjustmentsTotal.Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventBalanceAdjusted,
		AccountID: accountID,
		Reference: ref,
		Amount:    amount,
	})
	s.logger.Info("manual balance adjustment",
		zap.String("user_id", accountID),
		zap.String("reference", ref),
		zap.Float64("amount", amount))
	return rec, nil
}

func (s *DepositService) Get(ctx context.Context, id string) (*models.Deposit, error) {
	return s.store.Get(ctx, id)
}

func (s *DepositService) ListByUser(ctx context.Context, userID string, page Page) ([]models.Deposit, error) {
	return s.store.ListByUser(ctx, userID, page)
}

func (s *DepositService) ListPending(ctx context.Context, page Page) ([]models.Deposit, error) {
	return s.store.ListByStatus(ctx, models.DepositPending, page)
}

func (s *DepositService) ListAll(ctx context.Context, page Page) ([]models.Deposit, error) {
	return s.store.ListAll(ctx, page)
}
