package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/events"
	"github.com/playvault/backend/internal/models"
)

// Page bounds list queries.
type Page struct {
	Skip  int64
	Limit int64
}

// TxRunner executes fn inside one atomic unit: every store call made with
// the callback's context commits together or not at all.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher emits ledger events after a workflow commits. Publishing
// is best effort and must never happen inside a transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event events.LedgerEvent)
}

// TransactionLedger is the append-only record of monetary events.
type TransactionLedger interface {
	Append(ctx context.Context, rec *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, page Page) ([]models.Transaction, error)
	ListAll(ctx context.Context, page Page) ([]models.Transaction, error)
	UpdateStatusByReference(ctx context.Context, reference string, status models.TransactionStatus) error
}

// LedgerService is the mongo-backed ledger over the transactions
// collection.
type LedgerService struct {
	col    *mongo.Collection
	logger *zap.Logger
}

func NewLedgerService(db *mongo.Database, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		col:    db.Collection("transactions"),
		logger: logger,
	}
}

// Append assigns the record id up front, inserts once, then confirms the
// insert by reading the id back. The store may serve the confirmation read
// before the write is visible, so only that read retries (bounded,
// exponential backoff); the insert itself is never retried, which would
// risk a duplicate record. An exhausted confirmation surfaces as Internal
// with the write already durable.
func (s *LedgerService) Append(ctx context.Context, rec *models.Transaction) (*models.Transaction, error) {
	if !rec.Type.Valid() {
		return nil, Errorf(CodeInvalidState, "unknown transaction type %q", rec.Type)
	}
	if rec.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Status == "" {
		rec.Status = models.TransactionPending
	}
	if !rec.Status.Valid() {
		return nil, Errorf(CodeInvalidState, "unknown transaction status %q", rec.Status)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if _, err := s.col.InsertOne(ctx, rec); err != nil {
		return nil, storeError(err)
	}

	var out models.Transaction
	err := withRetry(ctx, maxConfirmAttempts, confirmBaseDelay, func() error {
		ferr := s.col.FindOne(ctx, bson.M{"_id": rec.ID}).Decode(&out)
		if ferr == mongo.ErrNoDocuments {
			return Errorf(CodeTransient, "record %s not yet visible", rec.ID.Hex())
		}
		if ferr != nil {
			return storeError(ferr)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("ledger append confirmation exhausted",
			zap.String("transaction_id", rec.ID.Hex()),
			zap.String("reference", rec.Reference),
			zap.Error(err))
		return nil, WrapErr(CodeInternal, "ledger record written but unconfirmed", err)
	}

	return &out, nil
}

func (s *LedgerService) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "transaction not found")
	}

	var rec models.Transaction
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "transaction not found")
		}
		return nil, storeError(err)
	}
	return &rec, nil
}

// ListByAccount returns an account's records newest first.
func (s *LedgerService) ListByAccount(ctx context.Context, accountID string, page Page) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{"user_id": accountID}, page)
}

func (s *LedgerService) ListAll(ctx context.Context, page Page) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{}, page)
}

func (s *LedgerService) list(ctx context.Context, filter bson.M, page Page) ([]models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	recs := []models.Transaction{}
	if err := cur.All(ctx, &recs); err != nil {
		return nil, storeError(err)
	}
	return recs, nil
}

// UpdateStatusByReference finalizes the pending record carrying the given
// reference. The pending filter makes it a compare-and-set: a record
// already finalized does not match and the call fails NotFound.
func (s *LedgerService) UpdateStatusByReference(ctx context.Context, reference string, status models.TransactionStatus) error {
	if !models.TransactionPending.CanTransition(status) {
		return Errorf(CodeInvalidState, "cannot finalize record as %q", status)
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"reference": reference, "status": models.TransactionPending},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		return Errorf(CodeNotFound, "no pending record for reference %s", reference)
	}
	return nil
}

// newReference builds a correlation key like DEP-9F2C41AB.
func newReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:8])
}
