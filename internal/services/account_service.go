package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/metrics"
	"github.com/playvault/backend/internal/models"
)

// AccountStore holds user identities and balances. The balance field is the
// single point of contention in the system: every mutation goes through the
// atomic increment operations below, never a read-then-write.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	AdjustBalance(ctx context.Context, accountID string, delta float64) error
	DebitIfSufficient(ctx context.Context, accountID string, amount float64) error
	List(ctx context.Context, page Page) ([]models.User, error)
	Update(ctx context.Context, accountID string, update models.AccountUpdate) (*models.User, error)
	SetActive(ctx context.Context, accountID string, active bool) error
	Count(ctx context.Context) (int64, error)
}

// AccountService is the mongo-backed AccountStore over the users
// collection. When the context carries a session, updates join the
// surrounding multi-document transaction.
type AccountService struct {
	col    *mongo.Collection
	logger *zap.Logger
}

func NewAccountService(db *mongo.Database, logger *zap.Logger) *AccountService {
	return &AccountService{
		col:    db.Collection("users"),
		logger: logger,
	}
}

func (s *AccountService) Get(ctx context.Context, accountID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, Errorf(CodeNotFound, "account not found")
	}

	var user models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "account not found")
		}
		return nil, storeError(err)
	}
	return &user, nil
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "account not found")
		}
		return nil, storeError(err)
	}
	return &user, nil
}

// Create inserts a new account with balance zero. The unique email index
// turns a second registration into a DuplicateAccount failure.
func (s *AccountService) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.Role.Valid() {
		return nil, Errorf(CodeInvalidState, "unknown role %q", user.Role)
	}

	now := time.Now().UTC()
	user.Balance = 0
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("account created",
		zap.String("account_id", user.ID.Hex()),
		zap.String("role", string(user.Role)))
	return user, nil
}

// AdjustBalance applies delta with a single $inc. Concurrent adjustments
// serialize on the document; there is no lost-update window.
func (s *AccountService) AdjustBalance(ctx context.Context, accountID string, delta float64) error {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return Errorf(CodeNotFound, "account not found")
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$inc": bson.M{"balance": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		return Errorf(CodeNotFound, "account not found")
	}

	metrics.BalanceAdjustmentsTotal.Inc()
	return nil
}

// DebitIfSufficient debits amount only when the current balance covers it,
// as one conditional $inc. A zero match is disambiguated with a follow-up
// read: missing account vs insufficient funds.
func (s *AccountService) DebitIfSufficient(ctx context.Context, accountID string, amount float64) error {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return Errorf(CodeNotFound, "account not found")
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid, "balance": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"balance": -amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, accountID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}

	metrics.BalanceAdjustmentsTotal.Inc()
	return nil
}

func (s *AccountService) List(ctx context.Context, page Page) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

func (s *AccountService) Update(ctx context.Context, accountID string, update models.AccountUpdate) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, Errorf(CodeNotFound, "account not found")
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Email != "" {
		set["email"] = update.Email
	}
	if update.FirstName != "" {
		set["first_name"] = update.FirstName
	}
	if update.LastName != "" {
		set["last_name"] = update.LastName
	}
	if update.Role != "" {
		if !update.Role.Valid() {
			return nil, Errorf(CodeInvalidState, "unknown role %q", update.Role)
		}
		set["role"] = update.Role
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}

	var user models.User
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "account not found")
		}
		return nil, storeError(err)
	}
	return &user, nil
}

func (s *AccountService) SetActive(ctx context.Context, accountID string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return Errorf(CodeNotFound, "account not found")
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()}})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		return Errorf(CodeNotFound, "account not found")
	}
	return nil
}

func (s *AccountService) Count(ctx context.Context) (int64, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}
