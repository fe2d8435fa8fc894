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

// GameStore persists the game catalog.
type GameStore interface {
	Create(ctx context.Context, g *models.Game) (*models.Game, error)
	Get(ctx context.Context, id string) (*models.Game, error)
	Update(ctx context.Context, id string, upd models.GameUpdate) (*models.Game, error)
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, category models.GameCategory, page Page) ([]models.Game, error)
	ListAdmin(ctx context.Context, page Page) ([]models.Game, error)
	Featured(ctx context.Context, limit int64) ([]models.Game, error)
}

// MongoGameStore keeps games in the games collection.
type MongoGameStore struct {
	col *mongo.Collection
}

func NewMongoGameStore(db *mongo.Database) *MongoGameStore {
	return &MongoGameStore{col: db.Collection("games")}
}

func (s *MongoGameStore) Create(ctx context.Context, g *models.Game) (*models.Game, error) {
	if !g.Category.Valid() {
		return nil, Errorf(CodeInvalidState, "unknown game category %q", g.Category)
	}
	if g.MinStake <= 0 {
		return nil, ErrInvalidAmount
	}
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	g.IsActive = true
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, g); err != nil {
		return nil, storeError(err)
	}
	return g, nil
}

func (s *MongoGameStore) Get(ctx context.Context, id string) (*models.Game, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "game not found")
	}

	var g models.Game
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "game not found")
		}
		return nil, storeError(err)
	}
	return &g, nil
}

func (s *MongoGameStore) Update(ctx context.Context, id string, upd models.GameUpdate) (*models.Game, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Errorf(CodeNotFound, "game not found")
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != "" {
		set["title"] = upd.Title
	}
	if upd.Description != "" {
		set["description"] = upd.Description
	}
	if upd.MinStake != nil {
		if *upd.MinStake <= 0 {
			return nil, ErrInvalidAmount
		}
		set["min_stake"] = *upd.MinStake
	}
	if upd.Category != "" {
		if !upd.Category.Valid() {
			return nil, Errorf(CodeInvalidState, "unknown game category %q", upd.Category)
		}
		set["category"] = upd.Category
	}
	if upd.Icon != "" {
		set["icon"] = upd.Icon
	}
	if upd.ImageURL != "" {
		set["image_url"] = upd.ImageURL
	}
	if upd.Rules != "" {
		set["rules"] = upd.Rules
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}

	var g models.Game
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&g)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, Errorf(CodeNotFound, "game not found")
		}
		return nil, storeError(err)
	}
	return &g, nil
}

// SetActive soft-deletes or restores a game. Settled plays keep their
// game_id, so catalog rows are never removed outright.
func (s *MongoGameStore) SetActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Errorf(CodeNotFound, "game not found")
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()}})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		return Errorf(CodeNotFound, "game not found")
	}
	return nil
}

// List returns active games for players, optionally narrowed to one
// category.
func (s *MongoGameStore) List(ctx context.Context, category models.GameCategory, page Page) ([]models.Game, error) {
	filter := bson.M{"is_active": true}
	if category != "" {
		if !category.Valid() {
			return nil, Errorf(CodeInvalidState, "unknown game category %q", category)
		}
		filter["category"] = category
	}
	return s.list(ctx, filter, page)
}

func (s *MongoGameStore) ListAdmin(ctx context.Context, page Page) ([]models.Game, error) {
	return s.list(ctx, bson.M{}, page)
}

func (s *MongoGameStore) Featured(ctx context.Context, limit int64) ([]models.Game, error) {
	if limit <= 0 {
		limit = 3
	}
	return s.list(ctx, bson.M{"is_active": true}, Page{Limit: limit})
}

func (s *MongoGameStore) list(ctx context.Context, filter bson.M, page Page) ([]models.Game, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	games := []models.Game{}
	if err := cur.All(ctx, &games); err != nil {
		return nil, storeError(err)
	}
	return games, nil
}

// GameService exposes the catalog and settles plays against the ledger.
type GameService struct {
	store    GameStore
	accounts AccountStore
	ledger   TransactionLedger
	tx       TxRunner
	pub      EventPublisher
	logger   *zap.Logger
}

func NewGameService(store GameStore, accounts AccountStore, ledger TransactionLedger, tx TxRunner, pub EventPublisher, logger *zap.Logger) *GameService {
	return &GameService{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		tx:       tx,
		pub:      pub,
		logger:   logger,
	}
}

// Settle applies one play outcome. A win credits the payout, a loss
// debits the stake, and the completed ledger record lands in the same
// atomic unit as the balance move. The record keeps the stake as its
// amount with the payout alongside, so the ledger can always reproduce
// the balance change from result, payout and amount. A player settles
// only their own plays; admins may settle for anyone.
func (s *GameService) Settle(ctx context.Context, caller models.Principal, userID, gameID string, stake float64, result models.GameResult, payout float64) (*models.Transaction, error) {
	if stake <= 0 {
		return nil, ErrInvalidAmount
	}
	if !caller.CanAccess(userID) {
		return nil, ErrForbidden
	}
	if !result.Valid() {
		return nil, Errorf(CodeInvalidState, "unknown game result %q", result)
	}
	if result == models.GameWin && payout <= 0 {
		return nil, Errorf(CodeInvalidAmount, "winning play requires a positive payout")
	}
	if result == models.GameLose {
		payout = 0
	}

	ref := newReference("GAME")
	var rec *models.Transaction
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		game, err := s.store.Get(ctx, gameID)
		if err != nil {
			return err
		}
		if !game.IsActive {
			return Errorf(CodeInvalidState, "game %s is not active", game.Title)
		}
		if stake < game.MinStake {
			return Errorf(CodeInvalidAmount, "minimum stake for %s is %.2f", game.Title, game.MinStake)
		}

		if result == models.GameWin {
			if err := s.accounts.AdjustBalance(ctx, userID, payout); err != nil {
				return err
			}
		} else {
			if err := s.accounts.DebitIfSufficient(ctx, userID, stake); err != nil {
				return err
			}
		}

		appended, err := s.ledger.Append(ctx, &models.Transaction{
			UserID:    userID,
			Type:      models.TransactionGame,
			Amount:    stake,
			GameID:    gameID,
			GameName:  game.Title,
			Result:    result,
			Payout:    payout,
			Status:    models.TransactionCompleted,
			Reference: ref,
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

	delta := payout
	if result == models.GameLose {
		delta = -stake
	}
	metrics.LedgerTransactionsTotal.WithLabelValues(string(models.TransactionGame), string(models.TransactionCompleted)).Inc()
	s.pub.Publish(ctx, events.LedgerEvent{
		Event:     events.EventGameSettled,
		AccountID: userID,
		Reference: ref,
		Amount:    delta,
	})
	s.logger.Info("game settled",
		zap.String("user_id", userID),
		zap.String("game_id", gameID),
		zap.String("result", string(result)),
		zap.Float64("stake", stake),
		zap.Float64("payout", payout))
	return rec, nil
}

func (s *GameService) Create(ctx context.Context, g *models.Game) (*models.Game, error) {
	return s.store.Create(ctx, g)
}

func (s *GameService) Get(ctx context.Context, id string) (*models.Game, error) {
	return s.store.Get(ctx, id)
}

func (s *GameService) Update(ctx context.Context, id string, upd models.GameUpdate) (*models.Game, error) {
	return s.store.Update(ctx, id, upd)
}

func (s *GameService) Deactivate(ctx context.Context, id string) error {
	return s.store.SetActive(ctx, id, false)
}

func (s *GameService) List(ctx context.Context, category models.GameCategory, page Page) ([]models.Game, error) {
	return s.store.List(ctx, category, page)
}

func (s *GameService) ListAdmin(ctx context.Context, page Page) ([]models.Game, error) {
	return s.store.ListAdmin(ctx, page)
}

func (s *GameService) Featured(ctx context.Context, limit int64) ([]models.Game, error) {
	return s.store.Featured(ctx, limit)
}
