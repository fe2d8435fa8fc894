package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/models"
)

const dashboardCacheTTL = 60 * time.Second

// AdminDashboard is the platform-wide money picture.
type AdminDashboard struct {
	TotalUsers         int64   `json:"total_users"`
	ActiveUsers        int64   `json:"active_users"`
	TotalBalance       float64 `json:"total_balance"`
	PendingDeposits    int64   `json:"pending_deposits"`
	PendingWithdrawals int64   `json:"pending_withdrawals"`
	TotalDeposited     float64 `json:"total_deposited"`
	TotalWithdrawn     float64 `json:"total_withdrawn"`
	GamesPlayed        int64   `json:"games_played"`
	GrossRevenue       float64 `json:"gross_revenue"`
}

// RevenuePoint is one day of game revenue.
type RevenuePoint struct {
	Day     string  `json:"day" bson:"_id"`
	Wagered float64 `json:"wagered" bson:"wagered"`
	Paid    float64 `json:"paid" bson:"paid"`
	Revenue float64 `json:"revenue" bson:"-"`
}

// UserStats is one player's lifetime numbers.
type UserStats struct {
	Balance        float64 `json:"balance"`
	TotalDeposited float64 `json:"total_deposited"`
	TotalWithdrawn float64 `json:"total_withdrawn"`
	TotalWagered   float64 `json:"total_wagered"`
	TotalWon       float64 `json:"total_won"`
	GamesPlayed    int64   `json:"games_played"`
}

// StatsService aggregates dashboard numbers straight from the
// collections. The admin dashboard is cached briefly in redis because it
// scans every account.
type StatsService struct {
	users        *mongo.Collection
	transactions *mongo.Collection
	deposits     *mongo.Collection
	withdrawals  *mongo.Collection
	accounts     AccountStore
	redis        *redis.Client
	logger       *zap.Logger
}

func NewStatsService(db *mongo.Database, accounts AccountStore, redisClient *redis.Client, logger *zap.Logger) *StatsService {
	return &StatsService{
		users:        db.Collection("users"),
		transactions: db.Collection("transactions"),
		deposits:     db.Collection("deposits"),
		withdrawals:  db.Collection("withdrawals"),
		accounts:     accounts,
		redis:        redisClient,
		logger:       logger,
	}
}

func (s *StatsService) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	const cacheKey = "stats:admin_dashboard"

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var dash AdminDashboard
			if err := json.Unmarshal(cached, &dash); err == nil {
				return &dash, nil
			}
		}
	}

	dash := &AdminDashboard{}
	var err error

	if dash.TotalUsers, err = s.users.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, storeError(err)
	}
	if dash.ActiveUsers, err = s.users.CountDocuments(ctx, bson.M{"is_active": true}); err != nil {
		return nil, storeError(err)
	}
	if dash.PendingDeposits, err = s.deposits.CountDocuments(ctx, bson.M{"status": models.DepositPending}); err != nil {
		return nil, storeError(err)
	}
	if dash.PendingWithdrawals, err = s.withdrawals.CountDocuments(ctx, bson.M{"status": models.WithdrawalPending}); err != nil {
		return nil, storeError(err)
	}

	dash.TotalBalance, err = s.sumField(ctx, s.users, bson.M{}, "$balance")
	if err != nil {
		return nil, err
	}
	dash.TotalDeposited, err = s.sumField(ctx, s.transactions,
		bson.M{"type": models.TransactionDeposit, "status": models.TransactionCompleted}, "$amount")
	if err != nil {
		return nil, err
	}
	dash.TotalWithdrawn, err = s.sumField(ctx, s.transactions,
		bson.M{"type": models.TransactionWithdrawal, "status": models.TransactionCompleted}, "$amount")
	if err != nil {
		return nil, err
	}

	if dash.GamesPlayed, err = s.transactions.CountDocuments(ctx,
		bson.M{"type": models.TransactionGame, "status": models.TransactionCompleted}); err != nil {
		return nil, storeError(err)
	}

	// Revenue is what players lost minus what the house paid out.
	lost, err := s.sumField(ctx, s.transactions,
		bson.M{"type": models.TransactionGame, "status": models.TransactionCompleted, "result": models.GameLose}, "$amount")
	if err != nil {
		return nil, err
	}
	paid, err := s.sumField(ctx, s.transactions,
		bson.M{"type": models.TransactionGame, "status": models.TransactionCompleted, "result": models.GameWin}, "$payout")
	if err != nil {
		return nil, err
	}
	dash.GrossRevenue = lost - paid

	if s.redis != nil {
		if payload, err := json.Marshal(dash); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, dashboardCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache admin dashboard", zap.Error(err))
			}
		}
	}

	return dash, nil
}

// RevenueHistory returns daily game revenue for the last days days,
// oldest first.
func (s *StatsService) RevenueHistory(ctx context.Context, days int) ([]RevenuePoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	pipeline := []bson.M{
		{"$match": bson.M{
			"type":      models.TransactionGame,
			"status":    models.TransactionCompleted,
			"timestamp": bson.M{"$gte": cutoff},
		}},
		{"$group": bson.M{
			"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$timestamp"}},
			"wagered": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$result", models.GameLose}}, "$amount", 0,
			}}},
			"paid": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$result", models.GameWin}}, "$payout", 0,
			}}},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cur, err := s.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	points := []RevenuePoint{}
	if err := cur.All(ctx, &points); err != nil {
		return nil, storeError(err)
	}
	for i := range points {
		points[i].Revenue = points[i].Wagered - points[i].Paid
	}
	return points, nil
}

func (s *StatsService) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	pipeline := []bson.M{
		{"$match": bson.M{"user_id": userID, "status": models.TransactionCompleted}},
		{"$group": bson.M{
			"_id": nil,
			"total_deposited": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$type", models.TransactionDeposit}}, "$amount", 0,
			}}},
			"total_withdrawn": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$type", models.TransactionWithdrawal}}, "$amount", 0,
			}}},
			"total_wagered": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$type", models.TransactionGame}}, "$amount", 0,
			}}},
			"total_won": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$result", models.GameWin}}, "$payout", 0,
			}}},
			"games_played": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$type", models.TransactionGame}}, 1, 0,
			}}},
		}},
	}

	cur, err := s.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		TotalDeposited float64 `bson:"total_deposited"`
		TotalWithdrawn float64 `bson:"total_withdrawn"`
		TotalWagered   float64 `bson:"total_wagered"`
		TotalWon       float64 `bson:"total_won"`
		GamesPlayed    int64   `bson:"games_played"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, storeError(err)
	}

	stats := &UserStats{Balance: user.Balance}
	if len(rows) > 0 {
		stats.TotalDeposited = rows[0].TotalDeposited
		stats.TotalWithdrawn = rows[0].TotalWithdrawn
		stats.TotalWagered = rows[0].TotalWagered
		stats.TotalWon = rows[0].TotalWon
		stats.GamesPlayed = rows[0].GamesPlayed
	}
	return stats, nil
}

func (s *StatsService) sumField(ctx context.Context, col *mongo.Collection, match bson.M, field string) (float64, error) {
	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": field}}},
	}

	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, storeError(err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode aggregate result: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
