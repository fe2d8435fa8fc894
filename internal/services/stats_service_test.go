package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func statsOverMock(mt *mtest.T, redisClient *redis.Client) *StatsService {
	return &StatsService{
		users:        mt.Coll,
		transactions: mt.Coll,
		deposits:     mt.Coll,
		withdrawals:  mt.Coll,
		redis:        redisClient,
		logger:       zap.NewNop(),
	}
}

// countReply mocks a CountDocuments reply, which the driver reads from
// the first batch of an aggregate cursor.
func countReply(n int64) bson.D {
	return mtest.CreateCursorResponse(0, "ledger.stats", mtest.FirstBatch,
		bson.D{{Key: "n", Value: n}})
}

func sumReply(total float64) bson.D {
	return mtest.CreateCursorResponse(0, "ledger.stats", mtest.FirstBatch,
		bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: total}})
}

// dashboardReplies queues the ten queries AdminDashboard runs, in order:
// four counts, three sums, the games-played count, then the lost and
// paid sums that make up gross revenue.
func dashboardReplies() []bson.D {
	return []bson.D{
		countReply(25),
		countReply(19),
		countReply(4),
		countReply(2),
		sumReply(9150),
		sumReply(20000),
		sumReply(7500),
		countReply(310),
		sumReply(4200),
		sumReply(2900),
	}
}

func TestStatsAdminDashboard(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("computes platform totals", func(mt *mtest.T) {
		svc := statsOverMock(mt, nil)
		mt.AddMockResponses(dashboardReplies()...)

		dash, err := svc.AdminDashboard(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(25), dash.TotalUsers)
		assert.Equal(mt, int64(19), dash.ActiveUsers)
		assert.Equal(mt, int64(4), dash.PendingDeposits)
		assert.Equal(mt, int64(2), dash.PendingWithdrawals)
		assert.Equal(mt, 9150.0, dash.TotalBalance)
		assert.Equal(mt, 20000.0, dash.TotalDeposited)
		assert.Equal(mt, 7500.0, dash.TotalWithdrawn)
		assert.Equal(mt, int64(310), dash.GamesPlayed)
		assert.Equal(mt, 1300.0, dash.GrossRevenue)
	})

	mt.Run("serves the cached dashboard without querying", func(mt *mtest.T) {
		db, mock := redismock.NewClientMock()
		cached := AdminDashboard{TotalUsers: 7, TotalBalance: 880, GrossRevenue: 420.5}
		payload, err := json.Marshal(cached)
		require.NoError(mt, err)
		mock.ExpectGet("stats:admin_dashboard").SetVal(string(payload))

		// No mongo responses queued: any query would fail the test.
		svc := statsOverMock(mt, db)
		dash, err := svc.AdminDashboard(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, &cached, dash)
		assert.NoError(mt, mock.ExpectationsWereMet())
	})

	mt.Run("recaches after a miss", func(mt *mtest.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectGet("stats:admin_dashboard").RedisNil()
		mock.Regexp().ExpectSet("stats:admin_dashboard", `.*"total_users":25.*`, dashboardCacheTTL).SetVal("OK")

		svc := statsOverMock(mt, db)
		mt.AddMockResponses(dashboardReplies()...)

		dash, err := svc.AdminDashboard(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(25), dash.TotalUsers)
		assert.NoError(mt, mock.ExpectationsWereMet())
	})

	mt.Run("surfaces query failures", func(mt *mtest.T) {
		svc := statsOverMock(mt, nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11601,
			Message: "operation was interrupted",
			Name:    "Interrupted",
		}))

		_, err := svc.AdminDashboard(context.Background())
		require.Error(mt, err)
		assert.True(mt, IsCode(err, CodeInternal))
	})
}

func TestStatsRevenueHistory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns daily revenue oldest first", func(mt *mtest.T) {
		svc := statsOverMock(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.transactions", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "2026-08-20"}, {Key: "wagered", Value: 120.0}, {Key: "paid", Value: 45.0}},
			bson.D{{Key: "_id", Value: "2026-08-21"}, {Key: "wagered", Value: 200.0}, {Key: "paid", Value: 260.0}},
		))

		points, err := svc.RevenueHistory(context.Background(), 7)
		require.NoError(mt, err)
		require.Len(mt, points, 2)
		assert.Equal(mt, "2026-08-20", points[0].Day)
		assert.Equal(mt, 120.0, points[0].Wagered)
		assert.Equal(mt, 75.0, points[0].Revenue)
		// The house paid out more than it took that day.
		assert.Equal(mt, -60.0, points[1].Revenue)
	})

	mt.Run("quiet window yields an empty series", func(mt *mtest.T) {
		svc := statsOverMock(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.transactions", mtest.FirstBatch))

		points, err := svc.RevenueHistory(context.Background(), 30)
		require.NoError(mt, err)
		assert.NotNil(mt, points)
		assert.Empty(mt, points)
	})
}

func TestStatsUserStats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("combines balance with lifetime aggregates", func(mt *mtest.T) {
		accounts := newMemAccounts()
		userID := accounts.seed(180)
		svc := &StatsService{transactions: mt.Coll, accounts: accounts, logger: zap.NewNop()}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.transactions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_deposited", Value: 500.0},
			{Key: "total_withdrawn", Value: 200.0},
			{Key: "total_wagered", Value: 150.0},
			{Key: "total_won", Value: 90.0},
			{Key: "games_played", Value: 12},
		}))

		stats, err := svc.UserStats(context.Background(), userID)
		require.NoError(mt, err)
		assert.Equal(mt, 180.0, stats.Balance)
		assert.Equal(mt, 500.0, stats.TotalDeposited)
		assert.Equal(mt, 200.0, stats.TotalWithdrawn)
		assert.Equal(mt, 150.0, stats.TotalWagered)
		assert.Equal(mt, 90.0, stats.TotalWon)
		assert.Equal(mt, int64(12), stats.GamesPlayed)
	})

	mt.Run("new player has zero history", func(mt *mtest.T) {
		accounts := newMemAccounts()
		userID := accounts.seed(50)
		svc := &StatsService{transactions: mt.Coll, accounts: accounts, logger: zap.NewNop()}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.transactions", mtest.FirstBatch))

		stats, err := svc.UserStats(context.Background(), userID)
		require.NoError(mt, err)
		assert.Equal(mt, 50.0, stats.Balance)
		assert.Zero(mt, stats.TotalDeposited)
		assert.Zero(mt, stats.GamesPlayed)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		svc := &StatsService{transactions: mt.Coll, accounts: newMemAccounts(), logger: zap.NewNop()}

		_, err := svc.UserStats(context.Background(), primitive.NewObjectID().Hex())
		require.Error(mt, err)
		assert.True(mt, IsCode(err, CodeNotFound))
	})
}
