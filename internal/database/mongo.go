package database

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// Mongo owns the client and database handles. It is constructed once at
// startup and passed to the services that need it.
type Mongo struct {
	Client     *mongo.Client
	DB         *mongo.Database
	txnTimeout time.Duration
}

// InitMongo connects, pings and returns the shared handle.
func InitMongo(ctx context.Context) (*Mongo, error) {
	uri := viper.GetString("mongodb.uri")
	name := viper.GetString("mongodb.name")

	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("mongodb.connect_timeout"))
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("error pinging mongodb: %w", err)
	}

	return &Mongo{
		Client:     client,
		DB:         client.Database(name),
		txnTimeout: viper.GetDuration("mongodb.txn_timeout"),
	}, nil
}

// InitMongoOrDie initializes mongo with fatal error handling.
func InitMongoOrDie(ctx context.Context, logger *zap.Logger) *Mongo {
	m, err := InitMongo(ctx)
	if err != nil {
		logger.Fatal("failed to initialize mongodb", zap.Error(err))
	}
	logger.Info("mongodb connection established", zap.String("database", m.DB.Name()))
	return m
}

func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.DB.Collection(name)
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// WithTransaction runs fn inside a single multi-document transaction with
// majority write concern and snapshot reads. The whole transaction is
// bounded by the configured timeout; any error from fn aborts it entirely,
// and a caller timeout aborts server-side rather than leaving locks open.
func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.txnTimeout)
	defer cancel()

	session, err := m.Client.StartSession()
	if err != nil {
		return fmt.Errorf("error starting session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Snapshot())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}

// EnsureIndexes creates the indexes the workflows rely on. The unique email
// index backs duplicate-account detection; the rest serve the hot queries.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	users := m.DB.Collection("users")
	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	transactions := m.DB.Collection("transactions")
	if _, err := transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "reference", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("transactions indexes: %w", err)
	}

	deposits := m.DB.Collection("deposits")
	if _, err := deposits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("deposits indexes: %w", err)
	}

	withdrawals := m.DB.Collection("withdrawals")
	if _, err := withdrawals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("withdrawals indexes: %w", err)
	}

	return nil
}
