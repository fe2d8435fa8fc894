package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event names carried on the ledger topic.
const (
	EventDepositRequested    = "deposit.requested"
	EventDepositApproved     = "deposit.approved"
	EventDepositRejected     = "deposit.rejected"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalApproved  = "withdrawal.approved"
	EventWithdrawalRejected  = "withdrawal.rejected"
	EventGameSettled         = "game.settled"
	EventBalanceAdjusted     = "balance.adjusted"
)

// LedgerEvent is the wire contract for money movement notifications.
type LedgerEvent struct {
	Event     string  `json:"event"`
	AccountID string  `json:"account_id"`
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	TsUnixMs  int64   `json:"ts_unix_ms"`
}

// Publisher writes ledger events to kafka. A nil Publisher is valid and
// drops every event, so callers never have to branch on whether messaging
// is configured.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(brokers, topic string, logger *zap.Logger) *Publisher {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		logger.Info("kafka brokers not configured, ledger events disabled")
		return nil
	}

	addrs := strings.Split(brokers, ",")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka ledger event publisher ready",
		zap.String("topic", topic),
		zap.Strings("brokers", addrs))
	return &Publisher{writer: w, logger: logger}
}

// Publish emits one event keyed by account id. Failures are logged and
// swallowed; money movement never depends on the broker.
func (p *Publisher) Publish(ctx context.Context, ev LedgerEvent) {
	if p == nil || p.writer == nil {
		return
	}
	if ev.TsUnixMs == 0 {
		ev.TsUnixMs = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal ledger event", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AccountID),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("publish ledger event",
			zap.String("event", ev.Event),
			zap.String("reference", ev.Reference),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
