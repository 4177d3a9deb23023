package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/bet-ledger/internal/shared/kafka"
	"github.com/radieske/bet-ledger/pkg/contracts/events"
)

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetRefunded(ctx context.Context, e events.BetRefunded) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, e.BetID, e)
}

func (p *KafkaPublisher) PublishBalanceAdjusted(ctx context.Context, e events.BalanceAdjusted) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, e.Bookmaker, e)
}

func (p *KafkaPublisher) write(ctx context.Context, key string, v any) error {
	b, _ := json.Marshal(v)
	return skafka.WriteJSON(ctx, p.Writer, key, b)
}

// Noop é usado quando KAFKA_BROKERS não está configurado.
type Noop struct{}

func (Noop) PublishBetPlaced(context.Context, events.BetPlaced) error           { return nil }
func (Noop) PublishBetSettled(context.Context, events.BetSettled) error         { return nil }
func (Noop) PublishBetRefunded(context.Context, events.BetRefunded) error       { return nil }
func (Noop) PublishBalanceAdjusted(context.Context, events.BalanceAdjusted) error { return nil }
