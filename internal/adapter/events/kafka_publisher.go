// Package events publishes purchase lifecycle events to Kafka. The
// reconciliation topic is the out-of-band channel for compensation failures,
// where a stock unit was decremented with no order on record.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/bazar-store/bazar/internal/core/domain"
)

type KafkaPublisher struct {
	orders         *kafka.Writer
	reconciliation *kafka.Writer
	log            zerolog.Logger
}

func NewKafkaPublisher(brokers []string, orderTopic, reconciliationTopic string, log zerolog.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return &KafkaPublisher{
		orders:         newWriter(orderTopic),
		reconciliation: newWriter(reconciliationTopic),
		log:            log,
	}
}

type orderPlacedEvent struct {
	OrderID   string    `json:"order_id"`
	ItemID    int       `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}

type reconciliationEvent struct {
	ItemID   int       `json:"item_id"`
	OrderID  string    `json:"order_id"`
	Quantity int       `json:"quantity"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (p *KafkaPublisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(orderPlacedEvent{
		OrderID:   order.OrderID,
		ItemID:    order.ItemID,
		Timestamp: order.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	err = p.orders.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.OrderID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) ReconciliationRequired(ctx context.Context, itemID int, orderID, reason string) error {
	payload, err := json.Marshal(reconciliationEvent{
		ItemID:   itemID,
		OrderID:  orderID,
		Quantity: 1,
		Reason:   reason,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode reconciliation event: %w", err)
	}

	err = p.reconciliation.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish reconciliation event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.orders.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close order writer")
	}
	return p.reconciliation.Close()
}
