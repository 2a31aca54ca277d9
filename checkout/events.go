package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alovak/checkout-playground/checkout/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits settlement events once a confirmation reaches a terminal
// state. Publishing is best-effort: a broker outage never changes a payment
// outcome.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
		},
	}
}

// SettlementEvent is the message published per settled checkout. EventID is
// unique per publish so consumers can deduplicate redeliveries.
type SettlementEvent struct {
	EventID              string    `json:"event_id"`
	OrderID              string    `json:"order_id"`
	ReservationID        string    `json:"reservation_id,omitempty"`
	Amount               int64     `json:"amount"`
	Status               string    `json:"status"`
	State                string    `json:"state"`
	ReservationCompleted bool      `json:"reservation_completed"`
	SettledAt            time.Time `json:"settled_at"`
}

func (p *Publisher) PublishSettlement(ctx context.Context, result models.ConfirmationResult, state string) error {
	event := SettlementEvent{
		EventID:              uuid.New().String(),
		OrderID:              result.OrderID,
		ReservationID:        result.ReservationID,
		Amount:               result.Amount,
		Status:               result.Status,
		State:                state,
		ReservationCompleted: result.ReservationCompleted,
		SettledAt:            time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.OrderID),
		Value: payload,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
