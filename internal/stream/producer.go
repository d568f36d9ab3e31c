package stream

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"slothold/internal/domain"
)

// Event is the envelope published for every audit transition.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	ReservationID string          `json:"reservation_id"`
	Payload       json.RawMessage `json:"payload"`
}

const producerName = "reservation-engine"

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// PublishAuditEvent keys by reservation id so one reservation's transitions
// stay ordered within a partition.
func (p *Producer) PublishAuditEvent(ctx context.Context, e domain.AuditLogEntry) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("stream_marshal_failed action=%s err=%v", e.Action, err)
		return
	}
	evt := Event{
		EventID:       uuid.NewString(),
		EventType:     e.Action,
		OccurredAt:    e.CreatedAt,
		Producer:      producerName,
		ReservationID: e.ReservationID,
		Payload:       payload,
	}
	value, err := json.Marshal(evt)
	if err != nil {
		log.Printf("stream_marshal_failed action=%s err=%v", e.Action, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.ReservationID),
		Value: value,
		Time:  e.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("stream_publish_failed action=%s err=%v", e.Action, err)
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
