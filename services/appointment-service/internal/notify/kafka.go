package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits one event per notice on "<prefix>appointments.<kind>.v1", keyed by appointment id.
type KafkaPublisher struct {
	w      MessageWriter
	prefix string
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

func NewKafkaPublisher(w MessageWriter, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{w: w, prefix: topicPrefix}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Topic(kind Kind) string {
	return p.prefix + "appointments." + string(kind) + ".v1"
}

type appointmentEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	AppointmentID string    `json:"appointment_id"`
	TenantID      string    `json:"tenant_id"`
	CustomerID    string    `json:"customer_id"`
	StaffID       string    `json:"staff_id"`
	ServiceID     string    `json:"service_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	CancelReason  string    `json:"cancel_reason,omitempty"`
	CancelledBy   string    `json:"cancelled_by,omitempty"`
	Traceparent   string    `json:"traceparent,omitempty"`
}

func (p *KafkaPublisher) Dispatch(ctx context.Context, n Notice) error {
	a := n.Appointment
	topic := p.Topic(n.Kind)
	evt := appointmentEvent{
		EventID:       uuid.NewString(),
		EventType:     topic,
		OccurredAt:    n.OccurredAt,
		AppointmentID: a.ID,
		TenantID:      a.TenantID,
		CustomerID:    a.CustomerID,
		StaffID:       a.StaffID,
		ServiceID:     a.ServiceID,
		StartTime:     a.StartTime.UTC(),
		EndTime:       a.EndTime.UTC(),
		Status:        string(a.Status),
		CancelReason:  a.CancelledReason,
		CancelledBy:   a.CancelledBy,
		Traceparent:   otelx.Traceparent(ctx),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	meta := kafkax.EventMeta{EventID: evt.EventID, EventType: topic, TenantID: a.TenantID}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(a.ID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
