package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotcal/libs/kafkax"
)

const ReminderDueEvent = "calendar.reminder.due.v1"

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher emits a reminder-due event for downstream consumers.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter, topic string) *KafkaPublisher {
	if topic == "" {
		topic = ReminderDueEvent
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

type reminderDuePayload struct {
	AppointmentID   string `json:"appointment_id"`
	Kind            string `json:"kind"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	ClientName      string `json:"client_name,omitempty"`
	ClientEmail     string `json:"client_email,omitempty"`
	ClientPhone     string `json:"client_phone,omitempty"`
}

func (p *KafkaPublisher) Notify(ctx context.Context, r Reminder) error {
	msg, err := p.message(ctx, r)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) message(ctx context.Context, r Reminder) (kafka.Message, error) {
	payload, err := json.Marshal(reminderDuePayload{
		AppointmentID:   r.AppointmentID,
		Kind:            r.Kind,
		StartsAt:        r.StartsAt.UTC().Format(time.RFC3339),
		DurationMinutes: r.DurationMinutes,
		ClientName:      r.ClientName,
		ClientEmail:     r.ClientEmail,
		ClientPhone:     r.ClientPhone,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(r.AppointmentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: kafkax.HeaderEventType, Value: []byte(ReminderDueEvent)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return msg, nil
}
