// Package events publishes appointment lifecycle events to RabbitMQ.
// Publishing is fire-and-forget from the caller's point of view: failures
// are logged by the caller and never fail the request that produced them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const QueueAppointmentEvents = "appointment.events"

type Type string

const (
	AppointmentRequested Type = "appointment.requested"
	AppointmentAccepted  Type = "appointment.accepted"
	AppointmentRejected  Type = "appointment.rejected"
	AppointmentModified  Type = "appointment.modified"
	AppointmentDeleted   Type = "appointment.deleted"
	AppointmentRated     Type = "appointment.rated"
)

type AppointmentEvent struct {
	Type          Type      `json:"type"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	StudentID     uuid.UUID `json:"studentId"`
	TutorID       uuid.UUID `json:"tutorId"`
	ActorID       uuid.UUID `json:"actorId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Score         *int      `json:"score,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt AppointmentEvent) error
}

// NopPublisher drops every event. Used when RABBITMQ_URL is not set.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AppointmentEvent) error { return nil }

// AMQPPublisher keeps one connection and channel open and publishes
// persistent JSON messages to a durable queue on the default exchange.
type AMQPPublisher struct {
	log   *logger.Logger
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log *logger.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		QueueAppointmentEvents,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return &AMQPPublisher{
		log:   log.With("service", "EventPublisher"),
		queue: QueueAppointmentEvents,
		conn:  conn,
		ch:    ch,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt AppointmentEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Type:         string(evt.Type),
		MessageId:    uuid.NewString(),
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debug("event published", "type", evt.Type, "appointment_id", evt.AppointmentID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
