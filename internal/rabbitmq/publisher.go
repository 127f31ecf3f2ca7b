package rabbitmq

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"dm-service/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher publishes audit and domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher or a noop publisher when AMQP is disabled.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		log.Info().Msg("rabbitmq disabled, using noop: empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	log.Info().Str("exchange", exchange).Msg("rabbitmq connected")
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	table := amqp.Table{}
	for key, value := range headers {
		table[key] = value
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		log.Warn().Err(err).Str("routing_key", routingKey).Msg("rabbitmq publish failed")
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return n.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (noopPublisher) PublishWithHeaders(_ context.Context, routingKey string, event any, headers map[string]string) error {
	entry := log.Debug().Str("routing_key", routingKey).Str("request_id", headers["x-request-id"])
	switch envelope := event.(type) {
	case telemetry.AuditEnvelope:
		entry = entry.Str("event_type", envelope.EventType).Str("service", envelope.Service)
	case *telemetry.AuditEnvelope:
		entry = entry.Str("event_type", envelope.EventType).Str("service", envelope.Service)
	}
	entry.Msg("rabbitmq noop publish")
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher, *noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	switch publisher := p.(type) {
	case noopPublisher:
		return publisher.reason
	case *noopPublisher:
		return publisher.reason
	default:
		return ""
	}
}
