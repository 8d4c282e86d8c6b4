package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys published on the subscriber exchange.
const (
	SubscriberCreated       = "assinante.criado"
	SubscriberActivated     = "assinante.ativado"
	SubscriberRenewed       = "assinante.renovado"
	SubscriberSuspended     = "assinante.suspenso"
	SubscriberStatusChanged = "assinante.status_alterado"
	CredentialRotated       = "credencial.atualizada"
)

// Message is the body of every published event.
type Message struct {
	Email      string     `json:"email"`
	Status     string     `json:"status,omitempty"`
	Plan       string     `json:"plano,omitempty"`
	ExpiresAt  *time.Time `json:"data_expiracao,omitempty"`
	Source     string     `json:"origem,omitempty"`
	OccurredAt time.Time  `json:"ocorrido_em"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Close()
}

// EventProducer publishes JSON messages to one durable topic exchange.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *slog.Logger
}

func NewEventProducer(amqpURL, exchange string, log *slog.Logger) (*EventProducer, error) {
	const op = "events.NewEventProducer"

	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &EventProducer{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func (p *EventProducer) Publish(ctx context.Context, routingKey string, msg Message) error {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.OccurredAt,
		Body:         payload,
	}); err != nil {
		return err
	}

	p.log.Debug("event published", slog.String("exchange", p.exchange), slog.String("routing_key", routingKey))
	return nil
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Fallback is used when AMQP_URL is unset or the broker is down at startup.
type Fallback struct {
	Log *slog.Logger
}

func (f Fallback) Publish(_ context.Context, routingKey string, msg Message) error {
	if f.Log != nil {
		f.Log.Debug("event not published (no broker)", slog.String("routing_key", routingKey), slog.String("email", msg.Email))
	}
	return nil
}

func (Fallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// stray characters before the scheme come from badly quoted env files
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
