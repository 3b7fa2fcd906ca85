package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Freeeeeet/lab_reservations/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPAuditPublisher публикует события журнала в topic exchange RabbitMQ.
// Ключ маршрутизации совпадает с действием (reservation.cancelled и т.п.).
type AMQPAuditPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
	logger   *zap.Logger
}

// NewAMQPAuditPublisher подключается к брокеру и объявляет exchange
func NewAMQPAuditPublisher(url, exchange string, logger *zap.Logger) (*AMQPAuditPublisher, error) {
	p := &AMQPAuditPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
	}

	if err := p.ensureConnection(); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureConnection переподключается, если соединение закрыто. Вызывать под mu.
func (p *AMQPAuditPublisher) ensureConnection() error {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.channel = ch
	p.logger.Info("Connected to audit exchange", zap.String("exchange", p.exchange))
	return nil
}

// EmitAuditEvent публикует событие
func (p *AMQPAuditPublisher) EmitAuditEvent(ctx context.Context, event service.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnection(); err != nil {
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		event.Action,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}

	return nil
}

// Close закрывает канал и соединение
func (p *AMQPAuditPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil && !p.channel.IsClosed() {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
