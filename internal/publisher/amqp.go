package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cdr-service/internal/calls"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig describes the broker topology. Dead-letter names are derived by appending
// the postfixes to the main exchange, queue and routing key.
type AMQPConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string

	DeadLetterExchangePostfix   string
	DeadLetterQueuePostfix      string
	DeadLetterRoutingKeyPostfix string
}

type exchangeDecl struct {
	Name string
	Kind string
}

type queueDecl struct {
	Name string
	Args amqp.Table
}

type bindingDecl struct {
	Queue, Exchange, Key string
}

// Topology is the set of declarations applied on connect.
type Topology struct {
	Exchanges []exchangeDecl
	Queues    []queueDecl
	Bindings  []bindingDecl
}

func (c AMQPConfig) Topology() Topology {
	dlx := c.Exchange + c.DeadLetterExchangePostfix
	dlq := c.Queue + c.DeadLetterQueuePostfix
	dlKey := c.RoutingKey + c.DeadLetterRoutingKeyPostfix

	return Topology{
		Exchanges: []exchangeDecl{
			{Name: c.Exchange, Kind: amqp.ExchangeDirect},
			{Name: dlx, Kind: amqp.ExchangeDirect},
		},
		Queues: []queueDecl{
			{Name: c.Queue, Args: amqp.Table{
				"x-dead-letter-exchange":    dlx,
				"x-dead-letter-routing-key": dlKey,
			}},
			{Name: dlq},
		},
		Bindings: []bindingDecl{
			{Queue: c.Queue, Exchange: c.Exchange, Key: c.RoutingKey},
			{Queue: dlq, Exchange: dlx, Key: dlKey},
		},
	}
}

// AMQPPublisher publishes JSON batches over one channel and redials when the channel
// or connection has been closed by the broker.
type AMQPPublisher struct {
	cfg AMQPConfig
	enc *Encoder
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(cfg AMQPConfig, enc *Encoder, log *slog.Logger) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("publisher: amqp url is required")
	}
	if log == nil {
		log = slog.Default()
	}
	p := &AMQPPublisher{cfg: cfg, enc: enc, log: log}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("publisher: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("publisher: amqp channel: %w", err)
	}
	if err := declare(ch, p.cfg.Topology()); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	p.log.Info("amqp publisher connected", "exchange", p.cfg.Exchange, "queue", p.cfg.Queue)
	return nil
}

func declare(ch *amqp.Channel, t Topology) error {
	for _, e := range t.Exchanges {
		if err := ch.ExchangeDeclare(e.Name, e.Kind, false, false, false, false, nil); err != nil {
			return fmt.Errorf("publisher: declare exchange %s: %w", e.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, q.Args); err != nil {
			return fmt.Errorf("publisher: declare queue %s: %w", q.Name, err)
		}
	}
	for _, b := range t.Bindings {
		if err := ch.QueueBind(b.Queue, b.Key, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("publisher: bind %s to %s: %w", b.Queue, b.Exchange, err)
		}
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, destination, routingKey string, batch []calls.Transport) error {
	body, err := p.enc.Encode(batch)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, destination, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publisher: amqp publish to %s/%s: %w", destination, routingKey, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
