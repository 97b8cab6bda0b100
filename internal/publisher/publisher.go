// Package publisher ships exported CDR batches to a message transport.
package publisher

import (
	"context"
	"fmt"

	"cdr-service/internal/calls"
)

// Publisher sends one batch as one message. destination is the AMQP exchange or the
// Redis stream name.
type Publisher interface {
	Publish(ctx context.Context, destination, routingKey string, batch []calls.Transport) error
	Close() error
}

const (
	KindAMQP  = "amqp"
	KindRedis = "redis"
)

// ErrUnknownKind is returned by factories for an unsupported transport name.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("publisher: unknown kind %q", string(e))
}
