package publisher

import (
	"context"
	"errors"
	"fmt"

	"cdr-service/internal/calls"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldRoutingKey = "routing_key"
	fieldPayload    = "payload"
	fieldCount      = "count"
	fieldMessageID  = "message_id"
)

// StreamAdder is the part of a Redis client the stream publisher uses.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamPublisher appends each batch as one entry of the stream named by
// destination. When maxLen > 0 the stream is trimmed approximately to that length.
type RedisStreamPublisher struct {
	rdb    StreamAdder
	enc    *Encoder
	maxLen int64
}

func NewRedisStreamPublisher(rdb StreamAdder, enc *Encoder, maxLen int64) (*RedisStreamPublisher, error) {
	if rdb == nil {
		return nil, errors.New("publisher: redis client is nil")
	}
	return &RedisStreamPublisher{rdb: rdb, enc: enc, maxLen: maxLen}, nil
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, destination, routingKey string, batch []calls.Transport) error {
	if destination == "" {
		return errors.New("publisher: stream name is required")
	}
	body, err := p.enc.Encode(batch)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: destination,
		Values: map[string]interface{}{
			fieldRoutingKey: routingKey,
			fieldPayload:    body,
			fieldCount:      len(batch),
			fieldMessageID:  uuid.NewString(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publisher: xadd %s: %w", destination, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisStreamPublisher) Close() error { return nil }
