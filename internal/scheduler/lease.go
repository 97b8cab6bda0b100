package scheduler

import (
	"context"
	"time"

	"cdr-service/pkg/utils"

	"github.com/google/uuid"
)

// RedisLease lets one process at a time run a task when several instances share a
// database. Each RedisLease owns a random token, so it only releases its own leases.
type RedisLease struct {
	rdb    utils.LeaseClient
	prefix string
	token  string
}

func NewRedisLease(rdb utils.LeaseClient, prefix string) *RedisLease {
	if prefix == "" {
		prefix = "cdr:task:"
	}
	return &RedisLease{rdb: rdb, prefix: prefix, token: uuid.NewString()}
}

func (l *RedisLease) Acquire(ctx context.Context, task string, ttl time.Duration) (bool, error) {
	return utils.AcquireLease(ctx, l.rdb, l.prefix+task, l.token, ttl)
}

func (l *RedisLease) Release(ctx context.Context, task string) error {
	_, err := utils.ReleaseLease(ctx, l.rdb, l.prefix+task, l.token)
	return err
}
