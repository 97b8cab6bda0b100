package utils

import (
	"context"
	"testing"
	"time"
)

func TestLeaseScriptCompiles(t *testing.T) {
	if leaseReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestLeaseArgsValidated(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireLease(ctx, nil, "k", "tok", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := ReleaseLease(ctx, nil, "k", "tok"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 10 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: pool=%d ping=%s", c.PoolSize, c.PingTimeout)
	}
	if c.MinIdleConns != 0 {
		t.Fatalf("expected no idle conns by default, got %d", c.MinIdleConns)
	}
}
