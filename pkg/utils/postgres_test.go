package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 10 || c.MaxIdleConns != 5 {
		t.Fatalf("unexpected pool sizes: open=%d idle=%d", c.MaxOpenConns, c.MaxIdleConns)
	}
	if c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout %s", c.PingTimeout)
	}
}

func TestPostgresPoolKeepsExplicitValues(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}.withDefaults()
	if c.MaxOpenConns != 3 || c.MaxIdleConns != 1 || c.ConnMaxLifetime != time.Minute {
		t.Fatalf("explicit values overwritten: %+v", c)
	}
}

func TestBatchInsertChunks(t *testing.T) {
	got := Chunks(7, 3)
	want := [][2]int{{0, 3}, {3, 6}, {6, 7}}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if len(Chunks(0, 3)) != 0 {
		t.Fatalf("expected no chunks for empty input")
	}
}
