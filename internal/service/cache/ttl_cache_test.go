package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewTTLCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	buf := []byte("v1")
	if err := c.SetBytes(ctx, "k", buf, time.Minute); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	buf[0] = 'x'
	if err := c.SetBytes(ctx, "forever", []byte("f"), 0); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}

	got, ok, err := c.GetBytes(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("GetBytes = %q %v %v", got, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatalf("expired entry returned")
	}
	if _, ok, _ := c.GetBytes(ctx, "forever"); !ok {
		t.Fatalf("entry without ttl expired")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want expired entry evicted", c.Len())
	}
	if _, ok, err := c.GetBytes(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss = %v %v", ok, err)
	}
}
