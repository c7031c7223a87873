package redis

import (
	"context"
	"testing"
)

func TestStorePing(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewStore(client)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}
	mr.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("Ping() on a closed server should fail")
	}
}

func TestFlushLinksKeepsOtherKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewStore(client)

	for _, code := range []string{"abc123", "promo", "x_y-z"} {
		mr.Set(LinkKey(code), "{}")
	}
	mr.Set(LinkKey("gone"), tombstone)
	mr.Set(RateLimitKey("10.0.0.1"), "3")
	mr.Set("unrelated", "v")

	n, err := s.FlushLinks(context.Background())
	if err != nil {
		t.Fatalf("FlushLinks() = %v", err)
	}
	if n != 4 {
		t.Fatalf("deleted %d keys, want 4", n)
	}
	if mr.Exists(LinkKey("abc123")) {
		t.Error("cached link survived flush")
	}
	if !mr.Exists(RateLimitKey("10.0.0.1")) || !mr.Exists("unrelated") {
		t.Error("flush removed keys outside the link prefix")
	}

	if n, err := s.FlushLinks(context.Background()); err != nil || n != 0 {
		t.Fatalf("second FlushLinks() = %d, %v", n, err)
	}
}
