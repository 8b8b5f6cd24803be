package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSaveAndLookupSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "jti-1", "0xABCDEF", 11155111, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := store.Lookup(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if data.Address != "0xabcdef" {
		t.Errorf("expected lowercased address, got %s", data.Address)
	}
	if data.ChainID != 11155111 {
		t.Errorf("expected chain id 11155111, got %d", data.ChainID)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "short", "0x1", 1, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, err := store.Lookup(ctx, "short"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSaveWithPastExpiryUsesDefaultTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "past", "0x1", 1, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := s.TTL(store.key("past")); ttl != 24*time.Hour {
		t.Fatalf("expected default ttl, got %v", ttl)
	}
}

func TestRevokeSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "jti-2", "0x2", 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, "jti-2"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.Lookup(ctx, "jti-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}
	if err := store.Revoke(ctx, "unknown"); err != nil {
		t.Fatalf("revoking unknown session should succeed: %v", err)
	}
}
