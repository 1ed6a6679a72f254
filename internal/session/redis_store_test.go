package session

import (
	"context"
	"database/sql"
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
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url://"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestSaveAndLookupSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSession(ctx, "hash-1", "user-123", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	userID, err := store.LookupSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupSession failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
	if !s.Exists("admin-session:hash-1") {
		t.Error("expected prefixed key in redis")
	}
	if ttl := s.TTL("admin-session:hash-1"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSession(ctx, "hash-exp", "user-456", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	_, err := store.LookupSession(ctx, "hash-exp")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for expired session, got %v", err)
	}
}

func TestSaveSessionWithPastExpiryUsesDefault(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	if err := store.SaveSession(context.Background(), "hash-past", "user-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if ttl := s.TTL("admin-session:hash-past"); ttl != DefaultTTL {
		t.Errorf("expected default ttl, got %v", ttl)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	_, err := store.LookupSession(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestLookupCorruptSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	if err := s.Set("admin-session:broken", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.LookupSession(context.Background(), "broken"); err == nil {
		t.Error("expected error for corrupt payload")
	}
}

func TestRevokeSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSession(ctx, "hash-revoke", "user-789", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.RevokeSession(ctx, "hash-revoke"); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := store.LookupSession(ctx, "hash-revoke"); err == nil {
		t.Error("expected error for revoked session")
	}

	// Revoking twice is not an error.
	if err := store.RevokeSession(ctx, "hash-revoke"); err != nil {
		t.Errorf("second RevokeSession failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)
	if err := store.SaveSession(ctx, "token-1", "user-1", expiresAt); err != nil {
		t.Fatalf("SaveSession 1 failed: %v", err)
	}
	if err := store.SaveSession(ctx, "token-2", "user-2", expiresAt); err != nil {
		t.Fatalf("SaveSession 2 failed: %v", err)
	}
	if err := store.RevokeSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}

	if _, err := store.LookupSession(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1")
	}
	user2, err := store.LookupSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 failed: %v", err)
	}
	if user2 != "user-2" {
		t.Errorf("expected user-2, got %s", user2)
	}
}
