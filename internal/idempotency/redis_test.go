package idempotency

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) *RedisStore {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisClaimOnce(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	won, err := store.Claim(ctx, "event_evt1_u1_post_session_note")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !won {
		t.Fatal("first claim must succeed")
	}

	won, err = store.Claim(ctx, "event_evt1_u1_post_session_note")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if won {
		t.Fatal("second claim on the same key must lose")
	}
}

func TestRedisHasClaimed(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	claimed, err := store.HasClaimed(ctx, "conversation_c1_u1_long_gap_alert")
	if err != nil {
		t.Fatalf("HasClaimed failed: %v", err)
	}
	if claimed {
		t.Error("unclaimed key must report false")
	}

	if _, err := store.Claim(ctx, "conversation_c1_u1_long_gap_alert"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	claimed, err = store.HasClaimed(ctx, "conversation_c1_u1_long_gap_alert")
	if err != nil {
		t.Fatalf("HasClaimed failed: %v", err)
	}
	if !claimed {
		t.Error("claimed key must report true")
	}
}

func TestRedisDistinctKeysIndependent(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{
		"event_evt1_u1_24h_before",
		"event_evt1_u2_24h_before",
		"task_t1_u1_task_due_today",
	} {
		won, err := store.Claim(ctx, key)
		if err != nil {
			t.Fatalf("Claim(%s) failed: %v", key, err)
		}
		if !won {
			t.Errorf("distinct key %s must claim independently", key)
		}
	}
}

func TestRedisKeysAreNamespaced(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Claim(ctx, "event_evt1_u1_24h_before"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !s.Exists("nudge:claim:event_evt1_u1_24h_before") {
		t.Error("claim should be stored under the nudge:claim: prefix")
	}
}

func TestRedisPing(t *testing.T) {
	store := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
