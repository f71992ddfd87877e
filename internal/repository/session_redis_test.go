package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreForTest(t *testing.T) (*miniredis.Miniredis, *RedisSessionStore) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, NewRedisSessionStore(client, "session_test")
}

func TestRedisStoreCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStoreForTest(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := newSession("abc", now, now.Add(time.Hour))
	sess.Picture = "https://example.com/p.png"
	sess.IPHash = "aabbccddeeff0011"
	sess.UAHash = "1100ffeeddccbbaa"

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != sess.ID || got.UserID != sess.UserID || got.Email != sess.Email ||
		got.Name != sess.Name || got.Picture != sess.Picture ||
		got.IPHash != sess.IPHash || got.UAHash != sess.UAHash {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, sess)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) || !got.LastActive.Equal(sess.LastActive) || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("timestamp mismatch: got %+v want %+v", got, sess)
	}
}

func TestRedisStoreGetMissing(t *testing.T) {
	_, store := newRedisStoreForTest(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreUpdateLastActive(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStoreForTest(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := newSession("abc", now, now.Add(time.Hour))
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := now.Add(15 * time.Minute)
	if err := store.UpdateLastActive(ctx, "abc", later); err != nil {
		t.Fatalf("update last_active: %v", err)
	}
	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActive.Equal(later) {
		t.Fatalf("last_active not updated: got %v want %v", got.LastActive, later)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatal("expires_at must not move on touch")
	}

	if err := store.UpdateLastActive(ctx, "missing", later); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStoreForTest(t)

	now := time.Now().UTC()
	if err := store.Create(ctx, newSession("abc", now, now.Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := store.Delete(ctx, "abc")
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "abc")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestRedisStoreSweepBoundedBatches(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStoreForTest(t)

	now := time.Now().UTC()
	cutoff := now.Add(-7 * 24 * time.Hour)
	for i := 0; i < 5; i++ {
		s := newSession(fmt.Sprintf("stale%02d", i), cutoff.Add(-time.Duration(i+1)*time.Hour), now.Add(24*time.Hour))
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("create stale: %v", err)
		}
	}
	fresh := newSession("fresh", now, now.Add(time.Hour))
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	deleted, err := store.DeleteInactiveBefore(ctx, cutoff, 2)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("expected 5 deleted, got %d", deleted)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh session should survive sweep: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := store.Get(ctx, fmt.Sprintf("stale%02d", i)); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected stale%02d removed, got %v", i, err)
		}
	}

	// Second sweep finds nothing.
	deleted, err = store.DeleteInactiveBefore(ctx, cutoff, 2)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted on second sweep, got %d", deleted)
	}
}

func TestRedisStoreOverview(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStoreForTest(t)

	now := time.Now().UTC()
	if err := store.Create(ctx, newSession("live", now, now.Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newSession("dead", now, now.Add(-time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	ov, err := store.Overview(ctx, now)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Total != 2 || ov.Active != 1 || ov.Expired != 1 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
}

func TestRedisStorePingAfterClose(t *testing.T) {
	server, store := newRedisStoreForTest(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping healthy server: %v", err)
	}
	server.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail after server close")
	}
}
