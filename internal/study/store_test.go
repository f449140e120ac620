package study

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/focus-backend/internal/shared"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func TestStore_CreateAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession()

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ttl := mr.TTL(sess.RedisKey()); ttl != sessionTTL {
		t.Errorf("expected TTL %v, got %v", sessionTTL, ttl)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || got.Subject != "math" || got.Status != StatusActive {
		t.Errorf("unexpected session %+v", got)
	}

	if err := store.Create(ctx, sess); !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected conflict on duplicate id, got %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetCorrupt(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set(sessionKey("bad"), "{not json")
	if _, err := store.Get(context.Background(), "bad"); err == nil {
		t.Error("expected decode error")
	}
}

func TestStore_Mutate(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession()
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.Mutate(ctx, sess.ID, func(s *Session) error {
		return s.Pause(t0.Add(time.Minute))
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if updated.Status != StatusPaused {
		t.Errorf("expected paused, got %s", updated.Status)
	}

	got, _ := store.Get(ctx, sess.ID)
	if got.Status != StatusPaused {
		t.Errorf("mutation not persisted, got %s", got.Status)
	}
	if ttl := mr.TTL(sess.RedisKey()); ttl <= 0 {
		t.Errorf("mutation should keep the TTL, got %v", ttl)
	}
}

func TestStore_MutateErrors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Mutate(ctx, "missing", func(*Session) error { return nil }); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	sess := newTestSession()
	_ = store.Create(ctx, sess)
	_, err := store.Mutate(ctx, sess.ID, func(s *Session) error {
		s.Subject = "changed"
		return s.Resume(t0)
	})
	if !errors.Is(err, shared.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	got, _ := store.Get(ctx, sess.ID)
	if got.Subject != "math" {
		t.Error("failed mutation must not be written")
	}
}

func TestStore_MutateUnchangedSkipsWrite(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession()
	_ = store.Create(ctx, sess)
	before, _ := mr.Get(sess.RedisKey())

	got, err := store.Mutate(ctx, sess.ID, func(s *Session) error {
		s.Subject = "ignored"
		return errUnchanged
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session back")
	}
	after, _ := mr.Get(sess.RedisKey())
	if before != after {
		t.Error("unchanged mutation should not write")
	}
}

func TestStore_MutateConcurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession()
	_ = store.Create(ctx, sess)

	const writers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded int
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mutate(ctx, sess.ID, func(s *Session) error {
				s.RequestHelp(t0)
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, sess.ID)
	if got.Stats.HelpRequests != int64(succeeded) {
		t.Errorf("lost update: %d successful writes, %d recorded", succeeded, got.Stats.HelpRequests)
	}
}

func TestStore_Delete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession()
	_ = store.Create(ctx, sess)

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists(sess.RedisKey()) {
		t.Error("key should be gone")
	}
}
