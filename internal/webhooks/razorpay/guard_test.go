package razorpaywebhook

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDedupStore struct {
	keys   map[string]bool
	setErr error
}

func (f *fakeDedupStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeDedupStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeDedupStore) WebhookEventKey(provider, eventID string) string {
	return "ss:webhook:" + provider + ":" + eventID
}

func TestCheckAndMark(t *testing.T) {
	t.Parallel()

	guard, err := NewDedupGuard(&fakeDedupStore{}, time.Hour)
	if err != nil {
		t.Fatalf("NewDedupGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should claim: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("second delivery should be deduped: seen=%v err=%v", seen, err)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	t.Parallel()

	store := &fakeDedupStore{}
	guard, _ := NewDedupGuard(store, time.Hour)

	if _, err := guard.CheckAndMark(context.Background(), "evt_2"); err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if err := guard.Release(context.Background(), "evt_2"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "evt_2")
	if err != nil || seen {
		t.Fatalf("released event should be claimable again: seen=%v err=%v", seen, err)
	}
}

func TestCheckAndMarkPropagatesStoreError(t *testing.T) {
	t.Parallel()

	guard, _ := NewDedupGuard(&fakeDedupStore{setErr: errors.New("redis down")}, time.Hour)
	if _, err := guard.CheckAndMark(context.Background(), "evt_3"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestNewDedupGuardValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewDedupGuard(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewDedupGuard(&fakeDedupStore{}, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
