package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mehtaarjun/shopsphere-backend/pkg/redis"
)

const provider = "razorpay"

// DedupGuard claims webhook event ids in redis so each delivery is processed
// once. The TTL bounds the dedup window; the gateway stops retrying long
// before it expires.
type DedupGuard struct {
	store redis.DedupStore
	ttl   time.Duration
}

func NewDedupGuard(store redis.DedupStore, ttl time.Duration) (*DedupGuard, error) {
	if store == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &DedupGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark claims the event id. It returns true when the event was
// already seen.
func (g *DedupGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.WebhookEventKey(provider, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return !set, nil
}

// Release frees the claim so a failed delivery can be retried by the gateway.
func (g *DedupGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(provider, eventID))
}
