package newsletter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DebounceWindow is how long after a send further automated sends for the
// same event are suppressed. It exists to absorb rapid repeated status-update
// calls (double-click, optimistic-UI race), not to rate-limit distinct sends.
const DebounceWindow = 30 * time.Second

// DebounceGuard suppresses duplicate automated sends for one event inside
// the window. Claim returns true when the dispatch may proceed. Release gives
// a claim back when the dispatch failed before any email left, so a corrected
// retry is not suppressed for the rest of the window.
type DebounceGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

// RedisDebounce claims a per-event key with SETNX and a window TTL, so two
// concurrent dispatches for the same event cannot both pass the check.
type RedisDebounce struct {
	rdb    *redis.Client
	window time.Duration
}

// NewRedisDebounce creates a Redis-backed guard.
func NewRedisDebounce(rdb *redis.Client) *RedisDebounce {
	return &RedisDebounce{rdb: rdb, window: DebounceWindow}
}

func (d *RedisDebounce) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, debounceKey(eventID), 1, d.window).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (d *RedisDebounce) Release(ctx context.Context, eventID uuid.UUID) error {
	return d.rdb.Del(ctx, debounceKey(eventID)).Err()
}

func debounceKey(eventID uuid.UUID) string {
	return fmt.Sprintf("newsletter:debounce:%s", eventID)
}

// HistoryDebounce checks the email history table for a send inside the
// window. This mirrors the single-node behavior of reading the audit log and
// is used when Redis is not configured; the check-then-act is not atomic
// across connections.
type HistoryDebounce struct {
	store  *Store
	window time.Duration
}

// NewHistoryDebounce creates a database-backed guard.
func NewHistoryDebounce(store *Store) *HistoryDebounce {
	return &HistoryDebounce{store: store, window: DebounceWindow}
}

func (d *HistoryDebounce) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	recent, err := d.store.HasRecentSend(ctx, eventID, d.window)
	if err != nil {
		return false, err
	}
	return !recent, nil
}

// Release is a no-op: a failed dispatch wrote no history row, so there is
// nothing suppressing the retry.
func (d *HistoryDebounce) Release(ctx context.Context, eventID uuid.UUID) error {
	return nil
}
