package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Reads check Redis first and fall back to the primary; a successful
// conditional put writes the new document through to the cache, and a
// conflict deletes the cached entry so the retrying caller's next read
// reaches the primary rather than looping on a stale revision.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Get(ctx context.Context, userID string) (*model.Ledger, error) {
	data, err := s.rdb.Get(ctx, ledgerKey(userID)).Bytes()
	if err == nil {
		var l model.Ledger
		if json.Unmarshal(data, &l) == nil {
			return &l, nil
		}
	}

	// Cache miss: read from primary.
	l, err := s.primary.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheLedger(ctx, l)
	return l, nil
}

func (s *CachedStore) Create(ctx context.Context, l *model.Ledger) error {
	if err := s.primary.Create(ctx, l); err != nil {
		return err
	}
	s.cacheLedger(ctx, l)
	return nil
}

func (s *CachedStore) ConditionalPut(ctx context.Context, l *model.Ledger, expectedRevision int64) error {
	err := s.primary.ConditionalPut(ctx, l, expectedRevision)
	switch err {
	case nil:
		s.cacheLedger(ctx, l)
		return nil
	case ErrRevisionConflict:
		// Cached copy is stale; drop it so the retry re-reads fresh state.
		s.rdb.Del(ctx, ledgerKey(l.UserID))
		return err
	default:
		return err
	}
}

func (s *CachedStore) cacheLedger(ctx context.Context, l *model.Ledger) {
	if data, err := json.Marshal(l); err == nil {
		s.rdb.Set(ctx, ledgerKey(l.UserID), data, s.ttl)
	}
}

func ledgerKey(userID string) string { return fmt.Sprintf("ledger:%s", userID) }
