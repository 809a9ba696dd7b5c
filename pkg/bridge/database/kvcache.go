// Copyright 2024-2026 Aiku AI

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/util/dbutil"
)

// NoExpiry is the TTL sentinel for entries that never expire.
const NoExpiry time.Duration = -1

// DefaultTTL matches the original cache behavior: entries live one week
// unless the caller says otherwise.
const DefaultTTL = 7 * 24 * time.Hour

// KVCacheQuery is a per-adapter expiring string cache. Expiry is passive:
// nothing sweeps the table in the background, Get simply treats entries past
// their TTL as absent (and drops them lazily).
type KVCacheQuery struct {
	db *dbutil.Database

	locksLock sync.Mutex
	locks     map[string]*keyLock
}

func newKVCacheQuery(db *dbutil.Database) *KVCacheQuery {
	return &KVCacheQuery{db: db, locks: make(map[string]*keyLock)}
}

type keyLock struct {
	sync.Mutex
	refs int
}

// lockKey serializes writers of one (adapter, key) pair without blocking
// writers of other pairs. The returned func releases the lock and frees the
// slot once the last holder is gone.
func (q *KVCacheQuery) lockKey(adapter, key string) func() {
	slot := adapter + "\x00" + key

	q.locksLock.Lock()
	kl, ok := q.locks[slot]
	if !ok {
		kl = &keyLock{}
		q.locks[slot] = kl
	}
	kl.refs++
	q.locksLock.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		q.locksLock.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(q.locks, slot)
		}
		q.locksLock.Unlock()
	}
}

const (
	upsertKVQuery = `
		INSERT INTO kv_cache (adapter, cache_key, cache_value, created_at, expire_seconds)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (adapter, cache_key) DO UPDATE
			SET cache_value=excluded.cache_value,
			    created_at=excluded.created_at,
			    expire_seconds=excluded.expire_seconds
	`
	getKVQuery = `
		SELECT cache_value, created_at, expire_seconds FROM kv_cache
		WHERE adapter=$1 AND cache_key=$2
	`
	deleteExpiredKVQuery = `
		DELETE FROM kv_cache WHERE adapter=$1 AND cache_key=$2 AND created_at=$3
	`
)

// Set stores value under (adapter, key), atomically superseding any prior
// entry. Pass NoExpiry as ttl for an entry that never expires.
func (q *KVCacheQuery) Set(ctx context.Context, adapter, key, value string, ttl time.Duration) error {
	if adapter == "" || key == "" {
		return fmt.Errorf("kv cache: adapter and key must be non-empty")
	}

	expire := int64(NoExpiry)
	if ttl >= 0 {
		expire = int64(ttl / time.Second)
	}

	unlock := q.lockKey(adapter, key)
	defer unlock()

	_, err := q.db.Exec(ctx, upsertKVQuery, adapter, key, value, time.Now().Unix(), expire)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the live value for (adapter, key). A key that was never set
// and a key whose TTL has elapsed are indistinguishable: both report
// ok=false.
func (q *KVCacheQuery) Get(ctx context.Context, adapter, key string) (value string, ok bool, err error) {
	var createdAt, expire int64
	err = q.db.QueryRow(ctx, getKVQuery, adapter, key).Scan(&value, &createdAt, &expire)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if expire >= 0 && time.Now().Unix() >= createdAt+expire {
		// Lazy purge. The created_at guard keeps a concurrent overwrite
		// alive: only the row we just read is dropped.
		_, _ = q.db.Exec(ctx, deleteExpiredKVQuery, adapter, key, createdAt)
		return "", false, nil
	}
	return value, true, nil
}
