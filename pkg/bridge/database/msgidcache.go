// Copyright 2024-2026 Aiku AI

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mau.fi/util/dbutil"
)

// MsgIDQuery persists the correlation between a message's ID on the source
// platform and the ID of its relayed copy on a destination platform. Records
// are append-only and never deleted; lookups resolve ambiguity by picking the
// most recently created record.
type MsgIDQuery struct {
	db *dbutil.Database
}

const (
	insertMsgIDQuery = `
		INSERT INTO msg_id_cache (src_adapter, src_id, dst_adapter, dst_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (src_adapter, src_id, dst_adapter, dst_id) DO NOTHING
	`
	lookupDstIDQuery = `
		SELECT dst_id FROM msg_id_cache
		WHERE src_adapter=$1 AND dst_adapter=$2 AND src_id=$3
		ORDER BY created_at DESC LIMIT 1
	`
	lookupSrcIDQuery = `
		SELECT src_id FROM msg_id_cache
		WHERE src_adapter=$1 AND dst_adapter=$2 AND dst_id=$3
		ORDER BY created_at DESC LIMIT 1
	`
)

// Record appends one correlation record. The conflict target is the full
// 4-tuple, so retrying the exact same relay is a no-op rather than an error.
// created_at is stored in nanoseconds: two relays of the same source message
// in the same second must still order correctly for most-recent-wins lookups.
func (q *MsgIDQuery) Record(ctx context.Context, srcAdapter, srcID, dstAdapter, dstID string) error {
	_, err := q.db.Exec(ctx, insertMsgIDQuery, srcAdapter, srcID, dstAdapter, dstID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// LookupDst returns the destination-side ID correlated with srcID, or ""
// when no threading information exists. A miss is not an error.
func (q *MsgIDQuery) LookupDst(ctx context.Context, srcAdapter, dstAdapter, srcID string) (string, error) {
	return q.lookup(ctx, lookupDstIDQuery, srcAdapter, dstAdapter, srcID)
}

// LookupSrc is the inverse direction: the source-side ID correlated with
// dstID, or "" on a miss.
func (q *MsgIDQuery) LookupSrc(ctx context.Context, srcAdapter, dstAdapter, dstID string) (string, error) {
	return q.lookup(ctx, lookupSrcIDQuery, srcAdapter, dstAdapter, dstID)
}

func (q *MsgIDQuery) lookup(ctx context.Context, query, srcAdapter, dstAdapter, knownID string) (string, error) {
	var id string
	err := q.db.QueryRow(ctx, query, srcAdapter, dstAdapter, knownID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return id, nil
}
