// Copyright 2024-2026 Aiku AI

// Package database implements the bridge's persistence boundary: the
// message-ID correlation store, the expiring key-value cache, and the pipe
// routing table. Converters and senders only ever touch storage through the
// query types defined here.
package database

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
)

// ErrUnavailable wraps any failure to reach the backing store. A correlation
// or cache miss is not an error and is never reported through this.
var ErrUnavailable = errors.New("storage unavailable")

// Database bundles the bridge's three stores on top of one shared
// dbutil.Database. Each store operation acquires and releases its own
// transaction; no locks are held across I/O.
type Database struct {
	*dbutil.Database

	MsgID *MsgIDQuery
	KV    *KVCacheQuery
	Pipe  *PipeQuery
}

// UpgradeTable holds the schema migrations for the bridge tables.
var UpgradeTable dbutil.UpgradeTable

func init() {
	UpgradeTable.Register(-1, 1, 0, "Latest revision", dbutil.TxnModeOn, upgradeV1)
}

func upgradeV1(ctx context.Context, db *dbutil.Database) error {
	for _, stmt := range []string{
		`CREATE TABLE msg_id_cache (
			src_adapter TEXT    NOT NULL,
			src_id      TEXT    NOT NULL,
			dst_adapter TEXT    NOT NULL,
			dst_id      TEXT    NOT NULL,
			created_at  BIGINT  NOT NULL,
			PRIMARY KEY (src_adapter, src_id, dst_adapter, dst_id)
		)`,
		`CREATE TABLE kv_cache (
			adapter        TEXT   NOT NULL,
			cache_key      TEXT   NOT NULL,
			cache_value    TEXT   NOT NULL,
			created_at     BIGINT NOT NULL,
			expire_seconds BIGINT NOT NULL,
			PRIMARY KEY (adapter, cache_key)
		)`,
		`CREATE TABLE pipe (
			listen_key  BIGINT NOT NULL,
			target_key  BIGINT NOT NULL,
			listen_json TEXT   NOT NULL,
			target_json TEXT   NOT NULL,
			PRIMARY KEY (listen_key, target_key)
		)`,
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// New wraps an existing dbutil.Database with the bridge query types.
func New(db *dbutil.Database) *Database {
	db.UpgradeTable = UpgradeTable
	db.VersionTable = "pipebridge_version"
	return &Database{
		Database: db,
		MsgID:    &MsgIDQuery{db: db},
		KV:       newKVCacheQuery(db),
		Pipe:     &PipeQuery{db: db},
	}
}

// NewWithDialect opens a database at the given URI ("sqlite3" or "postgres"
// dialect) and attaches the bridge query types.
func NewWithDialect(uri, dialect string, log zerolog.Logger) (*Database, error) {
	db, err := dbutil.NewWithDialect(uri, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.Log = dbutil.ZeroLogger(log)
	return New(db), nil
}

// Upgrade runs pending schema migrations.
func (db *Database) Upgrade(ctx context.Context) error {
	if err := db.Database.Upgrade(ctx); err != nil {
		return fmt.Errorf("failed to upgrade database: %w", err)
	}
	return nil
}
