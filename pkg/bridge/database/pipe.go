// Copyright 2024-2026 Aiku AI

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mau.fi/util/dbutil"

	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Pipe is one routing edge: messages seen on Listen are relayed to Target.
type Pipe struct {
	Listen ident.Target
	Target ident.Target
}

// PipeQuery persists the pipe routing table. Rows are keyed by the 31-bit
// target keys so lookups stay integer comparisons; the full targets are kept
// as JSON alongside.
type PipeQuery struct {
	db *dbutil.Database
}

const (
	insertPipeQuery = `
		INSERT INTO pipe (listen_key, target_key, listen_json, target_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listen_key, target_key) DO UPDATE
			SET listen_json=excluded.listen_json, target_json=excluded.target_json
	`
	deletePipeQuery       = `DELETE FROM pipe WHERE listen_key=$1 AND target_key=$2`
	getPipesByListenQuery = `SELECT listen_json, target_json FROM pipe WHERE listen_key=$1`
	getPipesByTargetQuery = `SELECT listen_json, target_json FROM pipe WHERE target_key=$1`
)

// Create adds a pipe from listen to target. Re-creating an existing pipe
// refreshes its stored targets, so config seeding is idempotent.
func (q *PipeQuery) Create(ctx context.Context, listen, target ident.Target) error {
	listenJSON, err := json.Marshal(listen)
	if err != nil {
		return fmt.Errorf("failed to marshal listen target: %w", err)
	}
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to marshal target: %w", err)
	}
	_, err = q.db.Exec(ctx, insertPipeQuery, listen.Key(), target.Key(), listenJSON, targetJSON)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the pipe between the given pair, if any.
func (q *PipeQuery) Delete(ctx context.Context, pipe Pipe) error {
	_, err := q.db.Exec(ctx, deletePipeQuery, pipe.Listen.Key(), pipe.Target.Key())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// GetByListen returns all pipes whose listen side matches the given target.
func (q *PipeQuery) GetByListen(ctx context.Context, listen ident.Target) ([]Pipe, error) {
	return q.query(ctx, getPipesByListenQuery, listen.Key())
}

// GetByTarget returns all pipes whose destination side matches the given target.
func (q *PipeQuery) GetByTarget(ctx context.Context, target ident.Target) ([]Pipe, error) {
	return q.query(ctx, getPipesByTargetQuery, target.Key())
}

// GetLinked returns both directions for one chat: the pipes listening on it
// and the pipes delivering into it.
func (q *PipeQuery) GetLinked(ctx context.Context, chat ident.Target) (listen, target []Pipe, err error) {
	listen, err = q.GetByListen(ctx, chat)
	if err != nil {
		return nil, nil, err
	}
	target, err = q.GetByTarget(ctx, chat)
	if err != nil {
		return nil, nil, err
	}
	return listen, target, nil
}

func (q *PipeQuery) query(ctx context.Context, query string, key int64) ([]Pipe, error) {
	rows, err := q.db.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var pipes []Pipe
	for rows.Next() {
		var listenJSON, targetJSON []byte
		if err := rows.Scan(&listenJSON, &targetJSON); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		var pipe Pipe
		if err := json.Unmarshal(listenJSON, &pipe.Listen); err != nil {
			return nil, fmt.Errorf("failed to unmarshal listen target: %w", err)
		}
		if err := json.Unmarshal(targetJSON, &pipe.Target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target: %w", err)
		}
		pipes = append(pipes, pipe)
	}
	return pipes, rows.Err()
}
