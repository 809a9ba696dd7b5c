// Copyright 2024-2026 Aiku AI

package database

import (
	"context"
	"testing"
	"time"
)

func TestMsgIDRecordAndLookup(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.MsgID.Record(ctx, "OneBot V11", "1001", "Telegram", "200$telegram$42"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	dstID, err := db.MsgID.LookupDst(ctx, "OneBot V11", "Telegram", "1001")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if dstID != "200$telegram$42" {
		t.Errorf("LookupDst: got %q, want %q", dstID, "200$telegram$42")
	}

	srcID, err := db.MsgID.LookupSrc(ctx, "OneBot V11", "Telegram", "200$telegram$42")
	if err != nil {
		t.Fatalf("LookupSrc failed: %v", err)
	}
	if srcID != "1001" {
		t.Errorf("LookupSrc: got %q, want %q", srcID, "1001")
	}
}

func TestMsgIDLookupMiss(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	dstID, err := db.MsgID.LookupDst(ctx, "OneBot V11", "Telegram", "absent")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if dstID != "" {
		t.Errorf("LookupDst on miss: got %q, want empty", dstID)
	}
}

func TestMsgIDRecordIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := db.MsgID.Record(ctx, "Discord", "d1", "Matrix", "$ev1"); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	var count int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM msg_id_cache WHERE src_adapter=$1 AND src_id=$2`,
		"Discord", "d1").Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("duplicate Record created %d rows, want 1", count)
	}
}

func TestMsgIDMostRecentWins(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	// Two destination copies for the same source message, created a minute
	// apart. Inserted directly to control created_at.
	now := time.Now().UnixNano()
	for _, row := range []struct {
		dstID     string
		createdAt int64
	}{
		{"old-copy", now - int64(time.Minute)},
		{"new-copy", now},
	} {
		_, err := db.Exec(ctx, insertMsgIDQuery, "OneBot V11", "555", "Telegram", row.dstID, row.createdAt)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	dstID, err := db.MsgID.LookupDst(ctx, "OneBot V11", "Telegram", "555")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if dstID != "new-copy" {
		t.Errorf("LookupDst: got %q, want most recent %q", dstID, "new-copy")
	}
}

func TestMsgIDMostRecentWinsSameSecond(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	// A retried relay re-records the same source message within one second.
	// Nanosecond timestamps keep the copies ordered.
	now := time.Now().UnixNano()
	for _, row := range []struct {
		dstID     string
		createdAt int64
	}{
		{"first-copy", now},
		{"second-copy", now + 1},
	} {
		_, err := db.Exec(ctx, insertMsgIDQuery, "Discord", "777", "Matrix", row.dstID, row.createdAt)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	dstID, err := db.MsgID.LookupDst(ctx, "Discord", "Matrix", "777")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if dstID != "second-copy" {
		t.Errorf("LookupDst: got %q, want most recent %q", dstID, "second-copy")
	}
}

func TestMsgIDDirectionality(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.MsgID.Record(ctx, "OneBot V11", "1", "Telegram", "2"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// The record correlates OneBot→Telegram; the reverse direction is a
	// separate relation and must miss.
	dstID, err := db.MsgID.LookupDst(ctx, "Telegram", "OneBot V11", "2")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if dstID != "" {
		t.Errorf("reverse LookupDst: got %q, want miss", dstID)
	}
}
