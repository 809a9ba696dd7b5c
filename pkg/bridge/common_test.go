// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestConverter(t *testing.T) (*BaseConverter, *fakeBot, *fakeBot) {
	t.Helper()
	db := newTestDB(t)
	src := &fakeBot{adapter: "ReplySrc"}
	dst := &fakeBot{adapter: "ReplyDst"}
	return &BaseConverter{
		Deps: Deps{DB: db, Log: zerolog.Nop()},
		Src:  src,
		Dst:  dst,
	}, src, dst
}

func TestReplyIDForwardDirection(t *testing.T) {
	t.Parallel()
	c, src, dst := newTestConverter(t)
	ctx := context.Background()

	// The replied-to message originated on the source platform and was
	// relayed src -> dst earlier.
	if err := c.DB.MsgID.Record(ctx, src.adapter, "orig-1", dst.adapter, "copy-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	id, err := c.ReplyID(ctx, "orig-1")
	if err != nil {
		t.Fatalf("ReplyID failed: %v", err)
	}
	if id != "copy-1" {
		t.Errorf("ReplyID: got %q, want %q", id, "copy-1")
	}
}

func TestReplyIDReverseDirection(t *testing.T) {
	t.Parallel()
	c, src, dst := newTestConverter(t)
	ctx := context.Background()

	// The replied-to message originated on the destination platform; its
	// relayed copy lives on the source side, so the reply carries the copy's
	// ID and resolves back through the reverse relation.
	if err := c.DB.MsgID.Record(ctx, dst.adapter, "dst-orig-9", src.adapter, "src-copy-9"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	id, err := c.ReplyID(ctx, "src-copy-9")
	if err != nil {
		t.Fatalf("ReplyID failed: %v", err)
	}
	if id != "dst-orig-9" {
		t.Errorf("ReplyID: got %q, want %q", id, "dst-orig-9")
	}
}

func TestReplyIDMiss(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestConverter(t)

	id, err := c.ReplyID(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("ReplyID failed: %v", err)
	}
	if id != "" {
		t.Errorf("ReplyID on miss: got %q, want empty", id)
	}
}

func TestReplyIDWithoutDestination(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestConverter(t)
	c.Dst = nil

	id, err := c.ReplyID(context.Background(), "anything")
	if err != nil || id != "" {
		t.Errorf("ReplyID without destination: got (%q, %v), want (%q, nil)", id, err, "")
	}
}

func TestConvertReply(t *testing.T) {
	t.Parallel()
	c, src, dst := newTestConverter(t)
	ctx := context.Background()

	if err := c.DB.MsgID.Record(ctx, src.adapter, "known", dst.adapter, "known-copy"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seg := c.ConvertReply(ctx, "known")
	reply, ok := seg.(Reply)
	if !ok || reply.MessageID != "known-copy" {
		t.Errorf("ConvertReply on hit: got %#v, want Reply{%q}", seg, "known-copy")
	}

	seg = c.ConvertReply(ctx, "unknown")
	text, ok := seg.(Text)
	if !ok || text.Text != "[reply:unknown]" {
		t.Errorf("ConvertReply on miss: got %#v, want Text{%q}", seg, "[reply:unknown]")
	}
}

func TestRecordDeliverySkipsEmpty(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	s := &BaseSender{Deps: Deps{DB: db, Log: zerolog.Nop()}}
	dst := &fakeBot{adapter: "RecDst"}
	ctx := context.Background()

	for _, tt := range []struct {
		name                  string
		srcAdapter, srcID, id string
	}{
		{"no source adapter", "", "1", "2"},
		{"no source id", "A", "", "2"},
		{"no destination id", "A", "1", ""},
	} {
		if err := s.RecordDelivery(ctx, tt.srcAdapter, tt.srcID, dst, tt.id); err != nil {
			t.Errorf("%s: RecordDelivery returned %v, want nil no-op", tt.name, err)
		}
	}

	got, err := db.MsgID.LookupDst(ctx, "A", dst.adapter, "1")
	if err != nil {
		t.Fatalf("LookupDst failed: %v", err)
	}
	if got != "" {
		t.Errorf("no-op RecordDelivery wrote a record: %q", got)
	}
}

func TestRecordDeliverySurfacesStorageFailure(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	s := &BaseSender{Deps: Deps{DB: db, Log: zerolog.Nop()}}
	dst := &fakeBot{adapter: "RecDst"}

	// A delivery whose correlation cannot be persisted must not report
	// success: a later reply would silently lose its thread.
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	err := s.RecordDelivery(context.Background(), "A", "1", dst, "2")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("RecordDelivery with storage down: got %v, want ErrStorageUnavailable", err)
	}
}
