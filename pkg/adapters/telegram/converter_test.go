// Copyright 2024-2026 Aiku AI

package telegram

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/database"
)

type stubBot struct{ adapter string }

func (b stubBot) Adapter() string { return b.adapter }
func (b stubBot) SelfID() string  { return "self" }

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	db, err := database.NewWithDialect("file:"+t.TempDir()+"/test.db", "sqlite3", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.Upgrade(context.Background()); err != nil {
		t.Fatalf("failed to upgrade test database: %v", err)
	}
	deps := bridge.Deps{DB: db, Log: zerolog.Nop()}
	return NewConverter(deps, stubBot{adapter: AdapterName}, stubBot{adapter: "OneBot V11"}).(*Converter)
}

func TestGetMessageID(t *testing.T) {
	t.Parallel()
	c := newTestConverter(t)

	update := &telego.Update{Message: &telego.Message{
		MessageID: 42,
		Chat:      telego.Chat{ID: -100123},
	}}
	id, err := c.GetMessageID(context.Background(), update, nil)
	if err != nil || id != "-100123$telegram$42" {
		t.Errorf("GetMessageID: got (%q, %v), want (%q, nil)", id, err, "-100123$telegram$42")
	}
}

func TestGetMessageSkipsMessagelessUpdates(t *testing.T) {
	t.Parallel()
	c := newTestConverter(t)

	if _, ok := c.GetMessage(&telego.Update{}); ok {
		t.Error("GetMessage accepted an update without a message")
	}
	if _, ok := c.GetMessage("not an update"); ok {
		t.Error("GetMessage accepted a non-update event")
	}
}

func TestConvertTextAndUnresolvedReply(t *testing.T) {
	t.Parallel()
	c := newTestConverter(t)

	msg, err := c.Convert(context.Background(), &telego.Message{
		MessageID: 5,
		Chat:      telego.Chat{ID: 77},
		Text:      "hi there",
		ReplyToMessage: &telego.Message{
			MessageID: 4,
			Chat:      telego.Chat{ID: 77},
		},
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	// The unresolved reply placeholder carries the bare per-chat ID, not the
	// composite bridge ID.
	want := "[reply:4]hi there"
	if got := msg.PlainText(); got != want {
		t.Errorf("Convert: got %q, want %q", got, want)
	}
}

func TestConvertResolvedReply(t *testing.T) {
	t.Parallel()
	c := newTestConverter(t)
	ctx := context.Background()

	// The replied-to Telegram message was relayed to QQ earlier.
	err := c.DB.MsgID.Record(ctx, AdapterName, MakeMessageID(77, 4), "OneBot V11", "9001")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	msg, err := c.Convert(ctx, &telego.Message{
		MessageID:      5,
		Chat:           telego.Chat{ID: 77},
		Text:           "answer",
		ReplyToMessage: &telego.Message{MessageID: 4, Chat: telego.Chat{ID: 77}},
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	reply := msg.FirstReply()
	if reply == nil || reply.MessageID != "9001" {
		t.Errorf("resolved reply: got %v, want MessageID %q", reply, "9001")
	}
}

func TestConvertEmptyMessageDegrades(t *testing.T) {
	t.Parallel()
	c := newTestConverter(t)

	msg, err := c.Convert(context.Background(), &telego.Message{MessageID: 1, Chat: telego.Chat{ID: 1}})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got := msg.PlainText(); got != "[unsupported]" {
		t.Errorf("Convert of empty message: got %q, want %q", got, "[unsupported]")
	}
}
