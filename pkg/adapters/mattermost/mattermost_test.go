// Copyright 2024-2026 Aiku AI

package mattermost

import (
	"encoding/json"
	"testing"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func TestHTTPToWS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https", "https://mm.example.com", "wss://mm.example.com"},
		{"http", "http://localhost:8065", "ws://localhost:8065"},
		{"already ws", "ws://localhost:8065", "ws://localhost:8065"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := httpToWS(tt.in); got != tt.want {
				t.Errorf("httpToWS(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	bot := NewBot(bridge.MattermostConfig{ServerURL: "http://localhost:8065", Token: "tok"}, nil, zerolog.Nop())
	bot.selfID = "me123"
	return bot
}

func postedEvent(t *testing.T, post *model.Post) *model.WebSocketEvent {
	t.Helper()
	raw, err := json.Marshal(post)
	if err != nil {
		t.Fatalf("failed to marshal post: %v", err)
	}
	evt := model.NewWebSocketEvent(model.WebsocketEventPosted, "", post.ChannelId, "", nil, "")
	evt.Add("post", string(raw))
	return evt
}

func TestParsePostedEvent(t *testing.T) {
	t.Parallel()
	bot := newTestBot(t)

	evt := postedEvent(t, &model.Post{Id: "p1", ChannelId: "ch1", UserId: "other", Message: "hi"})
	post, err := bot.parsePostedEvent(evt)
	if err != nil {
		t.Fatalf("parsePostedEvent failed: %v", err)
	}
	if post == nil || post.Id != "p1" || post.Message != "hi" {
		t.Errorf("parsePostedEvent: got %+v", post)
	}
}

func TestParsePostedEventSkipsOwnPosts(t *testing.T) {
	t.Parallel()
	bot := newTestBot(t)

	evt := postedEvent(t, &model.Post{Id: "p1", ChannelId: "ch1", UserId: "me123", Message: "echo"})
	post, err := bot.parsePostedEvent(evt)
	if err != nil {
		t.Fatalf("parsePostedEvent failed: %v", err)
	}
	if post != nil {
		t.Errorf("own post not skipped: %+v", post)
	}
}

func TestParsePostedEventSkipsSystemPosts(t *testing.T) {
	t.Parallel()
	bot := newTestBot(t)

	evt := postedEvent(t, &model.Post{
		Id: "p1", ChannelId: "ch1", UserId: "other",
		Type: model.PostTypeJoinChannel,
	})
	post, err := bot.parsePostedEvent(evt)
	if err != nil {
		t.Fatalf("parsePostedEvent failed: %v", err)
	}
	if post != nil {
		t.Errorf("system post not skipped: %+v", post)
	}
}

func TestParsePostedEventMissingData(t *testing.T) {
	t.Parallel()
	bot := newTestBot(t)

	evt := model.NewWebSocketEvent(model.WebsocketEventPosted, "", "ch1", "", nil, "")
	if _, err := bot.parsePostedEvent(evt); err == nil {
		t.Error("parsePostedEvent accepted an event without post data")
	}
}
