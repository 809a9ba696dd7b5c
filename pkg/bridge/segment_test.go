// Copyright 2024-2026 Aiku AI

package bridge

import "testing"

func TestMessagePlainText(t *testing.T) {
	t.Parallel()
	msg := Message{
		Text{Text: "hello "},
		Image{URL: "https://example.com/pic.png"},
		Text{Text: " world"},
	}
	got := msg.PlainText()
	want := "hello [image:https://example.com/pic.png] world"
	if got != want {
		t.Errorf("PlainText: got %q, want %q", got, want)
	}
}

func TestSegmentFallback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		seg  Segment
		want string
	}{
		{"text", Text{Text: "hi"}, "hi"},
		{"image with url", Image{URL: "u"}, "[image:u]"},
		{"image raw only", Image{Raw: []byte{1}}, "[image]"},
		{"video", Video{URL: "v"}, "[video:v]"},
		{"file named", File{ID: "f1", Name: "doc.pdf"}, "[file:doc.pdf]"},
		{"file unnamed", File{ID: "f1"}, "[file:f1]"},
		{"mention named", Mention{UserID: "7", Name: "alice"}, "@alice"},
		{"mention bare", Mention{UserID: "7"}, "[at:7]"},
		{"reply", Reply{MessageID: "42"}, "[reply:42]"},
		{"forward", Forward{ID: "99"}, "[forward:99]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SegmentFallback(tt.seg); got != tt.want {
				t.Errorf("SegmentFallback: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageTextf(t *testing.T) {
	t.Parallel()
	msg := Message{}.Textf("[ %s - %s ]", "group", "user")
	if len(msg) != 1 {
		t.Fatalf("Textf: got %d segments, want 1", len(msg))
	}
	text, ok := msg[0].(Text)
	if !ok || text.Text != "[ group - user ]" {
		t.Errorf("Textf: got %#v, want Text{%q}", msg[0], "[ group - user ]")
	}
}

func TestMessageFirstReply(t *testing.T) {
	t.Parallel()
	msg := Message{
		Text{Text: "a"},
		Reply{MessageID: "first"},
		Reply{MessageID: "second"},
	}
	reply := msg.FirstReply()
	if reply == nil || reply.MessageID != "first" {
		t.Errorf("FirstReply: got %v, want MessageID %q", reply, "first")
	}

	if got := (Message{Text{Text: "a"}}).FirstReply(); got != nil {
		t.Errorf("FirstReply on reply-free message: got %v, want nil", got)
	}
}

func TestMessageExcludeReplies(t *testing.T) {
	t.Parallel()
	msg := Message{
		Reply{MessageID: "1"},
		Text{Text: "a"},
		Reply{MessageID: "2"},
		Text{Text: "b"},
	}
	rest := msg.Exclude(IsReply)
	if len(rest) != 2 {
		t.Fatalf("Exclude: got %d segments, want 2", len(rest))
	}
	for _, seg := range rest {
		if IsReply(seg) {
			t.Errorf("Exclude left a reply segment: %#v", seg)
		}
	}
}
