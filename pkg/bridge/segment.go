// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"
	"strings"
)

// Segment is one atomic piece of platform-independent message content.
// Concrete segment types are immutable value objects; a Message is an
// ordered sequence of them.
type Segment interface {
	// SegmentType returns the stable tag for this segment kind, used for
	// logging and fallback rendering.
	SegmentType() string
}

// Text is a plain text run.
type Text struct {
	Text string
}

func (Text) SegmentType() string { return "text" }

// Image references image content by URL and/or raw bytes. At least one of
// URL and Raw is set.
type Image struct {
	URL      string
	Raw      []byte
	MimeType string
	Name     string
}

func (Image) SegmentType() string { return "image" }

// Video references video content by URL.
type Video struct {
	URL      string
	MimeType string
	Name     string
}

func (Video) SegmentType() string { return "video" }

// File references a generic file attachment.
type File struct {
	ID       string
	URL      string
	MimeType string
	Name     string
}

func (File) SegmentType() string { return "file" }

// Record references a voice/audio clip.
type Record struct {
	URL      string
	MimeType string
	Name     string
}

func (Record) SegmentType() string { return "record" }

// Mention refers to a user on the source platform. Mentions do not survive
// across platforms and render as text on the destination.
type Mention struct {
	UserID string
	Name   string
}

func (Mention) SegmentType() string { return "mention" }

// Reply references another message by its destination-side ID. The converter
// resolves the source-side ID through the correlation store before emitting
// this segment; an unresolvable reply degrades to a Text placeholder instead.
type Reply struct {
	MessageID string
}

func (Reply) SegmentType() string { return "reply" }

// Forward references a forwarded-message bundle previously flattened into the
// TTL store under "forward_<ID>".
type Forward struct {
	ID string
}

func (Forward) SegmentType() string { return "forward" }

// Message is an ordered sequence of segments. It is owned by whichever
// pipeline stage currently holds it and is never mutated concurrently.
type Message []Segment

// Textf appends a formatted text segment and returns the extended message.
func (m Message) Textf(format string, args ...any) Message {
	return append(m, Text{Text: fmt.Sprintf(format, args...)})
}

// First returns the first segment matching pred, or nil.
func (m Message) First(pred func(Segment) bool) Segment {
	for _, seg := range m {
		if pred(seg) {
			return seg
		}
	}
	return nil
}

// Filter returns the segments matching pred, preserving order.
func (m Message) Filter(pred func(Segment) bool) Message {
	var out Message
	for _, seg := range m {
		if pred(seg) {
			out = append(out, seg)
		}
	}
	return out
}

// Exclude returns the segments not matching pred, preserving order.
func (m Message) Exclude(pred func(Segment) bool) Message {
	return m.Filter(func(seg Segment) bool { return !pred(seg) })
}

// FirstReply returns the first Reply segment, or nil.
func (m Message) FirstReply() *Reply {
	for _, seg := range m {
		if reply, ok := seg.(Reply); ok {
			return &reply
		}
	}
	return nil
}

// IsReply reports whether seg is a Reply segment.
func IsReply(seg Segment) bool {
	_, ok := seg.(Reply)
	return ok
}

// PlainText flattens the message into a single text string. Non-text
// segments render as bracketed placeholders, matching the degrade policy
// used when a destination platform cannot represent a segment kind.
func (m Message) PlainText() string {
	var sb strings.Builder
	for _, seg := range m {
		sb.WriteString(SegmentFallback(seg))
	}
	return sb.String()
}

// SegmentFallback renders the closest text equivalent of a segment, used
// when the destination platform has no native representation for its kind.
func SegmentFallback(seg Segment) string {
	switch s := seg.(type) {
	case Text:
		return s.Text
	case Image:
		if s.URL != "" {
			return fmt.Sprintf("[image:%s]", s.URL)
		}
		return "[image]"
	case Video:
		if s.URL != "" {
			return fmt.Sprintf("[video:%s]", s.URL)
		}
		return "[video]"
	case File:
		if name := s.Name; name != "" {
			return fmt.Sprintf("[file:%s]", name)
		}
		return fmt.Sprintf("[file:%s]", s.ID)
	case Record:
		return fmt.Sprintf("[record:%s]", s.Name)
	case Mention:
		if s.Name != "" {
			return fmt.Sprintf("@%s", s.Name)
		}
		return fmt.Sprintf("[at:%s]", s.UserID)
	case Reply:
		return fmt.Sprintf("[reply:%s]", s.MessageID)
	case Forward:
		return fmt.Sprintf("[forward:%s]", s.ID)
	default:
		return fmt.Sprintf("[%s]", seg.SegmentType())
	}
}
