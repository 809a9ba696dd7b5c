// Copyright 2024-2026 Aiku AI

package onebot

import (
	"encoding/json"
	"fmt"
)

// Event is a OneBot v11 message event. Only the fields the bridge consumes
// are modeled.
type Event struct {
	Time        int64       `json:"time"`
	SelfID      int64       `json:"self_id"`
	PostType    string      `json:"post_type"`
	MessageType string      `json:"message_type"`
	MessageID   int64       `json:"message_id"`
	GroupID     int64       `json:"group_id"`
	UserID      int64       `json:"user_id"`
	Sender      EventSender `json:"sender"`
	Message     []Segment   `json:"message"`
}

// EventSender describes the event's author.
type EventSender struct {
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

// Segment is one native OneBot message segment: a type tag plus a loose
// data object whose shape depends on the type.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// NewText builds a native text segment.
func NewText(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// Str returns the data field as a string, converting numeric values.
// OneBot implementations are inconsistent about number-vs-string here.
func (s Segment) Str(key string) string {
	switch v := s.Data[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UnmarshalJSON accepts both the array message format and the legacy raw
// string format; a string degrades to a single text segment.
func (e *Event) UnmarshalJSON(raw []byte) error {
	type rawEvent Event
	var re struct {
		rawEvent
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &re); err != nil {
		return err
	}
	*e = Event(re.rawEvent)

	if len(re.Message) == 0 {
		return nil
	}
	if re.Message[0] == '"' {
		var text string
		if err := json.Unmarshal(re.Message, &text); err != nil {
			return err
		}
		e.Message = []Segment{NewText(text)}
		return nil
	}
	return json.Unmarshal(re.Message, &e.Message)
}
