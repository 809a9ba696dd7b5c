// Copyright 2024-2026 Aiku AI

package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/database"
)

func init() {
	bridge.RegisterConverter(AdapterName, NewConverter)
	bridge.RegisterSender(AdapterName, NewSender)
}

// Converter translates OneBot v11 message segments into the universal
// representation.
type Converter struct {
	bridge.BaseConverter
}

// NewConverter builds the OneBot converter for one relay.
func NewConverter(deps bridge.Deps, src, dst bridge.Bot) bridge.Converter {
	return &Converter{
		BaseConverter: bridge.BaseConverter{Deps: deps, Src: src, Dst: dst},
	}
}

func (c *Converter) GetMessage(event any) (any, bool) {
	evt, ok := event.(*Event)
	if !ok || evt.PostType != "message" || len(evt.Message) == 0 {
		return nil, false
	}
	return evt.Message, true
}

func (c *Converter) GetMessageID(_ context.Context, event any, _ bridge.Bot) (string, error) {
	evt, ok := event.(*Event)
	if !ok {
		return "", bridge.ErrNoMessage
	}
	return strconv.FormatInt(evt.MessageID, 10), nil
}

// Convert translates segment by segment. A segment that fails to translate
// degrades to an "[error:<type>]" placeholder; the rest of the message is
// kept.
func (c *Converter) Convert(ctx context.Context, native any) (bridge.Message, error) {
	segments, ok := native.([]Segment)
	if !ok {
		return nil, bridge.ErrNoMessage
	}

	var out bridge.Message
	for _, seg := range segments {
		converted, err := c.convertSegment(ctx, seg)
		if err != nil {
			c.Log.Warn().Err(err).Str("segment_type", seg.Type).Msg("Failed to convert segment")
			out = append(out, bridge.Text{Text: fmt.Sprintf("[error:%s]", seg.Type)})
			continue
		}
		out = append(out, converted...)
	}
	return out, nil
}

// convertSegment expands one native segment into zero or more universal
// segments.
func (c *Converter) convertSegment(ctx context.Context, seg Segment) ([]bridge.Segment, error) {
	switch seg.Type {
	case "text":
		return []bridge.Segment{bridge.Text{Text: seg.Str("text")}}, nil
	case "at":
		// Mentions do not survive across platforms.
		return []bridge.Segment{bridge.Text{Text: fmt.Sprintf("[at:%s]", seg.Str("qq"))}}, nil
	case "image":
		url := seg.Str("url")
		if url == "" {
			return nil, fmt.Errorf("image segment without url")
		}
		return []bridge.Segment{bridge.Image{URL: url}}, nil
	case "video":
		url := seg.Str("url")
		if url == "" {
			return nil, fmt.Errorf("video segment without url")
		}
		return []bridge.Segment{bridge.Video{URL: url}}, nil
	case "record":
		return []bridge.Segment{bridge.Record{URL: seg.Str("url"), Name: seg.Str("file")}}, nil
	case "file":
		return []bridge.Segment{bridge.File{ID: seg.Str("file_id"), Name: seg.Str("file")}}, nil
	case "reply":
		return []bridge.Segment{c.ConvertReply(ctx, seg.Str("id"))}, nil
	case "forward":
		return c.convertForward(ctx, seg)
	case "json":
		return c.convertJSON(seg)
	default:
		return []bridge.Segment{bridge.Text{Text: fmt.Sprintf("[%s]", seg.Type)}}, nil
	}
}

// forwardNode is one flattened entry of a forwarded-message bundle as
// stashed in the TTL store.
type forwardNode struct {
	Nick string `json:"nick"`
	Text string `json:"text"`
}

// ForwardCacheKey is the TTL store key for a forwarded bundle.
func ForwardCacheKey(forwardID string) string {
	return "forward_" + forwardID
}

// convertForward flattens an embedded forwarded-message bundle into the TTL
// store and emits a placeholder referencing it. Implementations that don't
// embed the content still get the placeholder; the bundle is then simply
// not loadable later.
func (c *Converter) convertForward(ctx context.Context, seg Segment) ([]bridge.Segment, error) {
	forwardID := seg.Str("id")
	cached := false
	if content, ok := seg.Data["content"].([]any); ok && len(content) > 0 {
		if err := c.cacheForward(ctx, forwardID, content); err != nil {
			c.Log.Warn().Err(err).Str("forward_id", forwardID).Msg("Failed to cache forwarded bundle")
		} else {
			cached = true
		}
	} else if _, ok, _ := LoadForward(ctx, c.DB, forwardID); ok {
		// An earlier sighting of the same bundle already stashed it.
		cached = true
	}
	return []bridge.Segment{
		bridge.Text{Text: fmt.Sprintf("[forward:%s:cache=%t]", forwardID, cached)},
		bridge.Forward{ID: forwardID},
	}, nil
}

// cacheForward flattens the bundle's nodes to text and stashes them as JSON
// under forward_<id>, so a later load request can re-materialize them.
func (c *Converter) cacheForward(ctx context.Context, forwardID string, content []any) error {
	flat := NewConverter(c.Deps, c.Src, c.Dst).(*Converter)

	var nodes []forwardNode
	for _, item := range content {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rawMsg, err := json.Marshal(node["message"])
		if err != nil {
			continue
		}
		var segments []Segment
		if err := json.Unmarshal(rawMsg, &segments); err != nil || len(segments) == 0 {
			continue
		}
		converted, err := flat.Convert(ctx, segments)
		if err != nil {
			continue
		}
		nodes = append(nodes, forwardNode{
			Nick: nodeNick(node),
			Text: converted.PlainText(),
		})
	}
	if len(nodes) == 0 {
		return fmt.Errorf("forwarded bundle %s has no loadable content", forwardID)
	}

	blob, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal forwarded bundle: %w", err)
	}
	return c.DB.KV.Set(ctx, AdapterName, ForwardCacheKey(forwardID), string(blob), database.DefaultTTL)
}

func nodeNick(node map[string]any) string {
	sender, _ := node["sender"].(map[string]any)
	for _, key := range []string{"card", "nickname", "user_id"} {
		if v, ok := sender[key]; ok {
			if s := fmt.Sprintf("%v", v); s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return ""
}

// LoadForward re-materializes a previously cached forwarded bundle into a
// universal message. ok is false when the bundle was never cached or its
// cache entry has expired.
func LoadForward(ctx context.Context, db *database.Database, forwardID string) (bridge.Message, bool, error) {
	blob, ok, err := db.KV.Get(ctx, AdapterName, ForwardCacheKey(forwardID))
	if err != nil || !ok {
		return nil, false, err
	}
	var nodes []forwardNode
	if err := json.Unmarshal([]byte(blob), &nodes); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal forwarded bundle: %w", err)
	}
	var msg bridge.Message
	for _, node := range nodes {
		msg = msg.Textf("%s:\n%s\n", node.Nick, node.Text)
	}
	return msg, true, nil
}

// convertJSON unpacks an embedded rich "json" segment. Known card shapes
// get a dedicated rendering; everything else degrades to a placeholder.
func (c *Converter) convertJSON(seg Segment) ([]bridge.Segment, error) {
	data := gjson.Parse(seg.Str("data"))
	meta := data.Get("meta")
	if !meta.Exists() {
		return []bridge.Segment{bridge.Text{Text: fmt.Sprintf("[json:%s]", data.Get("prompt").String())}}, nil
	}

	// Bilibili share cards.
	if detail := meta.Get("detail_1"); detail.Get("title").String() == "哔哩哔哩" {
		out := []bridge.Segment{
			bridge.Text{Text: fmt.Sprintf("[哔哩哔哩] %s\n%s", detail.Get("desc").String(), detail.Get("qqdocurl").String())},
		}
		if preview := detail.Get("preview").String(); preview != "" {
			out = append(out, bridge.Image{URL: preview})
		}
		return out, nil
	}

	return []bridge.Segment{bridge.Text{Text: fmt.Sprintf("[json:%s]", data.Get("prompt").String())}}, nil
}
