// Copyright 2024-2026 Aiku AI
package matrix

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
	"github.com/aiku/pipebridge/pkg/bridge/mediautil"
)

// Sender delivers universal messages into a Matrix room. Text collapses
// into one m.text event; each media segment becomes its own event after
// re-upload to the homeserver.
type Sender struct {
	bridge.BaseSender
}

var _ bridge.Sender = (*Sender)(nil)

func NewSender(deps bridge.Deps) bridge.Sender {
	return &Sender{BaseSender: bridge.BaseSender{Deps: deps}}
}

func (s *Sender) Send(ctx context.Context, dstBot bridge.Bot, target ident.Target, msg bridge.Message, srcAdapter, srcID string) error {
	bot, ok := dstBot.(*Bot)
	if !ok {
		return fmt.Errorf("%w: bot %q is not a Matrix bot", bridge.ErrDeliveryFailed, dstBot.Adapter())
	}
	roomID := id.RoomID(target.ID)

	var relatesTo *event.RelatesTo
	var texts []string
	var media []bridge.Segment
	for _, seg := range msg {
		switch seg := seg.(type) {
		case bridge.Reply:
			relatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: id.EventID(seg.MessageID)}}
		case bridge.Text:
			texts = append(texts, seg.Text)
		case bridge.Image, bridge.Video, bridge.Record, bridge.File:
			media = append(media, seg)
		default:
			texts = append(texts, bridge.SegmentFallback(seg))
		}
	}

	sentAny := false
	// The reply relation rides on the first event only.
	takeRelates := func() *event.RelatesTo {
		rt := relatesTo
		relatesTo = nil
		return rt
	}
	record := func(resp *mautrix.RespSendEvent) error {
		sentAny = true
		return s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, string(resp.EventID))
	}

	if text := strings.Join(texts, ""); text != "" {
		resp, err := bot.Client().SendMessageEvent(ctx, roomID, event.EventMessage, &event.MessageEventContent{
			MsgType:   event.MsgText,
			Body:      text,
			RelatesTo: takeRelates(),
		})
		if err != nil {
			return fmt.Errorf("%w: %w", bridge.ErrDeliveryFailed, err)
		}
		if err := record(resp); err != nil {
			return err
		}
	}

	for _, seg := range media {
		resp, err := s.sendMedia(ctx, bot, roomID, takeRelates(), seg)
		if err != nil {
			s.Log.Warn().Err(err).Str("segment", seg.SegmentType()).Msg("Failed to send Matrix media")
			continue
		}
		if err := record(resp); err != nil {
			return err
		}
	}

	if !sentAny {
		return fmt.Errorf("%w: nothing deliverable to %s", bridge.ErrDeliveryFailed, target.String())
	}
	return nil
}

func (s *Sender) sendMedia(ctx context.Context, bot *Bot, roomID id.RoomID, relates *event.RelatesTo, seg bridge.Segment) (*mautrix.RespSendEvent, error) {
	var msgType event.MessageType
	var url, mime, name string
	var raw []byte
	switch seg := seg.(type) {
	case bridge.Image:
		msgType, url, mime, name, raw = event.MsgImage, seg.URL, seg.MimeType, seg.Name, seg.Raw
	case bridge.Video:
		msgType, url, mime, name = event.MsgVideo, seg.URL, seg.MimeType, seg.Name
	case bridge.Record:
		msgType, url, mime, name = event.MsgAudio, seg.URL, seg.MimeType, seg.Name
	case bridge.File:
		msgType, url, mime, name = event.MsgFile, seg.URL, seg.MimeType, seg.Name
	default:
		return nil, fmt.Errorf("unsupported media segment %q", seg.SegmentType())
	}

	var uri id.ContentURI
	switch {
	case len(raw) > 0:
		if mime == "" {
			mime = mediautil.DetectMime(raw)
		}
		resp, err := bot.Client().UploadBytes(ctx, raw, mime)
		if err != nil {
			return nil, err
		}
		uri = resp.ContentURI
	case url != "":
		resp, err := bot.Client().UploadLink(ctx, url)
		if err != nil {
			return nil, err
		}
		uri = resp.ContentURI
	default:
		return nil, fmt.Errorf("media segment %q has no content", seg.SegmentType())
	}

	if name == "" {
		name = "attachment" + mediautil.ExtensionFor(mime)
	}
	content := &event.MessageEventContent{
		MsgType:   msgType,
		Body:      name,
		URL:       uri.CUString(),
		RelatesTo: relates,
	}
	if mime != "" {
		content.Info = &event.FileInfo{MimeType: mime}
	}
	return bot.Client().SendMessageEvent(ctx, roomID, event.EventMessage, content)
}
