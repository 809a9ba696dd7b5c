// Copyright 2024-2026 Aiku AI

package onebot

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Sender renders universal messages into OneBot segment arrays and delivers
// them over the bot's WebSocket connection.
type Sender struct {
	bridge.BaseSender
}

// NewSender builds the OneBot sender.
func NewSender(deps bridge.Deps) bridge.Sender {
	return &Sender{bridge.BaseSender{Deps: deps}}
}

func (s *Sender) Send(ctx context.Context, dstBot bridge.Bot, target ident.Target, msg bridge.Message, srcAdapter, srcID string) error {
	bot, ok := dstBot.(*Bot)
	if !ok {
		return fmt.Errorf("%w: destination bot is not a OneBot session", bridge.ErrDeliveryFailed)
	}

	// A reply segment must be single and lead the message.
	if reply := msg.FirstReply(); reply != nil {
		msg = append(bridge.Message{*reply}, msg.Exclude(bridge.IsReply)...)
	}

	segments := render(msg)
	if len(segments) == 0 {
		return fmt.Errorf("%w: nothing sendable after rendering", bridge.ErrDeliveryFailed)
	}

	data, err := bot.sendSegments(ctx, target, segments)
	if err != nil {
		return fmt.Errorf("%w: %w", bridge.ErrDeliveryFailed, err)
	}
	if err := s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, data); err != nil {
		return err
	}

	// Group files cannot ride along in a message; upload them out of band.
	for _, seg := range msg {
		if file, ok := seg.(bridge.File); ok && file.URL != "" && !target.Private {
			s.uploadGroupFile(ctx, bot, target, file)
		}
	}
	return nil
}

// render maps universal segments to native ones, flattening anything OneBot
// cannot represent to text.
func render(msg bridge.Message) []Segment {
	var out []Segment
	for _, seg := range msg {
		switch s := seg.(type) {
		case bridge.Text:
			if s.Text != "" {
				out = append(out, NewText(s.Text))
			}
		case bridge.Reply:
			out = append(out, Segment{Type: "reply", Data: map[string]any{"id": s.MessageID}})
		case bridge.Image:
			file := s.URL
			if file == "" && len(s.Raw) > 0 {
				file = "base64://" + base64.StdEncoding.EncodeToString(s.Raw)
			}
			if file == "" {
				out = append(out, NewText(bridge.SegmentFallback(s)))
				continue
			}
			out = append(out, Segment{Type: "image", Data: map[string]any{"file": file}})
		case bridge.Video:
			if s.URL == "" {
				out = append(out, NewText(bridge.SegmentFallback(s)))
				continue
			}
			out = append(out, Segment{Type: "video", Data: map[string]any{"file": s.URL}})
		case bridge.Record:
			if s.URL == "" {
				out = append(out, NewText(bridge.SegmentFallback(s)))
				continue
			}
			out = append(out, Segment{Type: "record", Data: map[string]any{"file": s.URL}})
		case bridge.File:
			// Sent out of band; keep an inline marker so the message
			// still reads coherently.
			out = append(out, NewText(bridge.SegmentFallback(s)))
		default:
			out = append(out, NewText(bridge.SegmentFallback(seg)))
		}
	}
	return out
}

// uploadGroupFile uploads one file attachment to the destination group.
// Failures are reported into the chat rather than failing the relay.
func (s *Sender) uploadGroupFile(ctx context.Context, bot *Bot, target ident.Target, file bridge.File) {
	name := file.Name
	if name == "" {
		name = file.ID
	}
	_, err := bot.CallAction(ctx, "upload_group_file", map[string]any{
		"group_id": target.ID,
		"file":     file.URL,
		"name":     name,
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("file", name).Msg("Failed to upload group file")
		if _, serr := bot.SendText(ctx, target, fmt.Sprintf("上传群文件失败: %s", name)); serr != nil {
			s.Log.Warn().Err(serr).Msg("Failed to report file upload failure")
		}
	}
}
