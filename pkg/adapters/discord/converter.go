// Copyright 2024-2026 Aiku AI
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func init() {
	bridge.RegisterConverter(AdapterName, NewConverter)
	bridge.RegisterSender(AdapterName, NewSender)
}

// Converter turns Discord message-create events into universal messages.
type Converter struct {
	bridge.BaseConverter
}

var _ bridge.Converter = (*Converter)(nil)

func NewConverter(deps bridge.Deps, src, dst bridge.Bot) bridge.Converter {
	return &Converter{BaseConverter: bridge.BaseConverter{Deps: deps, Src: src, Dst: dst}}
}

func (c *Converter) GetMessage(event any) (any, bool) {
	m, ok := event.(*discordgo.MessageCreate)
	if !ok || m.Message == nil {
		return nil, false
	}
	return m.Message, true
}

func (c *Converter) GetMessageID(ctx context.Context, event any, bot bridge.Bot) (string, error) {
	m, ok := event.(*discordgo.MessageCreate)
	if !ok || m.Message == nil {
		return "", bridge.ErrNoMessage
	}
	return m.ID, nil
}

// Convert maps message content, mentions and attachments onto universal
// segments. Attachment kinds are chosen from the content type reported by
// Discord.
func (c *Converter) Convert(ctx context.Context, native any) (bridge.Message, error) {
	msg, ok := native.(*discordgo.Message)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected native type %T", bridge.ErrNoMessage, native)
	}

	var out bridge.Message
	if ref := msg.MessageReference; ref != nil && ref.MessageID != "" {
		out = append(out, c.ConvertReply(ctx, ref.MessageID))
	}
	if msg.Content != "" {
		out = append(out, bridge.Text{Text: msg.Content})
	}
	for _, att := range msg.Attachments {
		out = append(out, convertAttachment(att))
	}
	for _, sticker := range msg.StickerItems {
		out = append(out, bridge.Text{Text: "[sticker:" + sticker.Name + "]"})
	}
	if len(out) == 0 {
		out = append(out, bridge.Text{Text: "[unsupported]"})
	}
	return out, nil
}

func convertAttachment(att *discordgo.MessageAttachment) bridge.Segment {
	switch {
	case strings.HasPrefix(att.ContentType, "image/"):
		return bridge.Image{URL: att.URL, MimeType: att.ContentType, Name: att.Filename}
	case strings.HasPrefix(att.ContentType, "video/"):
		return bridge.Video{URL: att.URL, MimeType: att.ContentType, Name: att.Filename}
	case strings.HasPrefix(att.ContentType, "audio/"):
		return bridge.Record{URL: att.URL, MimeType: att.ContentType, Name: att.Filename}
	default:
		return bridge.File{ID: att.ID, URL: att.URL, MimeType: att.ContentType, Name: att.Filename}
	}
}
