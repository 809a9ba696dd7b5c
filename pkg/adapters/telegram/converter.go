// Copyright 2024-2026 Aiku AI
package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func init() {
	bridge.RegisterConverter(AdapterName, NewConverter)
	bridge.RegisterSender(AdapterName, NewSender)
}

// Converter turns Telegram updates into universal messages.
type Converter struct {
	bridge.BaseConverter
}

var _ bridge.Converter = (*Converter)(nil)

func NewConverter(deps bridge.Deps, src, dst bridge.Bot) bridge.Converter {
	return &Converter{BaseConverter: bridge.BaseConverter{Deps: deps, Src: src, Dst: dst}}
}

// GetMessage extracts the message from an update, skipping updates that
// carry no message payload.
func (c *Converter) GetMessage(event any) (any, bool) {
	update, ok := event.(*telego.Update)
	if !ok || update.Message == nil {
		return nil, false
	}
	return update.Message, true
}

func (c *Converter) GetMessageID(ctx context.Context, event any, bot bridge.Bot) (string, error) {
	update, ok := event.(*telego.Update)
	if !ok || update.Message == nil {
		return "", bridge.ErrNoMessage
	}
	return MakeMessageID(update.Message.Chat.ID, update.Message.MessageID), nil
}

// Convert maps a Telegram message onto universal segments. Media lookups
// that fail degrade to bracketed placeholders instead of aborting.
func (c *Converter) Convert(ctx context.Context, native any) (bridge.Message, error) {
	msg, ok := native.(*telego.Message)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected native type %T", bridge.ErrNoMessage, native)
	}

	var out bridge.Message
	if msg.ReplyToMessage != nil {
		srcID := MakeMessageID(msg.ReplyToMessage.Chat.ID, msg.ReplyToMessage.MessageID)
		out = append(out, c.convertReply(ctx, srcID))
	}

	if msg.Text != "" {
		out = append(out, bridge.Text{Text: msg.Text})
	}
	if msg.Caption != "" {
		out = append(out, bridge.Text{Text: msg.Caption})
	}

	if len(msg.Photo) > 0 {
		// Photo sizes are ordered small to large; take the largest.
		best := msg.Photo[len(msg.Photo)-1]
		out = append(out, c.convertFile(ctx, best.FileID, "image", ""))
	}
	if msg.Sticker != nil {
		out = append(out, c.convertFile(ctx, msg.Sticker.FileID, "image", ""))
	}
	if msg.Video != nil {
		out = append(out, c.convertFile(ctx, msg.Video.FileID, "video", msg.Video.FileName))
	}
	if msg.Animation != nil {
		out = append(out, c.convertFile(ctx, msg.Animation.FileID, "video", msg.Animation.FileName))
	}
	if msg.Voice != nil {
		out = append(out, c.convertFile(ctx, msg.Voice.FileID, "record", ""))
	}
	if msg.Document != nil {
		out = append(out, c.convertFile(ctx, msg.Document.FileID, "file", msg.Document.FileName))
	}

	if len(out) == 0 {
		out = append(out, bridge.Text{Text: "[unsupported]"})
	}
	return out, nil
}

// convertReply resolves a composite reply ID via the base converter, then
// strips the Telegram marker so same-platform pipes carry bare IDs.
func (c *Converter) convertReply(ctx context.Context, srcMsgID string) bridge.Segment {
	seg := c.ConvertReply(ctx, srcMsgID)
	switch s := seg.(type) {
	case bridge.Reply:
		return s
	case bridge.Text:
		return bridge.Text{Text: "[reply:" + LocalMessageID(srcMsgID) + "]"}
	default:
		return seg
	}
}

// convertFile resolves a Telegram file ID into a downloadable URL and wraps
// it in the segment kind given.
func (c *Converter) convertFile(ctx context.Context, fileID, kind, name string) bridge.Segment {
	bot, ok := c.Src.(*Bot)
	if !ok {
		return bridge.Text{Text: "[" + kind + "]"}
	}
	file, err := bot.Client().GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil || file.FilePath == "" {
		c.Log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to resolve Telegram file")
		return bridge.Text{Text: "[error:" + kind + "]"}
	}
	url := bot.Client().FileDownloadURL(file.FilePath)
	switch kind {
	case "image":
		return bridge.Image{URL: url, Name: name}
	case "video":
		return bridge.Video{URL: url, Name: name}
	case "record":
		return bridge.Record{URL: url, Name: name}
	default:
		return bridge.File{ID: fileID, URL: url, Name: name}
	}
}
