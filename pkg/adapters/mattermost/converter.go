// Copyright 2024-2026 Aiku AI
package mattermost

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func init() {
	bridge.RegisterConverter(AdapterName, NewConverter)
	bridge.RegisterSender(AdapterName, NewSender)
}

// Converter turns Mattermost posts into universal messages.
type Converter struct {
	bridge.BaseConverter
}

var _ bridge.Converter = (*Converter)(nil)

func NewConverter(deps bridge.Deps, src, dst bridge.Bot) bridge.Converter {
	return &Converter{BaseConverter: bridge.BaseConverter{Deps: deps, Src: src, Dst: dst}}
}

func (c *Converter) GetMessage(event any) (any, bool) {
	post, ok := event.(*model.Post)
	if !ok || post == nil {
		return nil, false
	}
	return post, true
}

func (c *Converter) GetMessageID(ctx context.Context, event any, bot bridge.Bot) (string, error) {
	post, ok := event.(*model.Post)
	if !ok || post == nil {
		return "", bridge.ErrNoMessage
	}
	return post.Id, nil
}

// Convert maps the post text and file attachments onto universal segments.
// Attachment bytes are fetched through the authenticated API client because
// Mattermost file URLs are not publicly reachable.
func (c *Converter) Convert(ctx context.Context, native any) (bridge.Message, error) {
	post, ok := native.(*model.Post)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected native type %T", bridge.ErrNoMessage, native)
	}

	var out bridge.Message
	if post.RootId != "" {
		out = append(out, c.ConvertReply(ctx, post.RootId))
	}
	if post.Message != "" {
		out = append(out, bridge.Text{Text: post.Message})
	}
	for _, fileID := range post.FileIds {
		out = append(out, c.convertFile(ctx, fileID))
	}
	if len(out) == 0 {
		out = append(out, bridge.Text{Text: "[unsupported]"})
	}
	return out, nil
}

func (c *Converter) convertFile(ctx context.Context, fileID string) bridge.Segment {
	bot, ok := c.Src.(*Bot)
	if !ok {
		return bridge.Text{Text: "[file]"}
	}
	info, _, err := bot.Client().GetFileInfo(ctx, fileID)
	if err != nil {
		c.Log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to get Mattermost file info")
		return bridge.Text{Text: "[error:file]"}
	}
	if strings.HasPrefix(info.MimeType, "image/") {
		data, _, err := bot.Client().GetFile(ctx, fileID)
		if err != nil {
			c.Log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to download Mattermost file")
			return bridge.Text{Text: "[error:image]"}
		}
		return bridge.Image{Raw: data, MimeType: info.MimeType, Name: info.Name}
	}
	// Non-image files stay behind authentication, so only the name crosses.
	return bridge.File{ID: fileID, MimeType: info.MimeType, Name: info.Name}
}
