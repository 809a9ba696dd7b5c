// Copyright 2024-2026 Aiku AI
package mattermost

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
	"github.com/aiku/pipebridge/pkg/bridge/mediautil"
)

// Sender delivers universal messages into a Mattermost channel as a single
// post with uploaded attachments.
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
		return fmt.Errorf("%w: bot %q is not a Mattermost bot", bridge.ErrDeliveryFailed, dstBot.Adapter())
	}

	post := &model.Post{ChannelId: target.ID}
	var texts []string
	for _, seg := range msg {
		switch seg := seg.(type) {
		case bridge.Reply:
			post.RootId = seg.MessageID
		case bridge.Text:
			texts = append(texts, seg.Text)
		case bridge.Image, bridge.Video, bridge.Record, bridge.File:
			if fileID := s.uploadMedia(ctx, bot, target.ID, seg); fileID != "" {
				post.FileIds = append(post.FileIds, fileID)
			} else {
				texts = append(texts, bridge.SegmentFallback(seg))
			}
		default:
			texts = append(texts, bridge.SegmentFallback(seg))
		}
	}
	post.Message = strings.Join(texts, "")

	if post.Message == "" && len(post.FileIds) == 0 {
		return fmt.Errorf("%w: nothing deliverable to %s", bridge.ErrDeliveryFailed, target.String())
	}

	sent, _, err := bot.Client().CreatePost(ctx, post)
	if err != nil {
		return fmt.Errorf("%w: %w", bridge.ErrDeliveryFailed, err)
	}
	return s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, sent.Id)
}

// uploadMedia pushes one media segment into the channel's file store and
// returns the resulting file ID, or "" if the segment cannot be uploaded.
func (s *Sender) uploadMedia(ctx context.Context, bot *Bot, channelID string, seg bridge.Segment) string {
	var url, mime, name string
	var raw []byte
	switch seg := seg.(type) {
	case bridge.Image:
		url, mime, name, raw = seg.URL, seg.MimeType, seg.Name, seg.Raw
	case bridge.Video:
		url, mime, name = seg.URL, seg.MimeType, seg.Name
	case bridge.Record:
		url, mime, name = seg.URL, seg.MimeType, seg.Name
	case bridge.File:
		url, mime, name = seg.URL, seg.MimeType, seg.Name
	default:
		return ""
	}

	if len(raw) == 0 {
		if url == "" {
			return ""
		}
		data, err := mediautil.Download(ctx, url)
		if err != nil {
			s.Log.Warn().Err(err).Str("url", url).Msg("Failed to download media for Mattermost upload")
			return ""
		}
		raw = data
	}
	if mime == "" {
		mime = mediautil.DetectMime(raw)
	}
	if name == "" {
		name = "attachment" + mediautil.ExtensionFor(mime)
	}

	resp, _, err := bot.Client().UploadFile(ctx, raw, channelID, name)
	if err != nil {
		s.Log.Warn().Err(err).Str("name", name).Msg("Failed to upload file to Mattermost")
		return ""
	}
	if len(resp.FileInfos) == 0 {
		return ""
	}
	return resp.FileInfos[0].Id
}
