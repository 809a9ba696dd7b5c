// Copyright 2024-2026 Aiku AI
package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
	"github.com/aiku/pipebridge/pkg/bridge/mediautil"
)

// Sender delivers universal messages into a Discord channel as a single
// message with file uploads attached.
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
		return fmt.Errorf("%w: bot %q is not a Discord bot", bridge.ErrDeliveryFailed, dstBot.Adapter())
	}

	send := &discordgo.MessageSend{}
	var texts []string
	for _, seg := range msg {
		switch seg := seg.(type) {
		case bridge.Reply:
			send.Reference = &discordgo.MessageReference{
				MessageID: seg.MessageID,
				ChannelID: target.ID,
				GuildID:   target.Scope,
			}
		case bridge.Text:
			texts = append(texts, seg.Text)
		case bridge.Image, bridge.Video, bridge.Record, bridge.File:
			if file := s.fetchFile(ctx, seg); file != nil {
				send.Files = append(send.Files, file)
			} else {
				texts = append(texts, bridge.SegmentFallback(seg))
			}
		default:
			texts = append(texts, bridge.SegmentFallback(seg))
		}
	}
	send.Content = strings.Join(texts, "")

	if send.Content == "" && len(send.Files) == 0 {
		return fmt.Errorf("%w: nothing deliverable to %s", bridge.ErrDeliveryFailed, target.String())
	}

	sent, err := bot.Session().ChannelMessageSendComplex(target.ID, send, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", bridge.ErrDeliveryFailed, err)
	}
	return s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, sent.ID)
}

// fetchFile materializes a media segment as an upload. Failed downloads
// return nil so the caller can degrade to a text placeholder.
func (s *Sender) fetchFile(ctx context.Context, seg bridge.Segment) *discordgo.File {
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
		return nil
	}

	if len(raw) == 0 {
		if url == "" {
			return nil
		}
		data, err := mediautil.Download(ctx, url)
		if err != nil {
			s.Log.Warn().Err(err).Str("url", url).Msg("Failed to download media for Discord upload")
			return nil
		}
		raw = data
	}
	if mime == "" {
		mime = mediautil.DetectMime(raw)
	}
	if name == "" {
		name = "attachment" + mediautil.ExtensionFor(mime)
	}
	return &discordgo.File{
		Name:        name,
		ContentType: mime,
		Reader:      bytes.NewReader(raw),
	}
}
