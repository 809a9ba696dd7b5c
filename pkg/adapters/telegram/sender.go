// Copyright 2024-2026 Aiku AI
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Sender delivers universal messages into a Telegram chat.
type Sender struct {
	bridge.BaseSender
}

var _ bridge.Sender = (*Sender)(nil)

func NewSender(deps bridge.Deps) bridge.Sender {
	return &Sender{BaseSender: bridge.BaseSender{Deps: deps}}
}

// Send renders the message as one text message plus one API call per media
// segment. Every sent Telegram message is correlated back to the source ID,
// so replies on either side keep resolving.
func (s *Sender) Send(ctx context.Context, dstBot bridge.Bot, target ident.Target, msg bridge.Message, srcAdapter, srcID string) error {
	bot, ok := dstBot.(*Bot)
	if !ok {
		return fmt.Errorf("%w: bot %q is not a Telegram bot", bridge.ErrDeliveryFailed, dstBot.Adapter())
	}

	chatID, err := strconv.ParseInt(target.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad chat ID %q: %w", bridge.ErrDeliveryFailed, target.ID, err)
	}

	var replyParams *telego.ReplyParameters
	if reply := msg.FirstReply(); reply != nil {
		if local, err := strconv.Atoi(LocalMessageID(reply.MessageID)); err == nil {
			replyParams = &telego.ReplyParameters{MessageID: local}
		}
	}
	threadID := 0
	if target.Scope != "" {
		threadID, _ = strconv.Atoi(target.Scope)
	}

	var texts []string
	var media []bridge.Segment
	for _, seg := range msg {
		switch seg := seg.(type) {
		case bridge.Reply:
			// Consumed above.
		case bridge.Text:
			texts = append(texts, seg.Text)
		case bridge.Mention:
			texts = append(texts, bridge.SegmentFallback(seg))
		case bridge.Image, bridge.Video, bridge.Record, bridge.File:
			media = append(media, seg)
		default:
			texts = append(texts, bridge.SegmentFallback(seg))
		}
	}

	sentAny := false
	record := func(sent *telego.Message) error {
		sentAny = true
		return s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, MakeMessageID(sent.Chat.ID, sent.MessageID))
	}
	// The reply reference rides on the first API call only.
	takeReply := func() *telego.ReplyParameters {
		rp := replyParams
		replyParams = nil
		return rp
	}

	if text := strings.Join(texts, ""); text != "" {
		sent, err := bot.Client().SendMessage(ctx, &telego.SendMessageParams{
			ChatID:          telego.ChatID{ID: chatID},
			Text:            text,
			MessageThreadID: threadID,
			ReplyParameters: takeReply(),
		})
		if err != nil {
			return fmt.Errorf("%w: %w", bridge.ErrDeliveryFailed, err)
		}
		if err := record(sent); err != nil {
			return err
		}
	}

	for _, seg := range media {
		sent, err := s.sendMedia(ctx, bot, chatID, threadID, takeReply(), seg)
		if err != nil {
			s.Log.Warn().Err(err).Str("segment", seg.SegmentType()).Msg("Failed to send Telegram media")
			continue
		}
		if err := record(sent); err != nil {
			return err
		}
	}

	if !sentAny {
		return fmt.Errorf("%w: nothing deliverable to %s", bridge.ErrDeliveryFailed, target.String())
	}
	return nil
}

func (s *Sender) sendMedia(ctx context.Context, bot *Bot, chatID int64, threadID int, reply *telego.ReplyParameters, seg bridge.Segment) (*telego.Message, error) {
	chat := telego.ChatID{ID: chatID}
	switch seg := seg.(type) {
	case bridge.Image:
		return bot.Client().SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:          chat,
			Photo:           telego.InputFile{URL: seg.URL},
			MessageThreadID: threadID,
			ReplyParameters: reply,
		})
	case bridge.Video:
		return bot.Client().SendVideo(ctx, &telego.SendVideoParams{
			ChatID:          chat,
			Video:           telego.InputFile{URL: seg.URL},
			MessageThreadID: threadID,
			ReplyParameters: reply,
		})
	case bridge.Record:
		return bot.Client().SendVoice(ctx, &telego.SendVoiceParams{
			ChatID:          chat,
			Voice:           telego.InputFile{URL: seg.URL},
			MessageThreadID: threadID,
			ReplyParameters: reply,
		})
	case bridge.File:
		return bot.Client().SendDocument(ctx, &telego.SendDocumentParams{
			ChatID:          chat,
			Document:        telego.InputFile{URL: seg.URL},
			MessageThreadID: threadID,
			ReplyParameters: reply,
		})
	default:
		return nil, fmt.Errorf("unsupported media segment %q", seg.SegmentType())
	}
}
