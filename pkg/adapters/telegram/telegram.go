// Copyright 2024-2026 Aiku AI

// Package telegram implements the Telegram adapter on top of telego.
//
// Telegram message IDs are only unique within one chat, so the bridge-wide
// message ID is the composite "<chat>$telegram$<message_id>". The marker is
// stripped again whenever a bare Telegram message ID is needed on the wire.
package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// AdapterName is the stable adapter tag used in correlation and cache keys.
const AdapterName = "Telegram"

// msgIDMark separates the chat ID from the per-chat message ID in composite
// bridge message IDs.
const msgIDMark = "$telegram$"

// MakeMessageID builds the composite bridge ID for a Telegram message.
func MakeMessageID(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + msgIDMark + strconv.Itoa(messageID)
}

// LocalMessageID extracts the per-chat message ID from a composite bridge
// ID. IDs without the marker pass through unchanged.
func LocalMessageID(id string) string {
	if _, local, found := strings.Cut(id, msgIDMark); found {
		return local
	}
	return id
}

// Bot is one Telegram bot session.
type Bot struct {
	cfg      bridge.TelegramConfig
	pipeline *bridge.Pipeline
	log      zerolog.Logger

	client *telego.Bot
	selfID string
}

var _ bridge.TextSendBot = (*Bot)(nil)

// NewBot creates a Telegram adapter bot. Call Start to begin polling.
func NewBot(cfg bridge.TelegramConfig, pipeline *bridge.Pipeline, log zerolog.Logger) (*Bot, error) {
	client, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log.With().Str("component", "telegram").Logger(),
		client:   client,
	}, nil
}

func (b *Bot) Adapter() string { return AdapterName }
func (b *Bot) SelfID() string  { return b.selfID }

// Client exposes the underlying telego client for converter media lookups.
func (b *Bot) Client() *telego.Bot { return b.client }

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	b.selfID = strconv.FormatInt(me.ID, 10)
	b.log.Info().Str("username", me.Username).Str("self_id", b.selfID).Msg("Telegram bot authenticated")

	updates, err := b.client.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return err
	}
	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	// Echo prevention: skip our own and other bots' messages.
	if msg.From == nil || msg.From.IsBot {
		return
	}

	source := ident.Target{
		Adapter: AdapterName,
		ID:      strconv.FormatInt(msg.Chat.ID, 10),
		SelfID:  b.selfID,
	}
	if msg.MessageThreadID != 0 && msg.IsTopicMessage {
		source.Scope = strconv.Itoa(msg.MessageThreadID)
	}

	userName := msg.From.FirstName
	if userName == "" {
		userName = msg.From.Username
	}

	b.pipeline.HandleInbound(ctx, bridge.Inbound{
		Bot:       b,
		Event:     &update,
		Source:    source,
		GroupName: msg.Chat.Title,
		UserName:  userName,
	})
}

// SendText delivers a plain text message, satisfying the fallback sender
// capability.
func (b *Bot) SendText(ctx context.Context, target ident.Target, text string) (string, error) {
	chatID, err := strconv.ParseInt(target.ID, 10, 64)
	if err != nil {
		return "", err
	}
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	}
	if target.Scope != "" {
		if threadID, err := strconv.Atoi(target.Scope); err == nil {
			params.MessageThreadID = threadID
		}
	}
	sent, err := b.client.SendMessage(ctx, params)
	if err != nil {
		return "", err
	}
	return MakeMessageID(sent.Chat.ID, sent.MessageID), nil
}
