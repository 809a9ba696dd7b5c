// Copyright 2024-2026 Aiku AI

// Package discord implements the Discord adapter on top of discordgo.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// AdapterName is the stable adapter tag used in correlation and cache keys.
const AdapterName = "Discord"

// Bot is one Discord gateway session. Routing targets use the channel ID.
type Bot struct {
	cfg      bridge.DiscordConfig
	pipeline *bridge.Pipeline
	log      zerolog.Logger

	session *discordgo.Session
	selfID  string
}

var _ bridge.TextSendBot = (*Bot)(nil)

// NewBot creates a Discord adapter bot. Call Start to open the gateway.
func NewBot(cfg bridge.DiscordConfig, pipeline *bridge.Pipeline, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return &Bot{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log.With().Str("component", "discord").Logger(),
		session:  session,
	}, nil
}

func (b *Bot) Adapter() string { return AdapterName }
func (b *Bot) SelfID() string  { return b.selfID }

// Session exposes the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Start opens the gateway connection and blocks until ctx is cancelled.
// selfID must be written before the message handler registers; handlers run
// on gateway goroutines.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return err
	}
	if user := b.session.State.User; user != nil {
		b.selfID = user.ID
		b.log.Info().Str("username", user.Username).Str("self_id", b.selfID).Msg("Discord bot connected")
	}
	remove := b.session.AddHandler(b.handleMessageCreate)
	defer remove()
	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.selfID {
		return
	}

	source := ident.Target{
		Adapter: AdapterName,
		ID:      m.ChannelID,
		SelfID:  b.selfID,
		Scope:   m.GuildID,
	}

	b.pipeline.HandleInbound(context.Background(), bridge.Inbound{
		Bot:       b,
		Event:     m,
		Source:    source,
		GroupName: b.channelName(m.ChannelID),
		UserName:  m.Author.Username,
	})
}

func (b *Bot) channelName(channelID string) string {
	if ch, err := b.session.State.Channel(channelID); err == nil && ch.Name != "" {
		return ch.Name
	}
	if ch, err := b.session.Channel(channelID); err == nil {
		return ch.Name
	}
	return ""
}

// SendText delivers a plain text message, satisfying the fallback sender
// capability.
func (b *Bot) SendText(ctx context.Context, target ident.Target, text string) (string, error) {
	sent, err := b.session.ChannelMessageSendComplex(target.ID, &discordgo.MessageSend{
		Content: text,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}
