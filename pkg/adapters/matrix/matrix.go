// Copyright 2024-2026 Aiku AI

// Package matrix implements the Matrix adapter on top of mautrix-go.
// Routing targets use the room ID.
package matrix

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// AdapterName is the stable adapter tag used in correlation and cache keys.
const AdapterName = "Matrix"

// Bot is one Matrix client session.
type Bot struct {
	cfg      bridge.MatrixConfig
	pipeline *bridge.Pipeline
	log      zerolog.Logger

	client    *mautrix.Client
	startTime time.Time
}

var _ bridge.TextSendBot = (*Bot)(nil)

// NewBot creates a Matrix adapter bot. Call Start to begin syncing.
func NewBot(cfg bridge.MatrixConfig, pipeline *bridge.Pipeline, log zerolog.Logger) (*Bot, error) {
	client, err := mautrix.NewClient(cfg.HomeserverURL, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log.With().Str("component", "matrix").Logger(),
		client:   client,
	}, nil
}

func (b *Bot) Adapter() string { return AdapterName }
func (b *Bot) SelfID() string  { return string(b.client.UserID) }

// Client exposes the underlying mautrix client.
func (b *Bot) Client() *mautrix.Client { return b.client }

// Start runs the sync loop until ctx is cancelled. Events predating the
// session are skipped so backfilled history is not re-bridged.
func (b *Bot) Start(ctx context.Context) error {
	b.startTime = time.Now()

	syncer := b.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, b.handleMessage)

	b.log.Info().Str("user_id", string(b.client.UserID)).Msg("Matrix bot syncing")
	err := b.client.SyncWithContext(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *Bot) handleMessage(ctx context.Context, evt *event.Event) {
	// Echo prevention: skip our own events.
	if evt.Sender == b.client.UserID {
		return
	}
	if time.UnixMilli(evt.Timestamp).Before(b.startTime) {
		return
	}

	b.pipeline.HandleInbound(ctx, bridge.Inbound{
		Bot:       b,
		Event:     evt,
		Source:    ident.Target{Adapter: AdapterName, ID: string(evt.RoomID), SelfID: b.SelfID()},
		GroupName: b.roomName(ctx, evt.RoomID),
		UserName:  evt.Sender.Localpart(),
	})
}

func (b *Bot) roomName(ctx context.Context, roomID id.RoomID) string {
	var content event.RoomNameEventContent
	err := b.client.StateEvent(ctx, roomID, event.StateRoomName, "", &content)
	if err != nil {
		return ""
	}
	return content.Name
}

// SendText delivers a plain text message, satisfying the fallback sender
// capability.
func (b *Bot) SendText(ctx context.Context, target ident.Target, text string) (string, error) {
	resp, err := b.client.SendMessageEvent(ctx, id.RoomID(target.ID), event.EventMessage, &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	})
	if err != nil {
		return "", err
	}
	return string(resp.EventID), nil
}
