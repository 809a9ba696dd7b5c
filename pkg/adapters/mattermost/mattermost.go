// Copyright 2024-2026 Aiku AI

// Package mattermost implements the Mattermost adapter on top of the
// official server public API client. Routing targets use the channel ID.
package mattermost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// AdapterName is the stable adapter tag used in correlation and cache keys.
const AdapterName = "Mattermost"

const reconnectDelay = 5 * time.Second

// Bot is one authenticated Mattermost connection.
type Bot struct {
	cfg      bridge.MattermostConfig
	pipeline *bridge.Pipeline
	log      zerolog.Logger

	client   *model.Client4
	wsClient *model.WebSocketClient
	selfID   string

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ bridge.TextSendBot = (*Bot)(nil)

// NewBot creates a Mattermost adapter bot. Call Start to connect.
func NewBot(cfg bridge.MattermostConfig, pipeline *bridge.Pipeline, log zerolog.Logger) *Bot {
	client := model.NewAPIv4Client(cfg.ServerURL)
	client.SetToken(cfg.Token)
	return &Bot{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log.With().Str("component", "mattermost").Logger(),
		client:   client,
		stopChan: make(chan struct{}),
	}
}

func (b *Bot) Adapter() string { return AdapterName }
func (b *Bot) SelfID() string  { return b.selfID }

// Client exposes the underlying API client for converter file lookups.
func (b *Bot) Client() *model.Client4 { return b.client }

// Start authenticates and keeps a WebSocket listener running until Stop or
// ctx cancellation. Dropped connections are re-established after a delay.
func (b *Bot) Start(ctx context.Context) error {
	me, _, err := b.client.GetMe(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to verify Mattermost session: %w", err)
	}
	b.selfID = me.Id
	b.log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("Authenticated")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopChan:
			return nil
		default:
		}
		if err := b.connectWebSocket(); err != nil {
			b.log.Error().Err(err).Msg("WebSocket connection failed")
		} else {
			b.listenWebSocket(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopChan:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Stop closes the WebSocket connection and ends the event loop.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	if b.wsClient != nil {
		b.wsClient.Close()
	}
}

func (b *Bot) connectWebSocket() error {
	wsURL := httpToWS(b.cfg.ServerURL)
	var err error
	b.wsClient, err = model.NewWebSocketClient4(wsURL, b.client.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to create websocket client: %w", err)
	}
	b.wsClient.Listen()
	b.log.Info().Str("ws_url", wsURL).Msg("WebSocket connected")
	return nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

func (b *Bot) listenWebSocket(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case event, ok := <-b.wsClient.EventChannel:
			if !ok {
				b.log.Warn().Msg("WebSocket event channel closed, reconnecting")
				return
			}
			if event == nil {
				continue
			}
			b.handleEvent(ctx, event)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt *model.WebSocketEvent) {
	switch evt.EventType() {
	case model.WebsocketEventPosted:
		post, err := b.parsePostedEvent(evt)
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to parse posted event")
			return
		}
		if post == nil {
			return
		}
		b.handlePosted(ctx, evt, post)
	default:
		b.log.Trace().Str("event_type", string(evt.EventType())).Msg("Unhandled event type")
	}
}

// parsePostedEvent extracts and validates a post from a WebSocket event,
// applying echo prevention. Returns (nil, nil) to skip silently, (nil, err)
// to log an error, or (post, nil) to proceed.
func (b *Bot) parsePostedEvent(evt *model.WebSocketEvent) (*model.Post, error) {
	postJSON, ok := evt.GetData()["post"].(string)
	if !ok {
		return nil, fmt.Errorf("posted event missing post data")
	}

	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	// Echo prevention: skip own posts.
	if post.UserId == b.selfID {
		return nil, nil
	}

	// Echo prevention: skip non-default post types (system messages).
	if post.Type != "" && post.Type != model.PostTypeDefault {
		return nil, nil
	}

	return &post, nil
}

func (b *Bot) handlePosted(ctx context.Context, evt *model.WebSocketEvent, post *model.Post) {
	channelName, _ := evt.GetData()["channel_display_name"].(string)
	senderName, _ := evt.GetData()["sender_name"].(string)
	senderName = strings.TrimPrefix(senderName, "@")

	b.pipeline.HandleInbound(ctx, bridge.Inbound{
		Bot:       b,
		Event:     post,
		Source:    ident.Target{Adapter: AdapterName, ID: post.ChannelId, SelfID: b.selfID},
		GroupName: channelName,
		UserName:  senderName,
	})
}

// SendText delivers a plain text message, satisfying the fallback sender
// capability.
func (b *Bot) SendText(ctx context.Context, target ident.Target, text string) (string, error) {
	post, _, err := b.client.CreatePost(ctx, &model.Post{
		ChannelId: target.ID,
		Message:   text,
	})
	if err != nil {
		return "", err
	}
	return post.Id, nil
}
