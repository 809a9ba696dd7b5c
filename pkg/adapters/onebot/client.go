// Copyright 2024-2026 Aiku AI

// Package onebot implements the OneBot v11 (QQ) adapter over a forward
// WebSocket connection.
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/database"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// AdapterName is the stable adapter tag used in correlation and cache keys.
const AdapterName = "OneBot V11"

// actionTimeout bounds one API round-trip over the WebSocket.
const actionTimeout = 30 * time.Second

// Bot is a OneBot v11 session over a forward WebSocket connection.
type Bot struct {
	cfg      bridge.OneBotConfig
	pipeline *bridge.Pipeline
	log      zerolog.Logger

	connLock  sync.Mutex
	conn      *websocket.Conn
	writeLock sync.Mutex

	// Written by fetchSelfID after connect, read by the event loop.
	selfID atomic.Value

	pendingLock sync.Mutex
	pending     map[string]chan gjson.Result

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ bridge.TextSendBot = (*Bot)(nil)

// NewBot creates a OneBot adapter bot. Call Start to connect.
func NewBot(cfg bridge.OneBotConfig, pipeline *bridge.Pipeline, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log.With().Str("component", "onebot").Logger(),
		pending:  make(map[string]chan gjson.Result),
		stopChan: make(chan struct{}),
	}
}

func (b *Bot) Adapter() string { return AdapterName }

func (b *Bot) SelfID() string {
	id, _ := b.selfID.Load().(string)
	return id
}

// Start connects to the OneBot endpoint and runs the event loop, with
// reconnection, until ctx is cancelled or Stop is called.
func (b *Bot) Start(ctx context.Context) error {
	for {
		if err := b.connect(ctx); err != nil {
			b.log.Error().Err(err).Msg("OneBot connection failed")
		} else {
			b.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopChan:
			return nil
		case <-time.After(5 * time.Second):
			b.log.Info().Msg("Reconnecting to OneBot endpoint")
		}
	}
}

// Stop closes the connection and terminates Start.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.connLock.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.connLock.Unlock()
}

func (b *Bot) connect(ctx context.Context) error {
	header := http.Header{}
	if b.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+b.cfg.AccessToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", b.cfg.URL, err)
	}
	b.connLock.Lock()
	b.conn = conn
	b.connLock.Unlock()
	b.log.Info().Str("url", b.cfg.URL).Msg("Connected to OneBot endpoint")

	go b.fetchSelfID(ctx)
	return nil
}

func (b *Bot) fetchSelfID(ctx context.Context) {
	data, err := b.CallAction(ctx, "get_login_info", nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to fetch login info")
		return
	}
	id := data.Get("user_id").String()
	b.selfID.Store(id)
	b.log.Info().Str("self_id", id).Msg("OneBot login info fetched")
}

func (b *Bot) readLoop(ctx context.Context) {
	for {
		select {
		case <-b.stopChan:
			return
		default:
		}

		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			b.log.Warn().Err(err).Msg("OneBot read failed, connection lost")
			return
		}

		frame := gjson.ParseBytes(raw)
		if frame.Get("echo").Exists() {
			b.resolveAction(frame)
			continue
		}
		b.handleEvent(ctx, raw, frame)
	}
}

func (b *Bot) resolveAction(frame gjson.Result) {
	echo := frame.Get("echo").String()
	b.pendingLock.Lock()
	ch, ok := b.pending[echo]
	delete(b.pending, echo)
	b.pendingLock.Unlock()
	if ok {
		ch <- frame
	}
}

// CallAction performs one OneBot API call and returns the response data.
// Calls are correlated with responses through a per-call echo token.
func (b *Bot) CallAction(ctx context.Context, action string, params any) (gjson.Result, error) {
	echo := uuid.NewString()
	frame, err := json.Marshal(map[string]any{
		"action": action,
		"params": params,
		"echo":   echo,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal action: %w", err)
	}

	ch := make(chan gjson.Result, 1)
	b.pendingLock.Lock()
	b.pending[echo] = ch
	b.pendingLock.Unlock()
	defer func() {
		b.pendingLock.Lock()
		delete(b.pending, echo)
		b.pendingLock.Unlock()
	}()

	b.writeLock.Lock()
	err = b.conn.WriteMessage(websocket.TextMessage, frame)
	b.writeLock.Unlock()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to send action %s: %w", action, err)
	}

	select {
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case <-b.stopChan:
		return gjson.Result{}, fmt.Errorf("bot stopped during action %s", action)
	case <-time.After(actionTimeout):
		return gjson.Result{}, fmt.Errorf("action %s timed out", action)
	case resp := <-ch:
		if retcode := resp.Get("retcode").Int(); retcode != 0 {
			return gjson.Result{}, fmt.Errorf("action %s failed: retcode %d (%s)",
				action, retcode, resp.Get("wording").String())
		}
		return resp.Get("data"), nil
	}
}

func (b *Bot) handleEvent(ctx context.Context, raw []byte, frame gjson.Result) {
	if frame.Get("post_type").String() != "message" {
		return
	}
	if frame.Get("message_type").String() != "group" {
		return
	}

	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		b.log.Warn().Err(err).Msg("Failed to unmarshal message event")
		return
	}
	// Echo prevention: skip our own messages.
	selfID := b.SelfID()
	if selfID != "" && strconv.FormatInt(evt.UserID, 10) == selfID {
		return
	}

	userName := evt.Sender.Card
	if userName == "" {
		userName = evt.Sender.Nickname
	}
	if userName == "" {
		userName = strconv.FormatInt(evt.UserID, 10)
	}

	groupID := strconv.FormatInt(evt.GroupID, 10)
	b.pipeline.HandleInbound(ctx, bridge.Inbound{
		Bot:   b,
		Event: &evt,
		Source: ident.Target{
			Adapter: AdapterName,
			ID:      groupID,
			SelfID:  selfID,
		},
		GroupName: b.groupName(ctx, groupID),
		UserName:  userName,
	})
}

// groupName resolves a group's display name, cached in the KV store so the
// lookup does not hit the platform on every message.
func (b *Bot) groupName(ctx context.Context, groupID string) string {
	cacheKey := "group_name_" + groupID
	if name, ok, _ := b.pipeline.DB().KV.Get(ctx, AdapterName, cacheKey); ok {
		return name
	}
	data, err := b.CallAction(ctx, "get_group_info", map[string]any{"group_id": groupID})
	if err != nil {
		b.log.Warn().Err(err).Str("group_id", groupID).Msg("Failed to fetch group info")
		return ""
	}
	name := data.Get("group_name").String()
	if name != "" {
		_ = b.pipeline.DB().KV.Set(ctx, AdapterName, cacheKey, name, database.DefaultTTL)
	}
	return name
}

// SendText delivers a plain text message, satisfying the fallback sender
// capability.
func (b *Bot) SendText(ctx context.Context, target ident.Target, text string) (string, error) {
	return b.sendSegments(ctx, target, []Segment{NewText(text)})
}

// sendSegments delivers a native segment array and returns the assigned
// message ID.
func (b *Bot) sendSegments(ctx context.Context, target ident.Target, segments []Segment) (string, error) {
	params := map[string]any{"message": segments}
	if target.Private {
		params["message_type"] = "private"
		params["user_id"] = target.ID
	} else {
		params["message_type"] = "group"
		params["group_id"] = target.ID
	}
	data, err := b.CallAction(ctx, "send_msg", params)
	if err != nil {
		return "", err
	}
	return data.Get("message_id").String(), nil
}
