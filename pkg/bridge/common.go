// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"

	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// BaseConverter carries the conversion state shared by all adapter
// converters: the bots on either side of the relay and the persistence
// boundary. Adapter converters embed it for reply resolution.
type BaseConverter struct {
	Deps
	Src Bot
	Dst Bot
}

// ReplyID resolves the destination-side ID of a message being replied to.
// The replied-to message either originated on the source platform (relayed
// src -> dst, look up its dst copy) or originated on the destination (relayed
// dst -> src, our side holds the dst copy's ID). Returns "" when no
// correlation exists: a miss is normal, not an error.
func (c *BaseConverter) ReplyID(ctx context.Context, messageID string) (string, error) {
	if c.Dst == nil {
		return "", nil
	}
	id, err := c.DB.MsgID.LookupDst(ctx, c.Src.Adapter(), c.Dst.Adapter(), messageID)
	if err != nil || id != "" {
		return id, err
	}
	return c.DB.MsgID.LookupSrc(ctx, c.Dst.Adapter(), c.Src.Adapter(), messageID)
}

// ConvertReply turns a replied-to source message ID into a Reply segment, or
// a text placeholder when no threading information is available. A storage
// failure also degrades to the placeholder: a lost reply thread must not
// abort the relay.
func (c *BaseConverter) ConvertReply(ctx context.Context, srcMsgID string) Segment {
	id, err := c.ReplyID(ctx, srcMsgID)
	if err != nil {
		c.Log.Warn().Err(err).Str("src_msg_id", srcMsgID).Msg("Failed to resolve reply correlation")
	}
	if id != "" {
		return Reply{MessageID: id}
	}
	return Text{Text: fmt.Sprintf("[reply:%s]", srcMsgID)}
}

// BaseSender provides the correlation recording shared by all adapter
// senders.
type BaseSender struct {
	Deps
}

// RecordDelivery persists the correlation between the relayed message's
// source ID and the ID the destination platform just assigned. No-op when
// the relay carried no source identity or the platform returned no ID.
func (s *BaseSender) RecordDelivery(ctx context.Context, srcAdapter, srcID string, dstBot Bot, dstID string) error {
	if srcAdapter == "" || srcID == "" || dstID == "" {
		return nil
	}
	return s.DB.MsgID.Record(ctx, srcAdapter, srcID, dstBot.Adapter(), dstID)
}

// TextEvent is the minimal event shape the fallback converter understands.
type TextEvent interface {
	EventMessageID() string
	EventPlainText() string
}

// TextSendBot is implemented by bots that can deliver a plain text message.
// The fallback sender relies on it for adapters with no dedicated sender.
type TextSendBot interface {
	Bot
	SendText(ctx context.Context, target ident.Target, text string) (dstID string, err error)
}
