// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge/database"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Bot is one authenticated session on one platform. Concrete adapters wrap
// their SDK client in a Bot implementation; converters and senders downcast
// to their own bot type.
type Bot interface {
	// Adapter returns the stable adapter name tag, e.g. "Telegram".
	Adapter() string
	// SelfID returns the bot's own account ID on the platform.
	SelfID() string
}

// Converter adapts one platform's native message/event model to the
// universal representation. A converter instance is bound to one relay:
// the source bot it reads from and the destination bot it converts for
// (the destination is needed to resolve reply correlation).
type Converter interface {
	// GetMessage extracts the native message from an inbound event. Pure
	// extraction, no I/O; ok is false when the event carries no message.
	GetMessage(event any) (native any, ok bool)
	// GetMessageID returns the stable, unique platform ID for the event's
	// message. May perform one idempotent platform round-trip.
	GetMessageID(ctx context.Context, event any, bot Bot) (string, error)
	// Convert translates the native message segment by segment. A segment
	// that cannot be translated degrades to a placeholder text segment;
	// the rest of the message is never lost.
	Convert(ctx context.Context, native any) (Message, error)
}

// Sender renders a universal message into the destination platform's native
// form and delivers it. On success, if srcAdapter and srcID are set, the
// destination-assigned ID is recorded in the correlation store before Send
// returns: delivery and correlation recording are one logical unit.
type Sender interface {
	Send(ctx context.Context, dstBot Bot, target ident.Target, msg Message, srcAdapter, srcID string) error
}

// Deps carries the shared collaborators handed to converter and sender
// factories: the persistence boundary and a parent logger.
type Deps struct {
	DB  *database.Database
	Log zerolog.Logger
}

// ConverterFactory builds a converter bound to one (source bot, destination
// bot) pair. dst may be nil when no destination is known yet (pure
// extraction use).
type ConverterFactory func(deps Deps, src, dst Bot) Converter

// SenderFactory builds the sender for one adapter.
type SenderFactory func(deps Deps) Sender
