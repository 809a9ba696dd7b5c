// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"

	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

func init() {
	RegisterConverter("", func(deps Deps, src, dst Bot) Converter {
		return &FallbackConverter{BaseConverter{Deps: deps, Src: src, Dst: dst}}
	})
	RegisterSender("", func(deps Deps) Sender {
		return &FallbackSender{BaseSender{Deps: deps}}
	})
}

// FallbackConverter handles adapters with no dedicated converter. It only
// understands events exposing the TextEvent shape and produces a single
// text segment; anything richer needs a platform implementation.
type FallbackConverter struct {
	BaseConverter
}

func (c *FallbackConverter) GetMessage(event any) (any, bool) {
	te, ok := event.(TextEvent)
	if !ok {
		return nil, false
	}
	return te.EventPlainText(), true
}

func (c *FallbackConverter) GetMessageID(_ context.Context, event any, _ Bot) (string, error) {
	te, ok := event.(TextEvent)
	if !ok {
		return "", ErrNoMessage
	}
	return te.EventMessageID(), nil
}

func (c *FallbackConverter) Convert(_ context.Context, native any) (Message, error) {
	switch msg := native.(type) {
	case Message:
		return msg, nil
	case string:
		return Message{Text{Text: msg}}, nil
	case fmt.Stringer:
		return Message{Text{Text: msg.String()}}, nil
	default:
		return Message{Text{Text: fmt.Sprintf("[unsupported:%T]", native)}}, nil
	}
}

// FallbackSender flattens the whole message to plain text and delivers it
// through the bot's TextSendBot capability. A destination bot without that
// capability fails the send: there is no degradable equivalent left.
type FallbackSender struct {
	BaseSender
}

func (s *FallbackSender) Send(ctx context.Context, dstBot Bot, target ident.Target, msg Message, srcAdapter, srcID string) error {
	bot, ok := dstBot.(TextSendBot)
	if !ok {
		return fmt.Errorf("%w: %s bot cannot send text", ErrDeliveryFailed, dstBot.Adapter())
	}

	text := msg.PlainText()
	if text == "" {
		return fmt.Errorf("%w: nothing sendable after flattening", ErrDeliveryFailed)
	}

	dstID, err := bot.SendText(ctx, target, text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return s.RecordDelivery(ctx, srcAdapter, srcID, dstBot, dstID)
}
