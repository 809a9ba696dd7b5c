// Copyright 2024-2026 Aiku AI
package matrix

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix/event"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func init() {
	bridge.RegisterConverter(AdapterName, NewConverter)
	bridge.RegisterSender(AdapterName, NewSender)
}

// Converter turns Matrix message events into universal messages.
type Converter struct {
	bridge.BaseConverter
}

var _ bridge.Converter = (*Converter)(nil)

func NewConverter(deps bridge.Deps, src, dst bridge.Bot) bridge.Converter {
	return &Converter{BaseConverter: bridge.BaseConverter{Deps: deps, Src: src, Dst: dst}}
}

func (c *Converter) GetMessage(ev any) (any, bool) {
	evt, ok := ev.(*event.Event)
	if !ok {
		return nil, false
	}
	if _, ok := evt.Content.Parsed.(*event.MessageEventContent); !ok {
		return nil, false
	}
	return evt, true
}

func (c *Converter) GetMessageID(ctx context.Context, ev any, bot bridge.Bot) (string, error) {
	evt, ok := ev.(*event.Event)
	if !ok {
		return "", bridge.ErrNoMessage
	}
	return string(evt.ID), nil
}

// Convert maps the event body and media onto universal segments. Media
// content URIs are rewritten to homeserver download URLs so other platforms
// can fetch them.
func (c *Converter) Convert(ctx context.Context, native any) (bridge.Message, error) {
	evt, ok := native.(*event.Event)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected native type %T", bridge.ErrNoMessage, native)
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return nil, fmt.Errorf("%w: event %s has no message content", bridge.ErrNoMessage, evt.ID)
	}

	var out bridge.Message
	if relates := content.RelatesTo; relates != nil && relates.GetReplyTo() != "" {
		out = append(out, c.ConvertReply(ctx, string(relates.GetReplyTo())))
	}

	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		out = append(out, bridge.Text{Text: content.Body})
	case event.MsgImage:
		out = append(out, c.convertMedia(content, func(url, mime, name string) bridge.Segment {
			return bridge.Image{URL: url, MimeType: mime, Name: name}
		}))
	case event.MsgVideo:
		out = append(out, c.convertMedia(content, func(url, mime, name string) bridge.Segment {
			return bridge.Video{URL: url, MimeType: mime, Name: name}
		}))
	case event.MsgAudio:
		out = append(out, c.convertMedia(content, func(url, mime, name string) bridge.Segment {
			return bridge.Record{URL: url, MimeType: mime, Name: name}
		}))
	case event.MsgFile:
		out = append(out, c.convertMedia(content, func(url, mime, name string) bridge.Segment {
			return bridge.File{URL: url, MimeType: mime, Name: name}
		}))
	default:
		out = append(out, bridge.Text{Text: "[" + string(content.MsgType) + "]"})
	}
	return out, nil
}

// convertMedia resolves the event's mxc URI into a plain HTTP download URL.
func (c *Converter) convertMedia(content *event.MessageEventContent, build func(url, mime, name string) bridge.Segment) bridge.Segment {
	bot, ok := c.Src.(*Bot)
	if !ok {
		return bridge.Text{Text: "[media]"}
	}
	uri, err := content.URL.Parse()
	if err != nil {
		c.Log.Warn().Err(err).Str("url", string(content.URL)).Msg("Bad mxc URI")
		return bridge.Text{Text: "[error:" + string(content.MsgType) + "]"}
	}
	var mime string
	if content.Info != nil {
		mime = content.Info.MimeType
	}
	url := bot.Client().BuildClientURL("v1", "media", "download", uri.Homeserver, uri.FileID)
	return build(url, mime, content.Body)
}
