// Copyright 2024-2026 Aiku AI

// Package ident holds the platform-independent addressing types shared by
// the bridge core and its persistence layer.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Target identifies one chat destination on one platform: the adapter tag
// plus whatever the platform uses to address the conversation. Different
// platforms use incompatible ID formats (numeric, string, composite), so
// everything is kept as strings and scoped by the adapter tag.
type Target struct {
	// Adapter is the stable adapter name tag, e.g. "OneBot V11" or "Telegram".
	Adapter string `json:"adapter" yaml:"adapter"`
	// ID is the chat/channel/user ID on the platform.
	ID string `json:"id" yaml:"id"`
	// Channel is set for guild-channel style targets.
	Channel bool `json:"channel,omitempty" yaml:"channel,omitempty"`
	// Private is set for direct-message targets.
	Private bool `json:"private,omitempty" yaml:"private,omitempty"`
	// SelfID is the bot account ID this target was observed through.
	SelfID string `json:"self_id,omitempty" yaml:"self_id,omitempty"`
	// Scope is an optional extra discriminator for platforms with nested
	// addressing (e.g. Telegram forum topics).
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Key derives a stable 31-bit routing key for the target. The pipe table is
// keyed by this value rather than the full tuple so lookups stay a single
// integer comparison regardless of platform ID format. SelfID is excluded:
// the same conversation keeps one key no matter which bot account observed
// it, so config-seeded pipes match live events.
func (t Target) Key() int64 {
	var sb strings.Builder
	sb.WriteString(t.ID)
	sb.WriteString(strconv.FormatBool(t.Channel))
	sb.WriteString(strconv.FormatBool(t.Private))
	if t.Scope != "" {
		sb.WriteString(t.Scope)
	}
	if t.Adapter != "" {
		sb.WriteString(t.Adapter)
	}

	var h int64
	for _, b := range []byte(sb.String()) {
		h = (h << 5) - h + int64(b)
		h &= 0xFFFFFFFFFFFF
	}
	return h % (1 << 31)
}

// Same reports whether two targets address the same conversation.
func (t Target) Same(other Target) bool {
	return t.Key() == other.Key()
}

func (t Target) String() string {
	return fmt.Sprintf("<%s: %s>", t.Adapter, t.ID)
}

// DisplayPipe renders a pipe as "<adapter: id> ==> <adapter: id>" for logs
// and operator-facing listings.
func DisplayPipe(listen, target Target) string {
	return fmt.Sprintf("%s ==> %s", listen, target)
}
