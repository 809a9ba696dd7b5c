// Copyright 2024-2026 Aiku AI

package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/aiku/pipebridge/pkg/bridge"
)

func TestConvertAttachment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		att  *discordgo.MessageAttachment
		want string
	}{
		{
			"image",
			&discordgo.MessageAttachment{ContentType: "image/png", URL: "u", Filename: "a.png"},
			"image",
		},
		{
			"video",
			&discordgo.MessageAttachment{ContentType: "video/mp4", URL: "u", Filename: "a.mp4"},
			"video",
		},
		{
			"audio",
			&discordgo.MessageAttachment{ContentType: "audio/ogg", URL: "u", Filename: "a.ogg"},
			"record",
		},
		{
			"generic",
			&discordgo.MessageAttachment{ContentType: "application/pdf", URL: "u", Filename: "a.pdf"},
			"file",
		},
		{
			"untyped",
			&discordgo.MessageAttachment{URL: "u", Filename: "blob"},
			"file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			seg := convertAttachment(tt.att)
			if got := seg.SegmentType(); got != tt.want {
				t.Errorf("convertAttachment: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertAttachmentKeepsMetadata(t *testing.T) {
	t.Parallel()
	att := &discordgo.MessageAttachment{
		ID:          "att1",
		ContentType: "application/zip",
		URL:         "https://cdn.example/att1.zip",
		Filename:    "archive.zip",
	}
	seg := convertAttachment(att)
	file, ok := seg.(bridge.File)
	if !ok {
		t.Fatalf("convertAttachment: got %T, want bridge.File", seg)
	}
	if file.ID != "att1" || file.URL != att.URL || file.Name != "archive.zip" || file.MimeType != "application/zip" {
		t.Errorf("convertAttachment metadata: got %+v", file)
	}
}
