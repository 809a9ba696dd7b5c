// Copyright 2024-2026 Aiku AI

// Package mediautil provides the small media helpers adapters use when
// relaying attachments: bounded downloads, URL liveness checks and MIME
// sniffing. No transcoding happens here.
package mediautil

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// maxDownloadSize caps attachment downloads at 50 MB.
const maxDownloadSize = 50 << 20

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Download fetches url and returns its content, capped at 50 MB.
func Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

// CheckURLOK reports whether a GET of url answers 200. Used for platform
// media URLs that expire or need refreshed access keys.
func CheckURLOK(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DetectMime sniffs the MIME type of raw content.
func DetectMime(raw []byte) string {
	return http.DetectContentType(raw)
}

// ExtensionFor returns a file extension (with dot) for a MIME type, or ""
// when none is known.
func ExtensionFor(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
