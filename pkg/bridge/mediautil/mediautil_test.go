// Copyright 2024-2026 Aiku AI

package mediautil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDownload(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	t.Cleanup(srv.Close)

	data, err := Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Download: got %q, want %q", data, "payload")
	}
}

func TestDownloadNon200(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	if _, err := Download(context.Background(), srv.URL); err == nil {
		t.Error("Download of 404 URL: got nil error")
	}
}

func TestCheckURLOK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)

	if !CheckURLOK(context.Background(), srv.URL+"/live") {
		t.Error("CheckURLOK on 200 URL: got false")
	}
	if CheckURLOK(context.Background(), srv.URL+"/gone") {
		t.Error("CheckURLOK on 403 URL: got true")
	}
}

func TestDetectMime(t *testing.T) {
	t.Parallel()
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	if got := DetectMime(png); got != "image/png" {
		t.Errorf("DetectMime: got %q, want %q", got, "image/png")
	}
}

func TestExtensionFor(t *testing.T) {
	t.Parallel()
	// The exact pick depends on the platform mime table; any sane png
	// extension is fine.
	if got := ExtensionFor("image/png"); !strings.HasPrefix(got, ".") || !strings.Contains(got, "png") {
		t.Errorf("ExtensionFor(image/png): got %q, want a .png-style extension", got)
	}
	if got := ExtensionFor("not/a-real-type"); got != "" {
		t.Errorf("ExtensionFor(bogus): got %q, want empty", got)
	}
}
