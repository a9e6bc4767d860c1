package services_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"secondhand/internal/services"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestUploadLocalStore(t *testing.T) {
	dir := t.TempDir()
	svc := services.NewUploadService(services.LocalStore{Dir: dir, URLPrefix: "/media/"})

	url, err := svc.Image(context.Background(), int64(len(pngHeader)), bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "/media/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/media/")))
	if err != nil || !bytes.Equal(b, pngHeader) {
		t.Fatalf("stored bytes differ: %v", err)
	}
}

func TestUploadRejects(t *testing.T) {
	svc := services.NewUploadService(services.LocalStore{Dir: t.TempDir(), URLPrefix: "/media"})

	_, err := svc.Image(context.Background(), 11, strings.NewReader("hello world"))
	wantCode(t, err, http.StatusBadRequest)

	_, err = svc.Image(context.Background(), services.MaxImageBytes+1, bytes.NewReader(pngHeader))
	wantCode(t, err, http.StatusBadRequest)

	_, err = svc.Image(context.Background(), 0, bytes.NewReader(nil))
	wantCode(t, err, http.StatusBadRequest)
}
