package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"secondhand/internal/repos"
)

func TestUnknownRouteIsEnvelope(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	status, env := call(t, app, http.MethodGet, "/api/nope", "", nil)
	if status != http.StatusNotFound || env.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d %+v", status, env)
	}
}

func TestBodyTooLarge(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	big := `{"username":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestMediaTraversalBlocked(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	for _, p := range []string{"/media/../go.mod", "/media/%2e%2e/secret", "/media/a/../../x"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, p, nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", p, resp.StatusCode)
		}
	}
}

func TestHomeAndHealth(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Film camera") {
		t.Fatalf("home: %d %s", resp.StatusCode, body)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "secondhand_http_requests_total") {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}

func TestUploadImageServedFromMedia(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	tok := login(t, app, "alice", repos.DemoPassword)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "pic.png")
	_, _ = fw.Write(png)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: %d %s", resp.StatusCode, raw)
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	url := decode[struct {
		URL string `json:"url"`
	}](t, env.Data).URL
	if !strings.HasPrefix(url, "/media/") {
		t.Fatalf("url %q", url)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, url, nil), -1)
	got, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Equal(got, png) {
		t.Fatalf("served media: %d", resp.StatusCode)
	}
}
