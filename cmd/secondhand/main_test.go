package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := "base_url: " + baseURL + "\nstate_path: " + filepath.Join(dir, "state.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "commands:")

	errOut.Reset()
	assert.Equal(t, 2, run([]string{"fly"}, &out, &errOut))
	assert.Contains(t, errOut.String(), `unknown command "fly"`)
}

func TestProtectedCommandNeedsLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	var out, errOut bytes.Buffer
	code := run([]string{"-config", cfg, "orders", "mine"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "/auth?from=%2Fpurchases")
}

func TestCategoriesAndLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/categories":
			_, _ = io.WriteString(w, `{"code":200,"message":"success","data":[{"key":"books","label":"Books"}]}`)
		case "/api/auth/login":
			_, _ = io.WriteString(w, `{"code":200,"message":"success","data":{"token":"t","user":{"id":3,"username":"carol"}}}`)
		case "/api/orders/my":
			if r.Header.Get("Authorization") != "Bearer t" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"code":200,"message":"success","data":{"list":[],"total":0,"page":1,"pageSize":10}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv.URL+"/api")

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"-config", cfg, "categories"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "Books")

	require.Equal(t, 0, run([]string{"-config", cfg, "login", "-u", "carol", "-p", "Passw0rd!"}, &out, &errOut), errOut.String())

	// the session survives into the next invocation
	out.Reset()
	require.Equal(t, 0, run([]string{"-config", cfg, "orders", "mine"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "page 1, 0 of 0")
}

func TestProductWithoutStockShowsUnavailable(t *testing.T) {
	const item = `{"id":5,"name":"Desk lamp","price":12.5,"stock":0,"status":"on_sale","sellerName":"bob"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/products":
			_, _ = io.WriteString(w, `{"code":200,"message":"success","data":{"list":[`+item+`],"total":1,"page":1,"pageSize":12}}`)
		case "/api/products/5":
			_, _ = io.WriteString(w, `{"code":200,"message":"success","data":`+item+`}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv.URL+"/api")

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"-config", cfg, "products", "list"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "unavailable")
	assert.NotContains(t, out.String(), "on_sale")

	out.Reset()
	require.Equal(t, 0, run([]string{"-config", cfg, "products", "show", "5"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), `"status": "unavailable"`)
	assert.Contains(t, out.String(), `"available": false`)
	assert.NotContains(t, out.String(), "on_sale")
}
