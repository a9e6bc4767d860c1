package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondhand/internal/client/api"
	"secondhand/internal/client/auth"
	"secondhand/internal/client/session"
	"secondhand/internal/domain"
)

type fakeNav struct {
	mu        sync.Mutex
	toAuth    int
	signedOut int
	resumed   int
}

func (n *fakeNav) ToAuth()    { n.mu.Lock(); n.toAuth++; n.mu.Unlock() }
func (n *fakeNav) SignedOut() { n.mu.Lock(); n.signedOut++; n.mu.Unlock() }
func (n *fakeNav) Resume()    { n.mu.Lock(); n.resumed++; n.mu.Unlock() }

type notes struct {
	mu   sync.Mutex
	errs []string
	oks  []string
}

func (n *notes) Error(m string)   { n.mu.Lock(); n.errs = append(n.errs, m); n.mu.Unlock() }
func (n *notes) Success(m string) { n.mu.Lock(); n.oks = append(n.oks, m); n.mu.Unlock() }

var alice = domain.User{ID: 1, Username: "alice", Email: "alice@x.test"}

// fakeServer accepts alice / Passw0rd! and serves "/auth/me" for token t-1.
func fakeServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	logouts := &atomic.Int32{}
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	envelope := func(code int, msg string, data any) map[string]any {
		return map[string]any{"code": code, "message": msg, "data": data}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in api.LoginRequest
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &in)
		if in.Username != "alice" || in.Password != "Passw0rd!" {
			write(w, 401, envelope(401, "invalid username or password", nil))
			return
		}
		write(w, 200, envelope(200, "success", api.Session{Token: "t-1", User: alice}))
	})
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		write(w, 409, envelope(409, "username already taken", nil))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t-1" {
			write(w, 401, envelope(401, "invalid or expired token", nil))
			return
		}
		renamed := alice
		renamed.Email = "alice@new.test"
		write(w, 200, envelope(200, "success", renamed))
	})
	mux.HandleFunc("/api/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		var in api.ChangePasswordRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.OldPassword != "Passw0rd!" {
			write(w, 400, envelope(400, "old password is incorrect", nil))
			return
		}
		write(w, 200, envelope(200, "success", nil))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logouts.Add(1)
		write(w, 500, envelope(500, "internal server error", nil))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, logouts
}

func newController(t *testing.T, store session.Store) (*auth.Controller, *fakeNav, *notes, *atomic.Int32) {
	t.Helper()
	srv, logouts := fakeServer(t)
	n := &notes{}
	client, err := api.New(api.Config{BaseURL: srv.URL + "/api"}, store, api.WithNotifier(n))
	require.NoError(t, err)
	nav := &fakeNav{}
	return auth.NewController(client, store, nav), nav, n, logouts
}

func assertPaired(t *testing.T, store session.Store) {
	t.Helper()
	_, hasTok := store.Token()
	_, hasUser := store.User()
	assert.Equal(t, hasTok, hasUser, "token and user must be present together")
}

func TestLoginStoresPairAndResumes(t *testing.T) {
	store := session.NewMemoryStore()
	c, nav, n, _ := newController(t, store)

	assert.False(t, c.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "wrong"}))
	assert.False(t, c.IsAuthenticated())
	assert.Zero(t, nav.resumed)
	assert.Equal(t, []string{"invalid username or password"}, n.errs)
	assertPaired(t, store)

	require.True(t, c.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "Passw0rd!"}))
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "alice", c.CurrentUser().Username)
	assert.Equal(t, 1, nav.resumed)
	assert.Len(t, n.oks, 1)
	assertPaired(t, store)
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SetSession("t-1", alice))
	c, _, _, _ := newController(t, store)

	assert.False(t, c.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "nope"}))
	tok, ok := store.Token()
	assert.True(t, ok)
	assert.Equal(t, "t-1", tok)
}

func TestRegisterConflict(t *testing.T) {
	store := session.NewMemoryStore()
	c, nav, n, _ := newController(t, store)
	assert.False(t, c.Register(context.Background(), api.RegisterRequest{Username: "alice", Password: "Passw0rd!", Email: "a@x.test"}))
	assert.Equal(t, []string{"username already taken"}, n.errs)
	assert.Zero(t, nav.resumed)
	assert.False(t, c.IsAuthenticated())
}

func TestStartupRepairsHalfSession(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SetToken("orphan"))
	c, _, _, _ := newController(t, store)
	_, hasTok := store.Token()
	assert.False(t, hasTok)
	assert.False(t, c.IsAuthenticated())
	assert.Nil(t, c.CurrentUser())

	store2 := session.NewMemoryStore()
	require.NoError(t, store2.SetUser(alice))
	newController(t, store2)
	_, hasUser := store2.User()
	assert.False(t, hasUser)
}

func TestChangePasswordEndsSession(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SetSession("t-1", alice))
	c, nav, _, _ := newController(t, store)

	assert.False(t, c.ChangePassword(context.Background(), "bad", "N3wPassw0rd"))
	assert.True(t, c.IsAuthenticated())
	assert.Zero(t, nav.toAuth)

	assert.True(t, c.ChangePassword(context.Background(), "Passw0rd!", "N3wPassw0rd"))
	assert.False(t, c.IsAuthenticated())
	assertPaired(t, store)
	assert.Equal(t, 1, nav.toAuth)
}

func TestLogoutIsUnconditional(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SetSession("t-1", alice))
	c, nav, n, logouts := newController(t, store)

	c.Logout(context.Background())
	assert.EqualValues(t, 1, logouts.Load())
	assert.False(t, c.IsAuthenticated())
	assertPaired(t, store)
	assert.Equal(t, 1, nav.signedOut)
	assert.Zero(t, nav.toAuth, "logout does not remember the page")
	assert.Empty(t, n.errs, "remote logout failure is silent")
	assert.Equal(t, []string{"logged out"}, n.oks)

	// nothing to tell the server the second time
	c.Logout(context.Background())
	assert.EqualValues(t, 1, logouts.Load())
}

func TestRefreshReplacesUser(t *testing.T) {
	store := session.NewMemoryStore()
	c, _, n, _ := newController(t, store)
	assert.False(t, c.Refresh(context.Background()))

	require.NoError(t, store.SetSession("t-1", alice))
	require.True(t, c.Refresh(context.Background()))
	assert.Equal(t, "alice@new.test", c.CurrentUser().Email)

	require.NoError(t, store.SetSession("t-dead", alice))
	assert.False(t, c.Refresh(context.Background()))
	assert.False(t, c.IsAuthenticated(), "a rejected token ends the session")
	assert.Empty(t, n.errs, "refresh is silent")
	assertPaired(t, store)
}

// logoutBeforeWrite clears the session just ahead of the next session write,
// as a logout on another goroutine would.
type logoutBeforeWrite struct {
	*session.MemoryStore
	armed atomic.Bool
}

func (s *logoutBeforeWrite) land() {
	if s.armed.CompareAndSwap(true, false) {
		_ = s.MemoryStore.Clear()
	}
}

func (s *logoutBeforeWrite) SetSession(tok string, u domain.User) error {
	s.land()
	return s.MemoryStore.SetSession(tok, u)
}

func (s *logoutBeforeWrite) ReplaceUser(tok string, u domain.User) (bool, error) {
	s.land()
	return s.MemoryStore.ReplaceUser(tok, u)
}

func TestRefreshDoesNotReviveLoggedOutSession(t *testing.T) {
	store := &logoutBeforeWrite{MemoryStore: session.NewMemoryStore()}
	require.NoError(t, store.MemoryStore.SetSession("t-1", alice))
	c, _, _, _ := newController(t, store)

	store.armed.Store(true)
	assert.False(t, c.Refresh(context.Background()))
	assert.False(t, store.armed.Load(), "the logout landed during refresh")
	_, hasTok := store.Token()
	assert.False(t, hasTok, "a session cleared by logout stays cleared")
	assertPaired(t, store)
}
