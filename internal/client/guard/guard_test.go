package guard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondhand/internal/client/guard"
	"secondhand/internal/client/session"
	"secondhand/internal/domain"
)

func TestAnonymousRedirects(t *testing.T) {
	g := guard.New(session.NewMemoryStore())

	for _, dest := range []string{"/", "/product/12", "/auth", "/search", "/product"} {
		assert.True(t, g.Check(dest).Allowed, dest)
	}

	cases := map[string]string{
		"/upload":           "/auth?from=%2Fupload",
		"/my-products":      "/auth?from=%2Fmy-products",
		"/orders/":          "/auth?from=%2Forders%2F",
		"/payment/42":       "/auth?from=%2Fpayment%2F42",
		"/purchases?page=2": "/auth?from=%2Fpurchases%3Fpage%3D2",
		"/profile":          "/auth?from=%2Fprofile",
	}
	for dest, redirect := range cases {
		d := g.Check(dest)
		assert.False(t, d.Allowed, dest)
		assert.Equal(t, redirect, d.Redirect, dest)
		assert.Equal(t, dest, d.From)
		assert.Equal(t, dest, guard.FromRedirect(d.Redirect))
	}

	// a bare /payment has no order id and is not a known destination
	assert.True(t, g.Check("/payment").Allowed)
}

func TestTokenPresenceIsEnough(t *testing.T) {
	s := session.NewMemoryStore()
	g := guard.New(s)
	require.NoError(t, s.SetToken("anything"))
	assert.True(t, g.Check("/upload").Allowed)

	require.NoError(t, s.SetSession("tok", domain.User{ID: 1}))
	require.NoError(t, s.Clear())
	assert.False(t, g.Check("/upload").Allowed)
}

func TestFromRedirectRejectsForeignTargets(t *testing.T) {
	assert.Empty(t, guard.FromRedirect("/auth"))
	assert.Empty(t, guard.FromRedirect("/auth?from=https%3A%2F%2Fevil.test"))
	assert.Empty(t, guard.FromRedirect("/auth?from=%2F%2Fevil.test"))
	assert.Empty(t, guard.FromRedirect("/login?from=%2Fupload"))
	assert.Equal(t, "/upload", guard.FromRedirect("/auth?from=%2Fupload"))
	assert.Equal(t, "/auth", guard.AuthRedirect("/"))
}
