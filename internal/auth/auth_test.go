package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	token, err := a.Issue(map[string]interface{}{"email": "a@b.c", "uid": "u1", "name": "A"})
	require.NoError(t, err)

	identity, err := a.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "a@b.c", identity.Email)
	require.Equal(t, "u1", identity.UID)
}

func TestVerifyWrongSecret(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)
	b := New([]byte("other"), time.Hour, false)

	token, err := a.Issue(map[string]interface{}{"email": "a@b.c"})
	require.NoError(t, err)

	_, err = b.Verify(token)
	require.Equal(t, ErrInvalidToken, err)
}

func TestVerifyExpired(t *testing.T) {
	a := New([]byte("secret"), -time.Minute, false)

	token, err := a.Issue(map[string]interface{}{"email": "a@b.c"})
	require.NoError(t, err)

	_, err = a.Verify(token)
	require.Equal(t, ErrInvalidToken, err)
}

func TestVerifyGarbage(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	_, err := a.Verify("not-a-token")
	require.Equal(t, ErrInvalidToken, err)
}

func TestCookieDevelopment(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	c := a.Cookie("tok")
	require.Equal(t, CookieName, c.Name)
	require.True(t, c.HttpOnly)
	require.False(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestCookieProduction(t *testing.T) {
	a := New([]byte("secret"), time.Hour, true)

	c := a.Cookie("tok")
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestClearCookie(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	c := a.ClearCookie()
	require.Equal(t, -1, c.MaxAge)
	require.Empty(t, c.Value)
}

func TestFromRequest(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	token, err := a.Issue(map[string]interface{}{"email": "a@b.c"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(a.Cookie(token))

	identity, err := a.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "a@b.c", identity.Email)
}

func TestFromRequestNoCookie(t *testing.T) {
	a := New([]byte("secret"), time.Hour, false)

	req := httptest.NewRequest("GET", "/", nil)
	_, err := a.FromRequest(req)
	require.Equal(t, ErrNoToken, err)
}
