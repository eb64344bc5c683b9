// Package auth covers token issuance and verification for the cookie-based
// session scheme: HS256 JWTs signed over the identity payload the client
// supplies on login.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the verified caller extracted from a token.
type Identity struct {
	Email string
	UID   string
}

// Authority issues and verifies session tokens.
type Authority struct {
	secret     []byte
	ttl        time.Duration
	production bool
}

// New returns an Authority signing with secret. Issued tokens expire after
// ttl. production selects the cross-site cookie attributes.
func New(secret []byte, ttl time.Duration, production bool) *Authority {
	return &Authority{secret: secret, ttl: ttl, production: production}
}

// Issue signs the identity payload as claims, expiry added on top. The whole
// payload is carried so the frontend gets its fields back on verification.
func (a *Authority) Issue(payload map[string]interface{}) (string, error) {
	claims := make(jwt.MapClaims, len(payload)+1)
	for k, v := range payload {
		claims[k] = v
	}
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(a.ttl))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates the token and returns the identity it carries.
func (a *Authority) Verify(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	var id Identity
	id.Email, _ = claims["email"].(string)
	id.UID, _ = claims["uid"].(string)

	return id, nil
}

// Cookie wraps the token in the httpOnly session cookie. Non-production uses
// SameSite=Strict; production needs None+Secure for the cross-site frontend.
func (a *Authority) Cookie(token string) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(a.ttl / time.Second),
		SameSite: http.SameSiteStrictMode,
	}
	if a.production {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}

// ClearCookie returns an expired cookie that removes the session.
func (a *Authority) ClearCookie() *http.Cookie {
	c := a.Cookie("")
	c.MaxAge = -1
	return c
}

// FromRequest reads and verifies the session cookie on the request.
func (a *Authority) FromRequest(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Identity{}, ErrNoToken
	}
	return a.Verify(cookie.Value)
}
