package auth

import (
	"net/http"

	"github.com/hipnode/hipnode/internal/common"
)

// CookieWriter binds session tokens to the HTTP transport: an HttpOnly,
// SameSite=Strict cookie scoped to the whole application. Secure is set per
// deployment environment.
type CookieWriter struct {
	secure bool
}

func NewCookieWriter(secure bool) *CookieWriter {
	return &CookieWriter{secure: secure}
}

// Set attaches the session token to the response.
func (c *CookieWriter) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear revokes the client-held token reference. Previously issued tokens
// remain cryptographically valid until expiry.
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read extracts the session token from the request cookie, or "" when absent.
func (c *CookieWriter) Read(r *http.Request) string {
	cookie, err := r.Cookie(common.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
