package session

import (
	"net/http"
	"strings"
)

// DefaultSessionCookie is the cookie carrying the session token for
// browser page loads.
const DefaultSessionCookie = "teamreel_session"

// bearerPrefix is the Authorization scheme for API requests.
const bearerPrefix = "Bearer "

// Extractor pulls the session credential out of a request.
type Extractor interface {
	// Extract returns the raw credential. A request with no credential
	// returns ErrNoCredentials.
	Extract(r *http.Request) (string, error)
}

// headerCookieExtractor reads the Authorization header first, then falls
// back to the session cookie. API clients send the header; browsers send
// the cookie.
type headerCookieExtractor struct {
	cookieName string
}

// NewExtractor creates the default credential extractor. An empty cookie
// name uses DefaultSessionCookie.
func NewExtractor(cookieName string) Extractor {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &headerCookieExtractor{cookieName: cookieName}
}

func (e *headerCookieExtractor) Extract(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if !strings.HasPrefix(auth, bearerPrefix) {
			return "", ErrSessionMalformed
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
		if token == "" {
			return "", ErrSessionMalformed
		}
		return token, nil
	}

	if cookie, err := r.Cookie(e.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", ErrNoCredentials
}

// Ensure headerCookieExtractor implements Extractor.
var _ Extractor = (*headerCookieExtractor)(nil)
