package authkit

import (
	"net/http"
	"time"
)

// ServerConfig configures session issuing, cookies, and TTL.
type ServerConfig struct {
	BaseURL           string
	SessionSigningKey []byte
	SessionIssuer     string
	CookieDomain      string
	SessionCookieName string
	SessionTTL        time.Duration
	SameSiteMode      http.SameSite
	AllowInsecureHTTP bool
}
