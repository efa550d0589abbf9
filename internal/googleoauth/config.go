package googleoauth

import (
	"errors"
	"fmt"
	"strings"
)

// Google endpoints used when the config leaves them empty. Tests point them at
// a local fake provider.
const (
	DefaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenEndpoint = "https://oauth2.googleapis.com/token"

	// CallbackPath is the route the provider redirects back to. It is registered
	// with the provider as part of the redirect URI and must match exactly in
	// both the authorization request and the token exchange.
	CallbackPath = "/api/auth/google/callback"
)

// DefaultScopes request read access plus per-file write access to Drive.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/drive.file",
}

var (
	ErrMissingClientID     = errors.New("oauth.missing_client_id")
	ErrMissingClientSecret = errors.New("oauth.missing_client_secret")
	ErrMissingBaseURL      = errors.New("oauth.missing_base_url")
)

// Config carries everything the OAuth exchange needs; it is validated once at
// construction so a misconfigured deployment fails at startup, not per request.
type Config struct {
	ClientID      string
	ClientSecret  string
	BaseURL       string
	AuthEndpoint  string
	TokenEndpoint string
	Scopes        []string
}

// Validate reports the first missing required field.
func (configuration Config) Validate() error {
	if strings.TrimSpace(configuration.ClientID) == "" {
		return fmt.Errorf("oauth.config: %w", ErrMissingClientID)
	}
	if strings.TrimSpace(configuration.ClientSecret) == "" {
		return fmt.Errorf("oauth.config: %w", ErrMissingClientSecret)
	}
	if strings.TrimSpace(configuration.BaseURL) == "" {
		return fmt.Errorf("oauth.config: %w", ErrMissingBaseURL)
	}
	return nil
}

// RedirectURI is the exact callback URI registered with the provider.
func (configuration Config) RedirectURI() string {
	return strings.TrimRight(configuration.BaseURL, "/") + CallbackPath
}
