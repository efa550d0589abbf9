package googleoauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sentinel failures of the token endpoint.
var (
	// ErrExchangeFailed indicates the authorization code could not be exchanged.
	ErrExchangeFailed = errors.New("oauth.exchange_failed")
	// ErrRefreshUnavailable indicates no new access token can be obtained from
	// the refresh token; the user has to reconnect. Every provider-side failure
	// (transport error, rejection, malformed body) collapses to this sentinel so
	// callers can tell "no refresh possible" apart from "refreshed".
	ErrRefreshUnavailable = errors.New("oauth.refresh_unavailable")
)

// TokenPair is the provider's response to a code or refresh exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type providerErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Client performs the authorization-code and refresh-token exchanges.
type Client struct {
	configuration Config
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient validates the configuration and builds a client with a bounded
// HTTP timeout so a hung provider call cannot hang a request indefinitely.
func NewClient(configuration Config, logger *zap.Logger) (*Client, error) {
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(configuration.AuthEndpoint) == "" {
		configuration.AuthEndpoint = DefaultAuthEndpoint
	}
	if strings.TrimSpace(configuration.TokenEndpoint) == "" {
		configuration.TokenEndpoint = DefaultTokenEndpoint
	}
	if len(configuration.Scopes) == 0 {
		configuration.Scopes = DefaultScopes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		configuration: configuration,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// RedirectURI exposes the callback URI used by both exchange steps.
func (client *Client) RedirectURI() string {
	return client.configuration.RedirectURI()
}

// AuthCodeURL builds the authorization URL the browser is redirected to.
// access_type=offline requests a refresh token; prompt=consent forces the
// provider to reissue one even on repeat connects.
func (client *Client) AuthCodeURL() string {
	query := url.Values{}
	query.Set("client_id", client.configuration.ClientID)
	query.Set("redirect_uri", client.configuration.RedirectURI())
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(client.configuration.Scopes, " "))
	query.Set("access_type", "offline")
	query.Set("prompt", "consent")
	return client.configuration.AuthEndpoint + "?" + query.Encode()
}

// Exchange trades an authorization code for a token pair.
func (client *Client) Exchange(ctx context.Context, code string) (TokenPair, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {client.configuration.ClientID},
		"client_secret": {client.configuration.ClientSecret},
		"redirect_uri":  {client.configuration.RedirectURI()},
		"grant_type":    {"authorization_code"},
	}

	pair, exchangeErr := client.postTokenForm(ctx, form)
	if exchangeErr != nil {
		client.logger.Error("authorization code exchange failed",
			zap.String("code", "oauth.exchange.failed"),
			zap.Error(exchangeErr))
		return TokenPair{}, fmt.Errorf("%w: %v", ErrExchangeFailed, exchangeErr)
	}
	if pair.AccessToken == "" {
		client.logger.Error("authorization code exchange returned no access token",
			zap.String("code", "oauth.exchange.empty_access_token"))
		return TokenPair{}, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return pair, nil
}

// Refresh trades a refresh token for a new access token.
func (client *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {client.configuration.ClientID},
		"client_secret": {client.configuration.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	pair, refreshErr := client.postTokenForm(ctx, form)
	if refreshErr != nil {
		client.logger.Warn("refresh token exchange failed",
			zap.String("code", "oauth.refresh.failed"),
			zap.Error(refreshErr))
		return "", fmt.Errorf("%w: %v", ErrRefreshUnavailable, refreshErr)
	}
	if pair.AccessToken == "" {
		client.logger.Warn("refresh token exchange returned no access token",
			zap.String("code", "oauth.refresh.empty_access_token"))
		return "", fmt.Errorf("%w: empty access token", ErrRefreshUnavailable)
	}
	return pair.AccessToken, nil
}

func (client *Client) postTokenForm(ctx context.Context, form url.Values) (TokenPair, error) {
	request, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, client.configuration.TokenEndpoint, strings.NewReader(form.Encode()))
	if buildErr != nil {
		return TokenPair{}, fmt.Errorf("oauth.token_request: %w", buildErr)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return TokenPair{}, fmt.Errorf("oauth.token_transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return TokenPair{}, fmt.Errorf("oauth.token_read: %w", readErr)
	}

	if response.StatusCode != http.StatusOK {
		var providerErr providerErrorBody
		if unmarshalErr := json.Unmarshal(body, &providerErr); unmarshalErr == nil && providerErr.Error != "" {
			return TokenPair{}, fmt.Errorf("oauth.token_rejected: %s (%s)", providerErr.Error, providerErr.ErrorDescription)
		}
		return TokenPair{}, fmt.Errorf("oauth.token_rejected: status %d", response.StatusCode)
	}

	var pair TokenPair
	if unmarshalErr := json.Unmarshal(body, &pair); unmarshalErr != nil {
		return TokenPair{}, fmt.Errorf("oauth.token_decode: %w", unmarshalErr)
	}
	return pair, nil
}
