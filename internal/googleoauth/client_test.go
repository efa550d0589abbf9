package googleoauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(tokenEndpoint string) Config {
	return Config{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		BaseURL:       "http://localhost:4000",
		TokenEndpoint: tokenEndpoint,
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{ClientSecret: "s", BaseURL: "http://localhost"}, nil)
	assert.ErrorIs(t, err, ErrMissingClientID)

	_, err = NewClient(Config{ClientID: "c", BaseURL: "http://localhost"}, nil)
	assert.ErrorIs(t, err, ErrMissingClientSecret)

	_, err = NewClient(Config{ClientID: "c", ClientSecret: "s"}, nil)
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestAuthCodeURLParameters(t *testing.T) {
	client, err := NewClient(testConfig(""), zaptest.NewLogger(t))
	require.NoError(t, err)

	parsed, parseErr := url.Parse(client.AuthCodeURL())
	require.NoError(t, parseErr)
	assert.Equal(t, "accounts.google.com", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:4000/api/auth/google/callback", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "consent", query.Get("prompt"))
	assert.Contains(t, query.Get("scope"), "drive.readonly")
	assert.Contains(t, query.Get("scope"), "drive.file")
}

func TestExchangeSendsSameRedirectURIAsAuthorization(t *testing.T) {
	var exchangedRedirectURI string
	provider := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.NoError(t, request.ParseForm())
		assert.Equal(t, "authorization_code", request.Form.Get("grant_type"))
		assert.Equal(t, "auth-code-1", request.Form.Get("code"))
		assert.Equal(t, "client-id", request.Form.Get("client_id"))
		assert.Equal(t, "client-secret", request.Form.Get("client_secret"))
		exchangedRedirectURI = request.Form.Get("redirect_uri")
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-1"}`))
	}))
	defer provider.Close()

	client, err := NewClient(testConfig(provider.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	pair, exchangeErr := client.Exchange(context.Background(), "auth-code-1")
	require.NoError(t, exchangeErr)
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, 3600, pair.ExpiresIn)
	assert.Equal(t, "refresh-1", pair.RefreshToken)

	// The token exchange must present exactly the redirect URI the
	// authorization step advertised.
	authURL, parseErr := url.Parse(client.AuthCodeURL())
	require.NoError(t, parseErr)
	assert.Equal(t, authURL.Query().Get("redirect_uri"), exchangedRedirectURI)
}

func TestExchangeRejectionIsExchangeFailed(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		_, _ = writer.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer provider.Close()

	client, err := NewClient(testConfig(provider.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, exchangeErr := client.Exchange(context.Background(), "stale-code")
	assert.ErrorIs(t, exchangeErr, ErrExchangeFailed)
}

func TestExchangeEmptyAccessTokenIsExchangeFailed(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer provider.Close()

	client, err := NewClient(testConfig(provider.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, exchangeErr := client.Exchange(context.Background(), "code")
	assert.ErrorIs(t, exchangeErr, ErrExchangeFailed)
}

func TestRefreshSuccess(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.NoError(t, request.ParseForm())
		assert.Equal(t, "refresh_token", request.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", request.Form.Get("refresh_token"))
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer provider.Close()

	client, err := NewClient(testConfig(provider.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	accessToken, refreshErr := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, refreshErr)
	assert.Equal(t, "access-2", accessToken)
}

func TestRefreshFailuresCollapseToSentinel(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_, _ = writer.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer rejecting.Close()

	client, err := NewClient(testConfig(rejecting.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	_, refreshErr := client.Refresh(context.Background(), "revoked")
	assert.ErrorIs(t, refreshErr, ErrRefreshUnavailable)

	malformed := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`not json`))
	}))
	defer malformed.Close()

	client, err = NewClient(testConfig(malformed.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	_, refreshErr = client.Refresh(context.Background(), "refresh-1")
	assert.ErrorIs(t, refreshErr, ErrRefreshUnavailable)

	unreachable := testConfig("http://127.0.0.1:1/token")
	client, err = NewClient(unreachable, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, refreshErr = client.Refresh(context.Background(), "refresh-1")
	assert.ErrorIs(t, refreshErr, ErrRefreshUnavailable)
}
