package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger, err := zap.NewProduction()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	router := gin.New()
	router.Use(zapLoggerMiddleware(logger))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServerMissingConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}

	expectedMessage := "config.uninitialized_server_config: server configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerSettingsRequiresSigningKey(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("base_url", "http://localhost:8080")
	viper.Set("session_ttl", time.Hour)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")

	_, err := LoadServerSettings()
	if err == nil {
		t.Fatalf("expected error when session_signing_key is missing")
	}
	expectedMessage := "config.missing_session_signing_key: session_signing_key must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerSettingsRequiresPositiveSessionTTL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "http://localhost:8080")
	viper.Set("session_ttl", 0)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")

	_, err := LoadServerSettings()
	if err == nil {
		t.Fatalf("expected error when session_ttl is non-positive")
	}

	expectedMessage := "config.invalid_session_ttl: session_ttl must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerSettingsRequiresOAuthClient(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "http://localhost:8080")
	viper.Set("session_ttl", time.Hour)
	viper.Set("google_client_secret", "secret")

	_, err := LoadServerSettings()
	if err == nil {
		t.Fatalf("expected error when google_client_id is missing")
	}
	expectedPrefix := "config.invalid_google_oauth: "
	if got := err.Error(); len(got) < len(expectedPrefix) || got[:len(expectedPrefix)] != expectedPrefix {
		t.Fatalf("expected %q prefix, got %q", expectedPrefix, got)
	}
}

func TestLoadServerSettingsRejectsUnknownDatabaseDriver(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "http://localhost:8080")
	viper.Set("session_ttl", time.Hour)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")
	viper.Set("database_driver", "bolt")

	_, err := LoadServerSettings()
	if err == nil {
		t.Fatalf("expected error for an unknown database driver")
	}
	expectedMessage := "config.invalid_database_driver: database_driver must be gorm or pgx"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerSettingsTrimsBaseURL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "https://drive.example.com/")
	viper.Set("session_ttl", time.Hour)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")

	settings, err := LoadServerSettings()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}
	if settings.Server.BaseURL != "https://drive.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", settings.Server.BaseURL)
	}
	if got := settings.OAuth.RedirectURI(); got != "https://drive.example.com/api/auth/google/callback" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
}

func TestRunServerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler to be configured")
		}
		return http.ErrServerClosed
	})
	defer restoreServe()

	viper.Set("listen_addr", ":0")
	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "http://localhost:8080")
	viper.Set("cookie_domain", "localhost")
	viper.Set("session_ttl", time.Minute)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")
	viper.Set("dev_insecure_http", true)
	viper.Set("database_url", "sqlite://file::memory:?cache=shared")
	viper.Set("enable_cors", true)
	viper.Set("cors_allowed_origins", []string{"http://localhost:3000"})

	settings, err := LoadServerSettings()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, settings))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed, got %v", err)
	}
}

func TestRunServerInMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	viper.Set("listen_addr", ":0")
	viper.Set("session_signing_key", "signing-secret")
	viper.Set("base_url", "http://localhost:8080")
	viper.Set("session_ttl", time.Minute)
	viper.Set("google_client_id", "client")
	viper.Set("google_client_secret", "secret")
	viper.Set("dev_insecure_http", true)

	settings, err := LoadServerSettings()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, settings))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed with in-memory store, got %v", err)
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}
