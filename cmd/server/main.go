package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/driveboard/internal/accountstore"
	"github.com/tyemirov/driveboard/internal/accountstorepg"
	"github.com/tyemirov/driveboard/internal/authkit"
	"github.com/tyemirov/driveboard/internal/drivekit"
	"github.com/tyemirov/driveboard/internal/googleoauth"
	"github.com/tyemirov/driveboard/internal/web"
	webassets "github.com/tyemirov/driveboard/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "driveboard",
		Short:   "Google Drive dashboard with local accounts, cookie sessions, and Drive pass-through",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("base_url", "http://localhost:8080", "Public base URL used for OAuth redirect URIs")
	rootCmd.Flags().String("session_signing_key", "", "HS256 signing secret for session tokens")
	rootCmd.Flags().Duration("session_ttl", 168*time.Hour, "Session lifetime")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("google_client_id", "", "Google OAuth client ID")
	rootCmd.Flags().String("google_client_secret", "", "Google OAuth client secret")
	rootCmd.Flags().StringSlice("google_scopes", googleoauth.DefaultScopes, "Drive scopes requested at connect time")
	rootCmd.Flags().String("database_url", "", "Database URL for accounts (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("database_driver", "gorm", "Database driver for postgres URLs: gorm or pgx")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP cookies for local dev")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, flagName := range []string{
		"listen_addr", "base_url", "session_signing_key", "session_ttl",
		"cookie_domain", "google_client_id", "google_client_secret", "google_scopes",
		"database_url", "database_driver", "dev_insecure_http", "enable_cors",
		"cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	sessionCookieName = "session_token"
	sessionIssuer     = "driveboard"

	configCodeMissingSigningKey       = "config.missing_session_signing_key"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeMissingBaseURL          = "config.missing_base_url"
	configCodeInvalidOAuth            = "config.invalid_google_oauth"
	configCodeInvalidDatabaseDriver   = "config.invalid_database_driver"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

// serverSettings bundles everything RunE needs beyond the session config.
type serverSettings struct {
	Server authkit.ServerConfig
	OAuth  googleoauth.Config
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	settings, loadErr := LoadServerSettings()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, settings))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerSettings reads configuration from flags and APP_ environment
// variables and fails fast on anything incomplete, so a misconfigured OAuth
// client never reaches request time.
func LoadServerSettings() (serverSettings, error) {
	signingKey := viper.GetString("session_signing_key")
	if signingKey == "" {
		return serverSettings{}, configError(configCodeMissingSigningKey, "session_signing_key must be provided")
	}

	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return serverSettings{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	baseURL := strings.TrimRight(viper.GetString("base_url"), "/")
	if baseURL == "" {
		return serverSettings{}, configError(configCodeMissingBaseURL, "base_url must be provided")
	}

	driver := strings.ToLower(viper.GetString("database_driver"))
	if driver == "" {
		driver = "gorm"
	}
	if driver != "gorm" && driver != "pgx" {
		return serverSettings{}, configError(configCodeInvalidDatabaseDriver, "database_driver must be gorm or pgx")
	}

	oauthConfig := googleoauth.Config{
		ClientID:     viper.GetString("google_client_id"),
		ClientSecret: viper.GetString("google_client_secret"),
		BaseURL:      baseURL,
		Scopes:       viper.GetStringSlice("google_scopes"),
	}
	if validateErr := oauthConfig.Validate(); validateErr != nil {
		return serverSettings{}, fmt.Errorf("%s: %w", configCodeInvalidOAuth, validateErr)
	}

	return serverSettings{
		Server: authkit.ServerConfig{
			BaseURL:           baseURL,
			SessionSigningKey: []byte(signingKey),
			SessionIssuer:     sessionIssuer,
			CookieDomain:      viper.GetString("cookie_domain"),
			SessionCookieName: sessionCookieName,
			SessionTTL:        sessionTTL,
		},
		OAuth: oauthConfig,
	}, nil
}

func buildAccountStore(ctx context.Context, logger *zap.Logger) (accountstore.AccountStore, error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		logger.Info("using in-memory account store")
		return accountstore.NewMemoryAccountStore(), nil
	}

	driver := strings.ToLower(viper.GetString("database_driver"))
	if driver == "pgx" {
		pool, poolErr := accountstorepg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := accountstorepg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using persistent account store", zap.String("driver", "pgx"))
		return accountstorepg.NewPostgresAccountStore(pool), nil
	}

	store, storeErr := accountstore.NewDatabaseAccountStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, storeErr
	}
	logger.Info("using persistent account store", zap.String("driver", store.Driver()))
	return store, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	settings, ok := contextValue.(serverSettings)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}
	serverConfig := settings.Server

	listenAddr := viper.GetString("listen_addr")
	devInsecureHTTP := viper.GetBool("dev_insecure_http")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	serverConfig.AllowInsecureHTTP = devInsecureHTTP
	serverConfig.SameSiteMode = http.SameSiteLaxMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	accounts, storeErr := buildAccountStore(command.Context(), logger)
	if storeErr != nil {
		return storeErr
	}

	oauthClient, oauthErr := googleoauth.NewClient(settings.OAuth, logger)
	if oauthErr != nil {
		return oauthErr
	}

	metricsRecorder := authkit.NewCounterMetrics()
	cookieSettings := googleoauth.CookieSettings{
		Domain:   serverConfig.CookieDomain,
		Secure:   !serverConfig.AllowInsecureHTTP,
		SameSite: serverConfig.SameSiteMode,
	}
	driveClient := drivekit.NewClient(oauthClient, logger, drivekit.Options{Metrics: metricsRecorder})

	if mountErr := authkit.MountAuthRoutes(router, serverConfig, accounts, logger, metricsRecorder); mountErr != nil {
		return mountErr
	}
	googleoauth.MountOAuthRoutes(router, oauthClient, cookieSettings, logger)
	drivekit.MountDriveRoutes(router, driveClient, cookieSettings, logger)
	if pagesErr := web.MountPages(router, webassets.FS, serverConfig, web.ClientConfig{BaseURL: serverConfig.BaseURL}, logger); pagesErr != nil {
		return pagesErr
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
