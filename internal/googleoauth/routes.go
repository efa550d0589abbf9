package googleoauth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const settingsPath = "/dashboard/settings"

// MountOAuthRoutes registers /api/auth/google, its callback, and the disconnect
// endpoint. The connect flow keeps no server-side state: the pending
// authorization lives entirely in the browser redirect.
func MountOAuthRoutes(router gin.IRouter, client *Client, cookies CookieSettings, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.GET("/api/auth/google", func(contextGin *gin.Context) {
		contextGin.Redirect(http.StatusTemporaryRedirect, client.AuthCodeURL())
	})

	router.GET(CallbackPath, func(contextGin *gin.Context) {
		if providerError := contextGin.Query("error"); providerError != "" {
			logger.Warn("provider reported an authorization error",
				zap.String("code", "oauth.callback.provider_error"),
				zap.String("provider_error", providerError))
			contextGin.Redirect(http.StatusFound, settingsPath+"?error=access_denied")
			return
		}

		code := contextGin.Query("code")
		if code == "" {
			logger.Warn("provider callback carried no authorization code",
				zap.String("code", "oauth.callback.missing_code"))
			contextGin.Redirect(http.StatusFound, settingsPath+"?error=no_code")
			return
		}

		pair, exchangeErr := client.Exchange(contextGin, code)
		if exchangeErr != nil {
			contextGin.Redirect(http.StatusFound, settingsPath+"?error=token_exchange_failed")
			return
		}

		WriteAccessTokenCookie(contextGin, cookies, pair.AccessToken, pair.ExpiresIn)
		if pair.RefreshToken != "" {
			WriteRefreshTokenCookie(contextGin, cookies, pair.RefreshToken)
		}
		contextGin.Redirect(http.StatusFound, settingsPath+"?success=connected")
	})

	router.POST("/api/auth/google/disconnect", func(contextGin *gin.Context) {
		ClearTokenCookies(contextGin, cookies)
		contextGin.JSON(http.StatusOK, gin.H{"message": "Disconnected from Google Drive successfully"})
	})
}
