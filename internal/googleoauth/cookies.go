package googleoauth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Provider token cookie names.
const (
	AccessTokenCookieName  = "google_access_token"
	RefreshTokenCookieName = "google_refresh_token"
)

// RefreshTokenCookieMaxAge caps how long the browser keeps the refresh token.
const RefreshTokenCookieMaxAge = 60 * 60 * 24 * 30

// CookieSettings control how provider token cookies are written.
type CookieSettings struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// WriteAccessTokenCookie stores the access token for its declared lifetime.
func WriteAccessTokenCookie(contextGin *gin.Context, settings CookieSettings, accessToken string, maxAgeSeconds int) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     AccessTokenCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   maxAgeSeconds,
		Secure:   settings.Secure,
		HttpOnly: true,
		SameSite: settings.SameSite,
	})
}

// WriteRefreshTokenCookie stores the refresh token for 30 days.
func WriteRefreshTokenCookie(contextGin *gin.Context, settings CookieSettings, refreshToken string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     RefreshTokenCookieName,
		Value:    refreshToken,
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   RefreshTokenCookieMaxAge,
		Secure:   settings.Secure,
		HttpOnly: true,
		SameSite: settings.SameSite,
	})
}

// ClearTokenCookies expires both provider cookies immediately.
func ClearTokenCookies(contextGin *gin.Context, settings CookieSettings) {
	for _, name := range []string{AccessTokenCookieName, RefreshTokenCookieName} {
		http.SetCookie(contextGin.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   settings.Domain,
			MaxAge:   -1,
			Secure:   settings.Secure,
			HttpOnly: true,
			SameSite: settings.SameSite,
		})
	}
}
