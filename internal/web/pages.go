package web

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/driveboard/internal/authkit"
	"github.com/tyemirov/driveboard/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	signinPath    = "/signin"
	dashboardPath = "/dashboard"
)

// MountPages registers the browser-facing routes: the public landing and auth
// pages, the session-gated dashboard pages, and the embedded static assets.
// Signed-in visitors are bounced from the auth pages to the dashboard; the
// dashboard pages bounce anonymous visitors to signin.
func MountPages(router gin.IRouter, assets fs.FS, configuration authkit.ServerConfig, clientConfig ClientConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	validator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: configuration.SessionSigningKey,
		Issuer:     configuration.SessionIssuer,
		CookieName: configuration.SessionCookieName,
	})
	if validatorErr != nil {
		return validatorErr
	}

	requireSession, middlewareErr := authkit.RequireSessionPage(configuration, signinPath)
	if middlewareErr != nil {
		return middlewareErr
	}

	servePage := func(page string) gin.HandlerFunc {
		return func(contextGin *gin.Context) {
			data, readErr := fs.ReadFile(assets, "pages/"+page)
			if readErr != nil {
				logger.Error("embedded page missing",
					zap.String("code", "web.page.missing"),
					zap.String("page", page))
				contextGin.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			contextGin.Header("Cache-Control", "no-store")
			contextGin.Data(http.StatusOK, "text/html; charset=utf-8", data)
		}
	}

	// Auth pages redirect to the dashboard when the visitor already holds a
	// valid session.
	servePublic := func(page string) gin.HandlerFunc {
		serve := servePage(page)
		return func(contextGin *gin.Context) {
			if _, claimsErr := validator.ValidateRequest(contextGin.Request); claimsErr == nil {
				contextGin.Redirect(http.StatusFound, dashboardPath)
				return
			}
			serve(contextGin)
		}
	}

	router.GET("/", servePublic("index.html"))
	router.GET(signinPath, servePublic("signin.html"))
	router.GET("/signup", servePublic("signup.html"))

	router.GET(dashboardPath, requireSession, servePage("dashboard.html"))
	router.GET(dashboardPath+"/settings", requireSession, servePage("settings.html"))

	router.GET("/static/app.js", func(contextGin *gin.Context) {
		ServeEmbeddedAsset(contextGin, assets, "static/app.js")
	})
	router.GET("/static/app.css", func(contextGin *gin.Context) {
		ServeEmbeddedAsset(contextGin, assets, "static/app.css")
	})
	router.GET("/static/config.js", func(contextGin *gin.Context) {
		ServeClientConfig(contextGin, clientConfig)
	})

	return nil
}
