package authkit

import (
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/driveboard/pkg/sessionvalidator"
)

// ClaimsContextKey is where middleware stores validated session claims.
const ClaimsContextKey = "session_claims"

func newValidator(configuration ServerConfig) (*sessionvalidator.Validator, error) {
	return sessionvalidator.New(sessionvalidator.Config{
		SigningKey: configuration.SessionSigningKey,
		Issuer:     configuration.SessionIssuer,
		CookieName: configuration.SessionCookieName,
	})
}

// RequireSession validates the session cookie on API routes and injects claims;
// missing or invalid sessions are rejected with 401 before the handler runs.
func RequireSession(configuration ServerConfig) (gin.HandlerFunc, error) {
	validator, err := newValidator(configuration)
	if err != nil {
		return nil, err
	}
	return validator.GinMiddleware(ClaimsContextKey), nil
}

// RequireSessionPage gates browser page routes: without a valid session the
// request is redirected to the signin page before the handler runs.
func RequireSessionPage(configuration ServerConfig, signinPath string) (gin.HandlerFunc, error) {
	validator, err := newValidator(configuration)
	if err != nil {
		return nil, err
	}
	return validator.RedirectMiddleware(signinPath, ClaimsContextKey), nil
}

// ClaimsFromContext extracts validated claims placed by the middleware.
func ClaimsFromContext(contextGin *gin.Context) (*sessionvalidator.Claims, bool) {
	value, exists := contextGin.Get(ClaimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*sessionvalidator.Claims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}
