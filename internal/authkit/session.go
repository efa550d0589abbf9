package authkit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/driveboard/internal/accountstore"
)

// SessionClaims are embedded in the session token. They mirror
// sessionvalidator.Claims so validators in other services can parse them.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	UserEmail string `json:"user_email"`
	jwt.RegisteredClaims
}

// MintSessionToken creates a signed HS256 session token for the account.
func MintSessionToken(account accountstore.Account, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    account.ID,
		Username:  account.Username,
		UserEmail: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	return signed, expiresAt, err
}

// WriteSessionCookie stores the session token on the response.
func WriteSessionCookie(contextGin *gin.Context, configuration ServerConfig, sessionToken string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt) / time.Second),
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(contextGin *gin.Context, configuration ServerConfig) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}
