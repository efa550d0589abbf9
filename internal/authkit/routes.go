package authkit

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/driveboard/internal/accountstore"
	"go.uber.org/zap"
)

// MountAuthRoutes registers /api/auth/signup, /api/auth/signin, /api/auth/logout,
// /api/auth/me, and /api/users.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, accounts accountstore.AccountStore, logger *zap.Logger, metrics MetricsRecorder) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	validator, validatorErr := newValidator(configuration)
	if validatorErr != nil {
		return validatorErr
	}

	router.POST("/api/auth/signup", func(contextGin *gin.Context) {
		var inbound struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": ErrSignupFieldsMissing.Error()})
			return
		}
		inbound.Username = strings.TrimSpace(inbound.Username)
		inbound.Email = strings.TrimSpace(inbound.Email)

		if validationErr := ValidateSignup(inbound.Username, inbound.Email, inbound.Password); validationErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validationErr.Error()})
			return
		}

		passwordHash, hashErr := HashPassword(inbound.Password)
		if hashErr != nil {
			logger.Error("password hashing failed",
				zap.String("code", "auth.signup.hash_error"),
				zap.Error(hashErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		account, createErr := accounts.Create(contextGin, inbound.Username, inbound.Email, passwordHash)
		if createErr != nil {
			switch {
			case errors.Is(createErr, accountstore.ErrEmailTaken):
				metrics.Increment(MetricSignupConflict)
				contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "User with this email already exists"})
			case errors.Is(createErr, accountstore.ErrUsernameTaken):
				metrics.Increment(MetricSignupConflict)
				contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Username is already taken"})
			default:
				logger.Error("account creation failed",
					zap.String("code", "auth.signup.store_error"),
					zap.Error(createErr))
				contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			}
			return
		}

		sessionToken, sessionExpiresAt, mintErr := MintSessionToken(account, configuration.SessionIssuer, configuration.SessionSigningKey, configuration.SessionTTL)
		if mintErr != nil {
			logger.Error("session token minting failed",
				zap.String("code", "auth.signup.mint_error"),
				zap.Error(mintErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		metrics.Increment(MetricSignupSuccess)
		WriteSessionCookie(contextGin, configuration, sessionToken, sessionExpiresAt)
		contextGin.JSON(http.StatusCreated, gin.H{
			"message": "Account created successfully",
			"user":    account.Public(),
		})
	})

	router.POST("/api/auth/signin", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": ErrSigninFieldsMissing.Error()})
			return
		}
		inbound.Email = strings.TrimSpace(inbound.Email)

		if validationErr := ValidateSignin(inbound.Email, inbound.Password); validationErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validationErr.Error()})
			return
		}

		// Unknown email and wrong password produce the same response so callers
		// cannot enumerate registered accounts.
		account, findErr := accounts.FindByEmail(contextGin, inbound.Email)
		if findErr != nil {
			if !errors.Is(findErr, accountstore.ErrAccountNotFound) {
				logger.Error("account lookup failed",
					zap.String("code", "auth.signin.store_error"),
					zap.Error(findErr))
				contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
				return
			}
			metrics.Increment(MetricSigninRejected)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
			return
		}
		if !CheckPassword(account.PasswordHash, inbound.Password) {
			metrics.Increment(MetricSigninRejected)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
			return
		}

		sessionToken, sessionExpiresAt, mintErr := MintSessionToken(account, configuration.SessionIssuer, configuration.SessionSigningKey, configuration.SessionTTL)
		if mintErr != nil {
			logger.Error("session token minting failed",
				zap.String("code", "auth.signin.mint_error"),
				zap.Error(mintErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		metrics.Increment(MetricSigninSuccess)
		WriteSessionCookie(contextGin, configuration, sessionToken, sessionExpiresAt)
		contextGin.JSON(http.StatusOK, gin.H{
			"message": "Sign in successful",
			"user":    account.Public(),
		})
	})

	router.POST("/api/auth/logout", func(contextGin *gin.Context) {
		metrics.Increment(MetricLogout)
		ClearSessionCookie(contextGin, configuration)
		contextGin.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	})

	router.GET("/api/auth/me", func(contextGin *gin.Context) {
		claims, validateErr := validator.ValidateRequest(contextGin.Request)
		if validateErr != nil {
			metrics.Increment(MetricSessionRejected)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No session found"})
			return
		}

		account, findErr := accounts.FindByID(contextGin, claims.GetUserID())
		if findErr != nil {
			if errors.Is(findErr, accountstore.ErrAccountNotFound) {
				metrics.Increment(MetricSessionRejected)
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
				return
			}
			logger.Error("account lookup failed",
				zap.String("code", "auth.me.store_error"),
				zap.Error(findErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"message": "Session valid",
			"user":    account.Public(),
			"expires": claims.GetExpiresAt().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/api/users", validator.GinMiddleware(ClaimsContextKey), func(contextGin *gin.Context) {
		users, listErr := accounts.ListAccounts(contextGin)
		if listErr != nil {
			logger.Error("account listing failed",
				zap.String("code", "api.users.store_error"),
				zap.Error(listErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"count": len(users),
			"users": users,
		})
	})

	return nil
}
