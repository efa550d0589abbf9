package drivekit

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/driveboard/internal/googleoauth"
	"go.uber.org/zap"
)

// Refreshed access tokens are persisted for one hour when the provider's
// declared expiry is no longer known.
const refreshedAccessTokenMaxAge = 3600

const (
	messageNotConnected          = "Not authenticated with Google Drive"
	messageNotConnectedReconnect = "Not authenticated with Google Drive. Please reconnect your account."
	messageAuthFailed            = "Authentication failed. Please reconnect your Google Drive account."
	messageAccessDenied          = "Access denied. Please check your Google Drive permissions."
)

// MountDriveRoutes registers the /api/drive pass-through endpoints.
func MountDriveRoutes(router gin.IRouter, client *Client, cookies googleoauth.CookieSettings, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.GET("/api/drive/files", func(contextGin *gin.Context) {
		credentials, ok := credentialsFromCookies(contextGin, messageNotConnected)
		if !ok {
			return
		}
		files, listErr := client.ListFiles(contextGin, credentials)
		persistRefreshedToken(contextGin, cookies, credentials)
		if listErr != nil {
			respondUpstreamError(contextGin, logger, "api.drive.files", listErr, "Failed to fetch files")
			return
		}
		contextGin.Data(http.StatusOK, "application/json", files)
	})

	router.POST("/api/drive/upload", func(contextGin *gin.Context) {
		credentials, ok := credentialsFromCookies(contextGin, messageNotConnected)
		if !ok {
			return
		}

		fileHeader, fileErr := contextGin.FormFile("file")
		if fileErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "No file provided"})
			return
		}
		file, openErr := fileHeader.Open()
		if openErr != nil {
			logger.Error("failed to open uploaded file",
				zap.String("code", "api.drive.upload.open_error"),
				zap.Error(openErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload file"})
			return
		}
		defer func() { _ = file.Close() }()

		content, readErr := io.ReadAll(file)
		if readErr != nil {
			logger.Error("failed to read uploaded file",
				zap.String("code", "api.drive.upload.read_error"),
				zap.Error(readErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload file"})
			return
		}

		created, uploadErr := client.Upload(contextGin, credentials, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content)
		persistRefreshedToken(contextGin, cookies, credentials)
		if uploadErr != nil {
			respondUpstreamError(contextGin, logger, "api.drive.upload", uploadErr, "Failed to upload file")
			return
		}
		contextGin.Data(http.StatusOK, "application/json", created)
	})

	router.GET("/api/drive/stats", func(contextGin *gin.Context) {
		credentials, ok := credentialsFromCookies(contextGin, messageNotConnectedReconnect)
		if !ok {
			return
		}
		stats, statsErr := client.Stats(contextGin, credentials)
		persistRefreshedToken(contextGin, cookies, credentials)
		if statsErr != nil {
			respondUpstreamError(contextGin, logger, "api.drive.stats", statsErr, "Failed to fetch drive statistics. Please try again.")
			return
		}
		contextGin.JSON(http.StatusOK, stats)
	})

	router.GET("/api/drive/folder-info", func(contextGin *gin.Context) {
		credentials, ok := credentialsFromCookies(contextGin, messageNotConnectedReconnect)
		if !ok {
			return
		}
		folderID := contextGin.Query("folderId")
		if folderID == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Folder ID is required"})
			return
		}
		info, infoErr := client.FolderInfo(contextGin, credentials, folderID)
		persistRefreshedToken(contextGin, cookies, credentials)
		if infoErr != nil {
			respondUpstreamError(contextGin, logger, "api.drive.folder_info", infoErr, "Failed to fetch folder information. Please try again.")
			return
		}
		contextGin.Data(http.StatusOK, "application/json", info)
	})
}

// credentialsFromCookies builds the token carrier; without an access token the
// request is rejected with 401 and the provider is never contacted.
func credentialsFromCookies(contextGin *gin.Context, missingMessage string) (*Credentials, bool) {
	accessToken, accessErr := contextGin.Cookie(googleoauth.AccessTokenCookieName)
	if accessErr != nil || accessToken == "" {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": missingMessage})
		return nil, false
	}
	refreshToken, _ := contextGin.Cookie(googleoauth.RefreshTokenCookieName)
	return &Credentials{AccessToken: accessToken, RefreshToken: refreshToken}, true
}

// persistRefreshedToken writes a mid-request refreshed access token back to the
// cookie before any response body, so the retry's result is never lost.
func persistRefreshedToken(contextGin *gin.Context, cookies googleoauth.CookieSettings, credentials *Credentials) {
	if credentials != nil && credentials.Refreshed && credentials.AccessToken != "" {
		googleoauth.WriteAccessTokenCookie(contextGin, cookies, credentials.AccessToken, refreshedAccessTokenMaxAge)
	}
}

func respondUpstreamError(contextGin *gin.Context, logger *zap.Logger, code string, err error, fallbackMessage string) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		switch upstreamErr.StatusCode {
		case http.StatusUnauthorized:
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": messageAuthFailed})
			return
		case http.StatusForbidden:
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": messageAccessDenied})
			return
		}
	}
	logger.Error("drive api call failed",
		zap.String("code", code),
		zap.Error(err))
	contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": fallbackMessage})
}
