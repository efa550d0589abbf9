package drivekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tyemirov/driveboard/internal/authkit"
	"github.com/tyemirov/driveboard/internal/googleoauth"
	"go.uber.org/zap"
)

// Default Google Drive v3 endpoints. Tests point them at a local fake.
const (
	DefaultAPIBaseURL    = "https://www.googleapis.com/drive/v3"
	DefaultUploadBaseURL = "https://www.googleapis.com/upload/drive/v3"
)

// ErrNoAccessToken indicates the caller holds no access token; the provider is
// never contacted in that case.
var ErrNoAccessToken = errors.New("drive.no_access_token")

// UpstreamError carries a non-2xx provider response through to the handler
// layer so it can map the status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (upstreamErr *UpstreamError) Error() string {
	return fmt.Sprintf("drive.upstream: status %d", upstreamErr.StatusCode)
}

// Credentials is the per-request token carrier. When a mid-call refresh
// succeeds the new access token is written back into the carrier before the
// operation returns, so the handler persists it through the same cookie
// channel the next request will read.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Refreshed    bool
}

// Client wraps the Drive v3 REST API with a single refresh-and-retry on 401.
type Client struct {
	apiBaseURL    string
	uploadBaseURL string
	oauth         *googleoauth.Client
	httpClient    *http.Client
	logger        *zap.Logger
	metrics       authkit.MetricsRecorder
}

// Options overrides endpoints and collaborators; zero values take defaults.
type Options struct {
	APIBaseURL    string
	UploadBaseURL string
	HTTPClient    *http.Client
	Metrics       authkit.MetricsRecorder
}

// NewClient builds a Drive client that refreshes through the supplied OAuth client.
func NewClient(oauthClient *googleoauth.Client, logger *zap.Logger, options Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiBaseURL := options.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	uploadBaseURL := options.UploadBaseURL
	if uploadBaseURL == "" {
		uploadBaseURL = DefaultUploadBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	metrics := options.Metrics
	if metrics == nil {
		metrics = authkit.NopMetrics{}
	}
	return &Client{
		apiBaseURL:    strings.TrimRight(apiBaseURL, "/"),
		uploadBaseURL: strings.TrimRight(uploadBaseURL, "/"),
		oauth:         oauthClient,
		httpClient:    httpClient,
		logger:        logger,
		metrics:       metrics,
	}
}

type requestBuilder func() (*http.Request, error)

// authorizedDo performs the request with the carrier's bearer token. On a 401
// it refreshes once (if the carrier holds a refresh token and has not already
// been refreshed) and retries the original request exactly once with the new
// token. Any further failure is surfaced.
func (client *Client) authorizedDo(ctx context.Context, credentials *Credentials, build requestBuilder) ([]byte, error) {
	if credentials == nil || credentials.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	status, body, doErr := client.doOnce(ctx, credentials.AccessToken, build)
	if doErr != nil {
		return nil, doErr
	}

	if status == http.StatusUnauthorized && credentials.RefreshToken != "" && !credentials.Refreshed {
		newAccessToken, refreshErr := client.oauth.Refresh(ctx, credentials.RefreshToken)
		if refreshErr != nil {
			client.metrics.Increment(authkit.MetricDriveRefreshFail)
			client.logger.Warn("access token refresh unavailable",
				zap.String("code", "drive.refresh.unavailable"),
				zap.Error(refreshErr))
			return nil, &UpstreamError{StatusCode: status, Body: string(body)}
		}
		credentials.AccessToken = newAccessToken
		credentials.Refreshed = true
		client.metrics.Increment(authkit.MetricDriveRefreshed)
		client.logger.Info("access token refreshed, retrying request",
			zap.String("code", "drive.refresh.retry"))

		status, body, doErr = client.doOnce(ctx, credentials.AccessToken, build)
		if doErr != nil {
			return nil, doErr
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &UpstreamError{StatusCode: status, Body: string(body)}
	}
	return body, nil
}

func (client *Client) doOnce(ctx context.Context, accessToken string, build requestBuilder) (int, []byte, error) {
	request, buildErr := build()
	if buildErr != nil {
		return 0, nil, fmt.Errorf("drive.request: %w", buildErr)
	}
	request = request.WithContext(ctx)
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return 0, nil, fmt.Errorf("drive.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return 0, nil, fmt.Errorf("drive.read: %w", readErr)
	}
	return response.StatusCode, body, nil
}

func (client *Client) getJSON(ctx context.Context, credentials *Credentials, requestURL string) ([]byte, error) {
	return client.authorizedDo(ctx, credentials, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, requestURL, nil)
	})
}

// ListFiles returns the first page of files with the dashboard's field set.
func (client *Client) ListFiles(ctx context.Context, credentials *Credentials) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("pageSize", "20")
	query.Set("fields", "files(id,name,mimeType,modifiedTime,size,webViewLink,iconLink)")
	return client.getJSON(ctx, credentials, client.apiBaseURL+"/files?"+query.Encode())
}

// FolderInfo returns id, name, and parents for a folder.
func (client *Client) FolderInfo(ctx context.Context, credentials *Credentials, folderID string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("fields", "id,name,parents")
	query.Set("supportsAllDrives", "true")
	return client.getJSON(ctx, credentials, client.apiBaseURL+"/files/"+url.PathEscape(folderID)+"?"+query.Encode())
}

// Upload stores a file in Drive via the multipart upload endpoint.
func (client *Client) Upload(ctx context.Context, credentials *Credentials, fileName string, mimeType string, content []byte) (json.RawMessage, error) {
	metadata, marshalErr := json.Marshal(map[string]string{
		"name":     fileName,
		"mimeType": mimeType,
	})
	if marshalErr != nil {
		return nil, fmt.Errorf("drive.upload.metadata: %w", marshalErr)
	}

	return client.authorizedDo(ctx, credentials, func() (*http.Request, error) {
		var requestBody bytes.Buffer
		writer := multipart.NewWriter(&requestBody)

		metadataHeader := textproto.MIMEHeader{}
		metadataHeader.Set("Content-Type", "application/json; charset=UTF-8")
		metadataPart, partErr := writer.CreatePart(metadataHeader)
		if partErr != nil {
			return nil, partErr
		}
		if _, writeErr := metadataPart.Write(metadata); writeErr != nil {
			return nil, writeErr
		}

		fileHeader := textproto.MIMEHeader{}
		if mimeType != "" {
			fileHeader.Set("Content-Type", mimeType)
		}
		filePart, partErr := writer.CreatePart(fileHeader)
		if partErr != nil {
			return nil, partErr
		}
		if _, writeErr := filePart.Write(content); writeErr != nil {
			return nil, writeErr
		}
		if closeErr := writer.Close(); closeErr != nil {
			return nil, closeErr
		}

		request, buildErr := http.NewRequest(http.MethodPost, client.uploadBaseURL+"/files?uploadType=multipart", &requestBody)
		if buildErr != nil {
			return nil, buildErr
		}
		request.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())
		return request, nil
	})
}

// DriveStats is the dashboard statistics payload.
type DriveStats struct {
	TotalFiles    string `json:"totalFiles"`
	StorageUsed   string `json:"storageUsed"`
	StorageTotal  string `json:"storageTotal"`
	RecentUploads string `json:"recentUploads"`
	LastActivity  string `json:"lastActivity"`
	User          string `json:"user"`
}

type aboutResponse struct {
	StorageQuota struct {
		Limit        string `json:"limit"`
		Usage        string `json:"usage"`
		UsageInDrive string `json:"usageInDrive"`
	} `json:"storageQuota"`
	User struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

type fileListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		ModifiedTime string `json:"modifiedTime"`
	} `json:"files"`
}

// Stats aggregates storage quota, item counts, and recent activity.
func (client *Client) Stats(ctx context.Context, credentials *Credentials) (DriveStats, error) {
	aboutQuery := url.Values{}
	aboutQuery.Set("fields", "storageQuota,user")
	aboutBody, aboutErr := client.getJSON(ctx, credentials, client.apiBaseURL+"/about?"+aboutQuery.Encode())
	if aboutErr != nil {
		return DriveStats{}, aboutErr
	}
	var about aboutResponse
	if unmarshalErr := json.Unmarshal(aboutBody, &about); unmarshalErr != nil {
		return DriveStats{}, fmt.Errorf("drive.stats.about_decode: %w", unmarshalErr)
	}

	totalItems, countErr := client.countAllItems(ctx, credentials)
	if countErr != nil {
		return DriveStats{}, countErr
	}

	sevenDaysAgo := time.Now().UTC().AddDate(0, 0, -7)
	recentQuery := url.Values{}
	recentQuery.Set("fields", "files(id,name,modifiedTime)")
	recentQuery.Set("pageSize", "1000")
	recentQuery.Set("q", fmt.Sprintf("trashed=false and modifiedTime > '%s'", sevenDaysAgo.Format(time.RFC3339)))
	recentBody, recentErr := client.getJSON(ctx, credentials, client.apiBaseURL+"/files?"+recentQuery.Encode())
	if recentErr != nil {
		return DriveStats{}, recentErr
	}
	var recent fileListResponse
	if unmarshalErr := json.Unmarshal(recentBody, &recent); unmarshalErr != nil {
		return DriveStats{}, fmt.Errorf("drive.stats.recent_decode: %w", unmarshalErr)
	}

	activityQuery := url.Values{}
	activityQuery.Set("fields", "files(id,name,modifiedTime)")
	activityQuery.Set("pageSize", "1")
	activityQuery.Set("q", "trashed=false")
	activityQuery.Set("orderBy", "modifiedTime desc")
	activityBody, activityErr := client.getJSON(ctx, credentials, client.apiBaseURL+"/files?"+activityQuery.Encode())
	if activityErr != nil {
		return DriveStats{}, activityErr
	}
	var activity fileListResponse
	if unmarshalErr := json.Unmarshal(activityBody, &activity); unmarshalErr != nil {
		return DriveStats{}, fmt.Errorf("drive.stats.activity_decode: %w", unmarshalErr)
	}

	lastActivity := "No recent activity"
	if len(activity.Files) > 0 && activity.Files[0].ModifiedTime != "" {
		if modified, parseErr := time.Parse(time.RFC3339, activity.Files[0].ModifiedTime); parseErr == nil {
			lastActivity = modified.Format("2006-01-02")
		}
	}

	// usageInDrive excludes trashed items; fall back to total usage when absent.
	usedBytes := parseInt64(about.StorageQuota.UsageInDrive)
	if about.StorageQuota.UsageInDrive == "" {
		usedBytes = parseInt64(about.StorageQuota.Usage)
	}
	user := about.User.DisplayName
	if user == "" {
		user = "User"
	}

	return DriveStats{
		TotalFiles:    fmt.Sprintf("%d", totalItems),
		StorageUsed:   formatGigabytes(usedBytes),
		StorageTotal:  formatGigabytes(parseInt64(about.StorageQuota.Limit)),
		RecentUploads: fmt.Sprintf("%d", len(recent.Files)),
		LastActivity:  lastActivity,
		User:          user,
	}, nil
}

func (client *Client) countAllItems(ctx context.Context, credentials *Credentials) (int, error) {
	totalCount := 0
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("fields", "nextPageToken,files(id)")
		query.Set("pageSize", "1000")
		query.Set("q", "trashed=false")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		body, listErr := client.getJSON(ctx, credentials, client.apiBaseURL+"/files?"+query.Encode())
		if listErr != nil {
			return 0, listErr
		}
		var page fileListResponse
		if unmarshalErr := json.Unmarshal(body, &page); unmarshalErr != nil {
			return 0, fmt.Errorf("drive.stats.count_decode: %w", unmarshalErr)
		}
		totalCount += len(page.Files)
		if page.NextPageToken == "" {
			return totalCount, nil
		}
		pageToken = page.NextPageToken
	}
}

func parseInt64(value string) int64 {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func formatGigabytes(byteCount int64) string {
	return fmt.Sprintf("%.2f GB", float64(byteCount)/(1024*1024*1024))
}
