package authkit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/driveboard/internal/accountstore"
	"go.uber.org/zap/zaptest"
)

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		BaseURL:           "http://localhost:4000",
		SessionSigningKey: []byte("test-signing-key"),
		SessionIssuer:     "driveboard-test",
		SessionCookieName: "session_token",
		SessionTTL:        7 * 24 * time.Hour,
		SameSiteMode:      http.SameSiteLaxMode,
		AllowInsecureHTTP: true,
	}
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, *accountstore.MemoryAccountStore, *CounterMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := accountstore.NewMemoryAccountStore()
	metrics := NewCounterMetrics()
	router := gin.New()
	if err := MountAuthRoutes(router, newTestServerConfig(), store, zaptest.NewLogger(t), metrics); err != nil {
		t.Fatalf("failed to mount auth routes: %v", err)
	}
	return router, store, metrics
}

func performJSON(t *testing.T, router *gin.Engine, method string, path string, body []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func sessionCookieFrom(recorder *httptest.ResponseRecorder, cookieName string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == cookieName {
			return cookie
		}
	}
	return nil
}

func TestSignupIssuesSessionCookie(t *testing.T) {
	router, _, metrics := newAuthTestRouter(t)

	body := []byte(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", body, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	cookie := sessionCookieFrom(recorder, "session_token")
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected a session cookie after signup")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Fatalf("session cookie path must be /, got %s", cookie.Path)
	}

	var payload struct {
		Message string `json:"message"`
		User    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode signup payload: %v", err)
	}
	if payload.User.ID == "" || payload.User.Username != "alice" {
		t.Fatalf("unexpected signup payload: %s", recorder.Body.String())
	}
	if bytes.Contains(recorder.Body.Bytes(), []byte("secret1")) {
		t.Fatalf("signup response must never carry the password")
	}
	if metrics.Count(MetricSignupSuccess) != 1 {
		t.Fatalf("expected signup success metric increment")
	}
}

func TestSignupValidationRejections(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fields", body: `{"username":"alice"}`},
		{name: "bad email", body: `{"username":"alice","email":"nope","password":"secret1"}`},
		{name: "short password", body: `{"username":"alice","email":"a@b.co","password":"five5"}`},
		{name: "short username", body: `{"username":"al","email":"a@b.co","password":"secret1"}`},
		{name: "malformed json", body: `{"username":`},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", []byte(testCase.body), nil)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", recorder.Code)
			}
		})
	}
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	first := []byte(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	if recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", first, nil); recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first signup, got %d", recorder.Code)
	}

	// Same email, different username: still a conflict.
	second := []byte(`{"username":"completely-different","email":"alice@example.com","password":"secret2"}`)
	recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", second, nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", recorder.Code)
	}

	third := []byte(`{"username":"alice","email":"fresh@example.com","password":"secret3"}`)
	recorder = performJSON(t, router, http.MethodPost, "/api/auth/signup", third, nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", recorder.Code)
	}
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	signup := []byte(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	if recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", signup, nil); recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on signup, got %d", recorder.Code)
	}

	wrongPassword := performJSON(t, router, http.MethodPost, "/api/auth/signin", []byte(`{"email":"alice@example.com","password":"wrong-1"}`), nil)
	unknownEmail := performJSON(t, router, http.MethodPost, "/api/auth/signin", []byte(`{"email":"ghost@example.com","password":"wrong-1"}`), nil)

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both failures, got %d and %d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("failure bodies must be identical: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestSigninMeLogoutLifecycle(t *testing.T) {
	router, _, metrics := newAuthTestRouter(t)

	signup := []byte(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	if recorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", signup, nil); recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on signup, got %d", recorder.Code)
	}

	signin := performJSON(t, router, http.MethodPost, "/api/auth/signin", []byte(`{"email":"alice@example.com","password":"secret1"}`), nil)
	if signin.Code != http.StatusOK {
		t.Fatalf("expected 200 on signin, got %d: %s", signin.Code, signin.Body.String())
	}
	cookie := sessionCookieFrom(signin, "session_token")
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie after signin")
	}

	me := performJSON(t, router, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{{Name: "session_token", Value: cookie.Value}})
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/auth/me, got %d: %s", me.Code, me.Body.String())
	}
	var mePayload struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &mePayload); err != nil {
		t.Fatalf("failed to decode /api/auth/me payload: %v", err)
	}
	if mePayload.User.Email != "alice@example.com" {
		t.Fatalf("unexpected /api/auth/me payload: %s", me.Body.String())
	}

	meMissing := performJSON(t, router, http.MethodGet, "/api/auth/me", nil, nil)
	if meMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session cookie, got %d", meMissing.Code)
	}

	meTampered := performJSON(t, router, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{{Name: "session_token", Value: "tampered"}})
	if meTampered.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with tampered cookie, got %d", meTampered.Code)
	}

	logout := performJSON(t, router, http.MethodPost, "/api/auth/logout", nil, []*http.Cookie{{Name: "session_token", Value: cookie.Value}})
	if logout.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", logout.Code)
	}
	cleared := sessionCookieFrom(logout, "session_token")
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected logout to clear the session cookie, got %+v", cleared)
	}

	if metrics.Count(MetricSigninSuccess) != 1 {
		t.Fatalf("expected signin success metric increment")
	}
	if metrics.Count(MetricLogout) != 1 {
		t.Fatalf("expected logout metric increment")
	}
}

func TestUsersEndpointRequiresSession(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	unauthorized := performJSON(t, router, http.MethodGet, "/api/users", nil, nil)
	if unauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", unauthorized.Code)
	}

	signup := []byte(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	signupRecorder := performJSON(t, router, http.MethodPost, "/api/auth/signup", signup, nil)
	if signupRecorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 on signup, got %d", signupRecorder.Code)
	}
	cookie := sessionCookieFrom(signupRecorder, "session_token")

	authorized := performJSON(t, router, http.MethodGet, "/api/users", nil, []*http.Cookie{{Name: "session_token", Value: cookie.Value}})
	if authorized.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", authorized.Code)
	}
	var payload struct {
		Count int               `json:"count"`
		Users []json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(authorized.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode users payload: %v", err)
	}
	if payload.Count != 1 || len(payload.Users) != 1 {
		t.Fatalf("unexpected users payload: %s", authorized.Body.String())
	}
	if bytes.Contains(authorized.Body.Bytes(), []byte("password")) {
		t.Fatalf("users payload must not carry password material")
	}
}
