package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/api"
	"github.com/tripbill/tripbill/internal/app"
	iauth "github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/internal/cache"
	sharedtestutil "github.com/tripbill/tripbill/internal/database/testutil"
	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/pkg/response"
)

// BaseURL is the public URL join links are built from in handler tests.
const BaseURL = "https://trips.example.com"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Now    time.Time
}

// NewEnv provisions a fresh handler test environment with migrations applied.
// The trip clock is pinned to 2025-06-15 12:00 UTC.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	cfg := &app.Config{
		Server: app.ServerConfig{PublicBaseURL: BaseURL},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		RateLimit:  app.RateLimitConfig{JoinPerMinute: 100},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true}},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	env := &Env{
		T:   t,
		DB:  db,
		JWT: jwtSvc,
		Now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	router, err := api.NewRouter(db, jwtSvc, cfg,
		api.WithCache(cache.NewDatabaseStore(db)),
		api.WithClock(func() time.Time { return env.Now }),
	)
	require.NoError(t, err)
	env.Router = router

	return env
}

// CreateUser inserts an active user and returns it with a valid access token.
func (e *Env) CreateUser(username string) (models.User, string) {
	e.T.Helper()

	user := sharedtestutil.MustCreateUser(e.T, e.DB, username)
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Username: user.Username})
	require.NoError(e.T, err)
	return user, token
}

// Date formats the calendar date offset days from the environment clock.
func (e *Env) Date(days int) string {
	return e.Now.AddDate(0, 0, days).Format("2006-01-02")
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
