package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tripbill/tripbill/internal/app"
	iauth "github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/database/testutil"
	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/permissions"
	"github.com/tripbill/tripbill/internal/services"
)

func newTestRouter(t *testing.T, cfg *app.Config, opts ...RouterOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc, cfg, opts...)
	require.NoError(t, err)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, &app.Config{})

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready").Code)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/trips/create"},
		{http.MethodGet, "/api/v1/trips/list"},
		{http.MethodGet, "/api/v1/trips/detail/abc"},
		{http.MethodPatch, "/api/v1/trips/update/abc"},
		{http.MethodDelete, "/api/v1/trips/delete/abc"},
		{http.MethodGet, "/api/v1/trips/members/abc"},
		{http.MethodPost, "/api/v1/trips/invitation-tokens/abc"},
		{http.MethodDelete, "/api/v1/trips/invitation-tokens/abc/def"},
		{http.MethodGet, "/api/v1/trips/join-trip?token=x"},
	} {
		require.Equal(t, http.StatusUnauthorized, serve(router, route.method, route.path).Code, route.path)
	}

	w := serve(router, http.MethodGet, "/api/v1/unknown")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true

	router := newTestRouter(t, cfg)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)

	w := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "tripbill_api_latency_seconds"))
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := newTestRouter(t, &app.Config{})
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics").Code)
}

func TestRouter_CustomMetricsEndpointAndCache(t *testing.T) {
	cfg := &app.Config{}
	cfg.Monitoring.Prometheus = app.PrometheusConfig{Enabled: true, Endpoint: "/internal/metrics"}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret"})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc, cfg, WithCache(cache.NewDatabaseStore(db)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/internal/metrics").Code)
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret"})
	require.NoError(t, err)

	_, err = NewRouter(nil, jwtSvc, &app.Config{})
	require.Error(t, err)
	_, err = NewRouter(db, nil, &app.Config{})
	require.Error(t, err)
	_, err = NewRouter(db, jwtSvc, nil)
	require.Error(t, err)
}

func TestRouter_UsesSharedTripServices(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	access, err := permissions.NewTripAccess(db, permissions.WithClock(clock))
	require.NoError(t, err)
	trips, err := services.NewTripService(db, access, services.WithTripClock(clock))
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc, &app.Config{}, WithTripServices(access, trips))
	require.NoError(t, err)

	owner := testutil.MustCreateUser(t, db, "owner")
	trip, err := trips.Create(context.Background(), services.CreateTripInput{
		CreatorID: owner.ID,
		Name:      "Kyoto",
		StartDate: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, models.TripStatusPlanned, trip.Status)

	// The shared clock decides the status, not wall time.
	now = now.Add(48 * time.Hour)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: owner.ID, Username: owner.Username})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips/detail/"+trip.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Status models.TripStatus `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, models.TripStatusActive, body.Data.Status)
}
