package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/database/testutil"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryRateStore(func() time.Time { return current })

	r := gin.New()
	r.Use(RateLimit(store, "test", 2, time.Minute, ByClientIP))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return w
	}

	for i := 0; i < 2; i++ {
		w := call()
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := call()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	current = current.Add(time.Minute)
	require.Equal(t, http.StatusOK, call().Code)
}

func TestRateLimitWithDatabaseStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewStoreRateStore(cache.NewDatabaseStore(db))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxUserIDKey, c.GetHeader("X-User"))
		c.Next()
	})
	r.Use(RateLimit(store, "join", 1, time.Minute, ByUser))
	r.POST("/join", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/join", nil)
		req.Header.Set("X-User", user)
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusNoContent, call("a"))
	require.Equal(t, http.StatusTooManyRequests, call("a"))
	require.Equal(t, http.StatusNoContent, call("b"))
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(failingRateStore{}, "test", 1, time.Minute, nil))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMemoryRateStoreSweepsExpiredWindows(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryRateStore(func() time.Time { return current })

	for i := 0; i < sweepThreshold; i++ {
		_, _, err := store.Increment(context.Background(), string(rune(i)), time.Second)
		require.NoError(t, err)
	}
	current = current.Add(time.Second)

	_, _, err := store.Increment(context.Background(), "fresh", time.Second)
	require.NoError(t, err)
	require.Len(t, store.data, 1)
}
