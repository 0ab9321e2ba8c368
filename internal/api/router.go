package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/app"
	iauth "github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/handlers"
	"github.com/tripbill/tripbill/internal/middleware"
	"github.com/tripbill/tripbill/internal/monitoring"
	"github.com/tripbill/tripbill/internal/permissions"
	"github.com/tripbill/tripbill/internal/services"
)

const (
	defaultJoinPerMinute = 10
	readinessTimeout     = 2 * time.Second
)

type routerOptions struct {
	cache  cache.Store
	pinger monitoring.Pinger
	clock  func() time.Time
	access *permissions.TripAccess
	trips  *services.TripService
}

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

// WithCache shares a cache store for principal lookups and rate limiting.
// Without it those fall back to process memory and direct reads.
func WithCache(store cache.Store) RouterOption {
	return func(o *routerOptions) {
		o.cache = store
	}
}

// WithCachePinger adds the cache to the readiness probe.
func WithCachePinger(p monitoring.Pinger) RouterOption {
	return func(o *routerOptions) {
		o.pinger = p
	}
}

// WithTripServices shares the permission evaluator and trip service built by
// the caller, so background jobs and handlers use the same instances.
func WithTripServices(access *permissions.TripAccess, trips *services.TripService) RouterOption {
	return func(o *routerOptions) {
		o.access = access
		o.trips = trips
	}
}

// WithClock injects the clock used for trip status and invitation expiry.
func WithClock(now func() time.Time) RouterOption {
	return func(o *routerOptions) {
		o.clock = now
	}
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, opts ...RouterOption) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	options := routerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.TLS))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		MaxAge:         cfg.Server.CORS.MaxAge,
	}))

	probes := []monitoring.Probe{monitoring.DatabaseProbe(db)}
	if options.pinger != nil {
		probes = append(probes, monitoring.PingProbe("cache", options.pinger))
	}
	registerHealthRoutes(r, handlers.NewHealthHandler(monitoring.NewHealth(readinessTimeout, probes...)))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	principalOpts := []iauth.PrincipalOption{}
	rateStore := middleware.RateStore(middleware.NewMemoryRateStore(options.clock))
	if options.cache != nil {
		principalOpts = append(principalOpts, iauth.WithPrincipalCache(options.cache, cfg.Cache.PrincipalTTL))
		rateStore = middleware.NewStoreRateStore(options.cache)
	}
	principals, err := iauth.NewPrincipalResolver(db, principalOpts...)
	if err != nil {
		return nil, err
	}

	access := options.access
	if access == nil {
		access, err = permissions.NewTripAccess(db, permissions.WithClock(options.clock))
		if err != nil {
			return nil, err
		}
	}
	tripSvc := options.trips
	if tripSvc == nil {
		tripSvc, err = services.NewTripService(db, access, services.WithTripClock(options.clock))
		if err != nil {
			return nil, err
		}
	}
	invitationOpts := append(cfg.InvitationOptions(), services.WithInvitationClock(options.clock))
	invitationSvc, err := services.NewInvitationService(db, access, invitationOpts...)
	if err != nil {
		return nil, err
	}

	joinPerMinute := cfg.RateLimit.JoinPerMinute
	if joinPerMinute <= 0 {
		joinPerMinute = defaultJoinPerMinute
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(jwt, principals))

	if err := registerTripRoutes(v1, tripSvc, invitationSvc,
		middleware.RateLimit(rateStore, "join", joinPerMinute, time.Minute, middleware.ByUser),
	); err != nil {
		return nil, err
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
