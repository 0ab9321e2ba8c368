package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/api"
	"github.com/tripbill/tripbill/internal/app"
	"github.com/tripbill/tripbill/internal/app/maintenance"
	iauth "github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/database"
	"github.com/tripbill/tripbill/internal/permissions"
	"github.com/tripbill/tripbill/internal/services"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Cache   cache.Store
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, cache, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			stack.Cache = stack.Redis
			log.Info("redis connected")
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	access, err := permissions.NewTripAccess(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise trip access: %w", err)
	}
	tripSvc, err := services.NewTripService(stack.DB, access)
	if err != nil {
		return nil, fmt.Errorf("initialise trip service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, tripSvc,
			maintenance.WithCachePurger(dbStore),
			maintenance.WithBatchSize(cfg.Maintenance.ReconcileBatchSize),
			maintenance.WithReconcileSchedule(cfg.Maintenance.ReconcileSchedule),
			maintenance.WithInvitationSchedule(cfg.Maintenance.InvitationExpirySchedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.CachePurgeSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	routerOpts := []api.RouterOption{
		api.WithCache(stack.Cache),
		api.WithTripServices(access, tripSvc),
	}
	if stack.Redis != nil {
		routerOpts = append(routerOpts, api.WithCachePinger(stack.Redis))
	}
	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	driver := strings.TrimSpace(dbCfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}
	log.Info("database connected", zap.String("driver", driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
