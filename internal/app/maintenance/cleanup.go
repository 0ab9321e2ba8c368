package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/repository"
	"github.com/tripbill/tripbill/pkg/logger"
	"github.com/tripbill/tripbill/pkg/metrics"
)

const (
	defaultReconcileSpec  = "@every 15m"
	defaultInvitationSpec = "@hourly"
	defaultCachePurgeSpec = "@hourly"
	defaultBatchSize      = 200

	jobReconcile   = "trip_status_reconcile"
	jobInvitations = "invitation_expiry"
	jobCachePurge  = "cache_purge"
)

// TripReconciler rewrites stored trip statuses that drifted from their dates.
type TripReconciler interface {
	ReconcileAll(ctx context.Context, batchSize int) (int, error)
}

// CachePurger drops expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: trip status sweeps, deactivation
// of spent invitations and purging of the database-backed cache.
type Cleaner struct {
	db        *gorm.DB
	trips     TripReconciler
	cache     CachePurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	batchSize int

	reconcileSchedule  string
	invitationSchedule string
	cacheSchedule      string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCachePurger enables the cache purge job.
func WithCachePurger(purger CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// WithBatchSize sets how many trips the status sweep loads per query.
func WithBatchSize(size int) Option {
	return func(cleaner *Cleaner) {
		if size > 0 {
			cleaner.batchSize = size
		}
	}
}

// WithReconcileSchedule overrides the cron specification for the trip status sweep.
func WithReconcileSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.reconcileSchedule = spec
		}
	}
}

// WithInvitationSchedule overrides the cron specification for invitation expiry.
func WithInvitationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.invitationSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(db *gorm.DB, trips TripReconciler, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                 db,
		trips:              trips,
		now:                time.Now,
		batchSize:          defaultBatchSize,
		reconcileSchedule:  defaultReconcileSpec,
		invitationSchedule: defaultInvitationSpec,
		cacheSchedule:      defaultCachePurgeSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.trips != nil || cleaner.cache != nil || cleaner.db != nil

	return cleaner
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	for _, job := range c.jobs() {
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			_ = c.run(context.Background(), job)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", job.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and returns their combined error.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, job := range c.jobs() {
		errs = multierr.Append(errs, c.run(ctx, job))
	}
	return errs
}

type job struct {
	name string
	spec string
	fn   func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.trips != nil {
		jobs = append(jobs, job{name: jobReconcile, spec: c.reconcileSchedule, fn: func(ctx context.Context) (int64, error) {
			updated, err := c.trips.ReconcileAll(ctx, c.batchSize)
			return int64(updated), err
		}})
	}
	if c.db != nil {
		jobs = append(jobs, job{name: jobInvitations, spec: c.invitationSchedule, fn: func(ctx context.Context) (int64, error) {
			return ExpireInvitations(ctx, c.db, c.now())
		}})
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: jobCachePurge, spec: c.cacheSchedule, fn: c.cache.PurgeExpired})
	}
	return jobs
}

func (c *Cleaner) run(ctx context.Context, j job) error {
	affected, err := j.fn(ctx)
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(j.name, "error").Inc()
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Int64("affected", affected), zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, "success").Inc()
	if affected > 0 {
		c.log.Info("maintenance job completed", zap.String("job", j.name), zap.Int64("affected", affected))
	}
	return nil
}

// ExpireInvitations deactivates invitations that expired or were used up.
func ExpireInvitations(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("expire invitations: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	affected, err := repository.NewInvitationRepository().DeactivateExpired(ctx, db, now)
	if err != nil {
		return affected, fmt.Errorf("expire invitations: %w", err)
	}
	return affected, nil
}
