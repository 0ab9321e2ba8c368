package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/permissions"
	"github.com/tripbill/tripbill/internal/repository"
	apperrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/logger"
	"github.com/tripbill/tripbill/pkg/metrics"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	maxTripNameLength = 255
	defaultSweepBatch = 200
)

// budgetLimit is the first value that no longer fits decimal(10,2).
var budgetLimit = decimal.New(1, 8)

// CreateTripInput captures a new trip. Dates are calendar dates; the clock part is ignored.
type CreateTripInput struct {
	CreatorID     string
	Name          string
	Description   *string
	StartDate     time.Time
	EndDate       time.Time
	Budget        *decimal.Decimal
	CoverImageURL *string
}

// UpdateTripInput describes a partial trip update. Nil fields are left untouched.
type UpdateTripInput struct {
	Name          *string
	Description   *string
	StartDate     *time.Time
	EndDate       *time.Time
	Budget        *decimal.Decimal
	CoverImageURL *string
	Status        *models.TripStatus
}

func (in UpdateTripInput) changesDates() bool {
	return in.StartDate != nil || in.EndDate != nil
}

// ListTripsInput selects a page of the caller's trips. Zero filters match everything.
type ListTripsInput struct {
	UserID   string
	Status   models.TripStatus
	Role     models.TripRole
	Page     int
	PageSize int
}

// TripOption customises TripService behaviour.
type TripOption func(*TripService)

// WithTripClock injects a custom clock primarily for testing.
func WithTripClock(clock func() time.Time) TripOption {
	return func(s *TripService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// TripService runs the trip lifecycle: creation, listing and detail reads with
// lazy status reconciliation, partial updates and cascading soft deletion.
type TripService struct {
	db          *gorm.DB
	access      *permissions.TripAccess
	trips       *repository.TripRepository
	members     *repository.MemberRepository
	invitations *repository.InvitationRepository
	now         func() time.Time
	log         *zap.Logger
}

// NewTripService constructs a TripService.
func NewTripService(db *gorm.DB, access *permissions.TripAccess, opts ...TripOption) (*TripService, error) {
	if db == nil {
		return nil, errors.New("trip service: db is required")
	}
	if access == nil {
		return nil, errors.New("trip service: access evaluator is required")
	}

	service := &TripService{
		db:          db,
		access:      access,
		trips:       repository.NewTripRepository(),
		members:     repository.NewMemberRepository(),
		invitations: repository.NewInvitationRepository(),
		now:         time.Now,
		log:         logger.WithModule("trips"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create stores a trip together with its owner membership.
func (s *TripService) Create(ctx context.Context, input CreateTripInput) (*TripView, error) {
	ctx = ensureContext(ctx)

	name, err := validateTripName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateBudget(input.Budget); err != nil {
		return nil, err
	}

	now := s.now()
	start := calendarDate(input.StartDate)
	end := calendarDate(input.EndDate)
	if !start.Before(end) {
		return nil, ErrTripDateOrder
	}
	day := today(now)
	if start.Before(day) {
		return nil, ErrTripStartInPast
	}

	status := models.TripStatusActive
	if start.After(day) {
		status = models.TripStatusPlanned
	}

	endDate := models.NewDate(end)
	trip := &models.Trip{
		Name:          name,
		Description:   trimOptional(input.Description),
		StartDate:     models.NewDate(start),
		EndDate:       &endDate,
		CoverImageURL: trimOptional(input.CoverImageURL),
		Status:        status,
		CreatorID:     input.CreatorID,
	}
	if input.Budget != nil {
		trip.Budget = decimal.NewNullDecimal(*input.Budget)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.trips.Create(ctx, tx, trip); err != nil {
			return fmt.Errorf("create trip: %w", err)
		}
		owner := &models.TripMember{
			TripID:   trip.ID,
			UserID:   input.CreatorID,
			Role:     models.TripRoleOwner,
			Status:   models.MemberStatusActive,
			JoinedAt: &now,
		}
		if err := s.members.Upsert(ctx, tx, owner, now); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trip service: %w", err)
	}

	metrics.TripsCreated.Inc()
	s.log.Info("trip created",
		zap.String("trip_id", trip.ID),
		zap.String("creator_id", trip.CreatorID),
		zap.Stringer("status", trip.Status),
	)

	view := newTripView(trip)
	return &view, nil
}

// List returns a page of the trips the user actively belongs to. Each trip's
// status is reconciled before it is returned.
func (s *TripService) List(ctx context.Context, input ListTripsInput) (*TripPage, error) {
	ctx = ensureContext(ctx)

	page, size, err := normalisePage(input.Page, input.PageSize)
	if err != nil {
		return nil, err
	}
	if input.Status != 0 && !input.Status.Valid() {
		return nil, apperrors.NewBadRequest("status filter must be one of 1, 2, 3, 4")
	}
	if input.Role != 0 && !input.Role.Valid() {
		return nil, apperrors.NewBadRequest("role filter must be one of 1, 2, 3, 4")
	}

	rows, total, err := s.trips.ListForUser(ctx, s.db, input.UserID,
		repository.TripFilter{Status: input.Status, Role: input.Role},
		repository.Page{Number: page, Size: size},
	)
	if err != nil {
		return nil, fmt.Errorf("trip service: list trips: %w", err)
	}

	now := s.now()
	items := make([]TripView, 0, len(rows))
	for i := range rows {
		if err := s.reconcile(ctx, &rows[i].Trip, now); err != nil {
			return nil, err
		}
		items = append(items, newListedTripView(&rows[i]))
	}

	return &TripPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// Get returns a trip the user actively belongs to, with its status reconciled.
func (s *TripService) Get(ctx context.Context, userID, tripID string) (*TripView, error) {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionView)
	if err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx, grant.Trip, s.now()); err != nil {
		return nil, err
	}

	view := newTripView(grant.Trip)
	role := grant.Member.Role
	view.UserRoleInTrip = &role
	return &view, nil
}

// Update applies a partial update. Owners and admins only.
//
// A requested status is checked against the dates only when the same request
// also changes a date. Cancelled is always accepted. A status sent on its own
// is stored as given and later reads reconcile it.
func (s *TripService) Update(ctx context.Context, userID, tripID string, input UpdateTripInput) (*TripView, error) {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionUpdate)
	if err != nil {
		return nil, err
	}
	trip := grant.Trip

	updates := map[string]any{}

	if input.Name != nil {
		name, err := validateTripName(*input.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = trimOptional(input.Description)
	}
	if input.CoverImageURL != nil {
		updates["cover_image_url"] = trimOptional(input.CoverImageURL)
	}
	if input.Budget != nil {
		if err := validateBudget(input.Budget); err != nil {
			return nil, err
		}
		updates["budget"] = decimal.NewNullDecimal(*input.Budget)
	}

	start, end, err := effectiveDates(trip, input)
	if err != nil {
		return nil, err
	}
	if input.StartDate != nil {
		updates["start_date"] = models.NewDate(start)
	}
	if input.EndDate != nil {
		updates["end_date"] = models.NewDate(end)
	}

	if input.Status != nil {
		requested := *input.Status
		if !requested.Valid() {
			return nil, apperrors.NewBadRequest("status must be one of 1, 2, 3, 4")
		}
		if input.changesDates() && requested != models.TripStatusCancelled {
			candidate := *trip
			candidate.StartDate = models.NewDate(start)
			endDate := models.NewDate(end)
			candidate.EndDate = &endDate

			derived := models.DeriveTripStatus(&candidate, s.now())
			if derived != requested {
				return nil, ErrTripStatusMismatch.WithMessage(fmt.Sprintf(
					"Trip status %s does not match the dates %s to %s; the dates imply %s",
					requested, start.Format(models.DateLayout), end.Format(models.DateLayout), derived,
				))
			}
		}
		updates["status"] = requested
	}

	if err := s.trips.Update(ctx, s.db, trip.ID, updates); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, permissions.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip service: update trip: %w", err)
	}

	updated, err := s.trips.FindByID(ctx, s.db, trip.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, permissions.ErrTripNotFound
		}
		return nil, fmt.Errorf("trip service: reload trip: %w", err)
	}

	s.log.Info("trip updated",
		zap.String("trip_id", trip.ID),
		zap.String("user_id", userID),
		zap.Strings("fields", updatedFields(updates)),
	)

	view := newTripView(updated)
	role := grant.Member.Role
	view.UserRoleInTrip = &role
	return &view, nil
}

// Delete soft-deletes a trip with its memberships and invitations. Owner only.
func (s *TripService) Delete(ctx context.Context, userID, tripID string) error {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionDelete)
	if err != nil {
		return err
	}

	now := s.now()
	var membersRemoved, invitationsRemoved int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.trips.SoftDelete(ctx, tx, grant.Trip.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return permissions.ErrTripNotFound
			}
			return fmt.Errorf("delete trip: %w", err)
		}
		var err error
		if membersRemoved, err = s.members.SoftDeleteByTrip(ctx, tx, grant.Trip.ID, now); err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if invitationsRemoved, err = s.invitations.SoftDeleteByTrip(ctx, tx, grant.Trip.ID, now); err != nil {
			return fmt.Errorf("delete invitations: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("trip service: %w", err)
	}

	s.log.Info("trip deleted",
		zap.String("trip_id", grant.Trip.ID),
		zap.String("user_id", userID),
		zap.Int64("memberships", membersRemoved),
		zap.Int64("invitations", invitationsRemoved),
	)
	return nil
}

// Members lists the active members of a trip the caller belongs to.
func (s *TripService) Members(ctx context.Context, userID, tripID string) ([]MemberView, error) {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionView)
	if err != nil {
		return nil, err
	}

	members, err := s.members.ListByTrip(ctx, s.db, grant.Trip.ID, models.MemberStatusActive)
	if err != nil {
		return nil, fmt.Errorf("trip service: list members: %w", err)
	}

	views := make([]MemberView, 0, len(members))
	for i := range members {
		views = append(views, newMemberView(&members[i]))
	}
	return views, nil
}

// ReconcileAll walks every live trip and persists any status that drifted
// from its dates. It continues past individual failures and returns how many
// trips were rewritten together with the combined error.
func (s *TripService) ReconcileAll(ctx context.Context, batchSize int) (int, error) {
	ctx = ensureContext(ctx)
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}

	var (
		updated  int
		combined error
		afterID  string
	)
	for {
		if err := ctx.Err(); err != nil {
			return updated, multierr.Append(combined, err)
		}

		batch, err := s.trips.ListReconcilable(ctx, s.db, afterID, batchSize)
		if err != nil {
			return updated, multierr.Append(combined, fmt.Errorf("trip service: list reconcilable trips: %w", err))
		}
		if len(batch) == 0 {
			return updated, combined
		}

		now := s.now()
		for i := range batch {
			before := batch[i].Status
			if err := s.reconcile(ctx, &batch[i], now); err != nil {
				combined = multierr.Append(combined, err)
				continue
			}
			if batch[i].Status != before {
				updated++
			}
		}
		afterID = batch[len(batch)-1].ID
	}
}

// reconcile brings the stored status in line with the derived one. The trip
// value is updated in place so the caller presents the derived status. A
// failed write fails the read.
func (s *TripService) reconcile(ctx context.Context, trip *models.Trip, now time.Time) error {
	derived := models.DeriveTripStatus(trip, now)
	if derived == trip.Status {
		return nil
	}

	if err := s.trips.UpdateStatus(ctx, s.db, trip.ID, derived, now); err != nil {
		s.log.Error("failed to reconcile trip status",
			zap.String("trip_id", trip.ID),
			zap.Stringer("stored", trip.Status),
			zap.Stringer("derived", derived),
			zap.Error(err),
		)
		return fmt.Errorf("trip service: reconcile status of %s: %w", trip.ID, err)
	}

	metrics.StatusReconciliations.WithLabelValues(trip.Status.String(), derived.String()).Inc()
	s.log.Debug("trip status reconciled",
		zap.String("trip_id", trip.ID),
		zap.Stringer("from", trip.Status),
		zap.Stringer("to", derived),
	)

	trip.Status = derived
	trip.UpdatedAt = now
	return nil
}

// effectiveDates merges the requested dates over the stored ones. Both sides
// are reduced to calendar dates before they are compared.
func effectiveDates(trip *models.Trip, input UpdateTripInput) (time.Time, time.Time, error) {
	start := calendarDate(time.Time(trip.StartDate))
	if input.StartDate != nil {
		start = calendarDate(*input.StartDate)
	}
	var end time.Time
	switch {
	case input.EndDate != nil:
		end = calendarDate(*input.EndDate)
	case trip.EndDate != nil:
		end = calendarDate(time.Time(*trip.EndDate))
	default:
		return time.Time{}, time.Time{}, apperrors.NewBadRequest("trip end date is required")
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, ErrTripDateOrder
	}
	return start, end, nil
}

func normalisePage(page, size int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		return 0, 0, apperrors.NewBadRequest("page must be at least 1")
	}
	if size < 1 || size > MaxPageSize {
		return 0, 0, apperrors.NewBadRequest(fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}
	return page, size, nil
}

func validateTripName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.NewBadRequest("trip name is required")
	}
	if utf8.RuneCountInString(name) > maxTripNameLength {
		return "", apperrors.NewBadRequest(fmt.Sprintf("trip name must be at most %d characters", maxTripNameLength))
	}
	return name, nil
}

func validateBudget(budget *decimal.Decimal) error {
	if budget == nil {
		return nil
	}
	if budget.IsNegative() {
		return apperrors.NewBadRequest("budget cannot be negative")
	}
	if budget.Round(2).GreaterThanOrEqual(budgetLimit) {
		return apperrors.NewBadRequest("budget is too large")
	}
	return nil
}

func updatedFields(updates map[string]any) []string {
	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
