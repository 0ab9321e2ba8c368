package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/repository"
	"github.com/tripbill/tripbill/pkg/metrics"
)

// Action is a trip operation guarded by membership.
type Action string

const (
	ActionView   Action = "trip.view"
	ActionUpdate Action = "trip.update"
	ActionDelete Action = "trip.delete"
	ActionInvite Action = "trip.invite"
)

// Grant is the result of a successful authorization. Both values were loaded
// for this request and are safe for the caller to use.
type Grant struct {
	Trip   *models.Trip
	Member *models.TripMember
}

// Option customises TripAccess.
type Option func(*TripAccess)

// WithClock sets the clock used by the invitable-state guard.
func WithClock(clock func() time.Time) Option {
	return func(a *TripAccess) {
		if clock != nil {
			a.now = clock
		}
	}
}

// TripAccess evaluates a user's rights on a trip from their membership row.
// Nothing is cached; every call reads the trip and membership again.
type TripAccess struct {
	db      *gorm.DB
	trips   *repository.TripRepository
	members *repository.MemberRepository
	now     func() time.Time
}

func NewTripAccess(db *gorm.DB, opts ...Option) (*TripAccess, error) {
	if db == nil {
		return nil, errors.New("trip access: db is required")
	}
	access := &TripAccess{
		db:      db,
		trips:   repository.NewTripRepository(),
		members: repository.NewMemberRepository(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(access)
	}
	return access, nil
}

// Authorize loads the trip and the caller's membership and checks action against them.
// The trip must exist and the caller must be an active member for every action.
func (a *TripAccess) Authorize(ctx context.Context, userID, tripID string, action Action) (grant *Grant, err error) {
	defer func() {
		metrics.PermissionChecks.WithLabelValues(string(action), outcome(err)).Inc()
	}()

	tripID = strings.TrimSpace(tripID)
	if tripID == "" {
		return nil, ErrTripNotFound
	}

	trip, err := a.trips.FindByID(ctx, a.db, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, fmt.Errorf("trip access: load trip: %w", err)
	}

	member, err := a.members.Find(ctx, a.db, tripID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripAccessDenied
		}
		return nil, fmt.Errorf("trip access: load membership: %w", err)
	}
	if member.Status != models.MemberStatusActive {
		return nil, ErrTripAccessDenied
	}

	if err := a.check(trip, member, action); err != nil {
		return nil, err
	}
	return &Grant{Trip: trip, Member: member}, nil
}

func (a *TripAccess) check(trip *models.Trip, member *models.TripMember, action Action) error {
	switch action {
	case ActionView:
		return nil
	case ActionUpdate:
		if !member.Role.CanUpdateTrip() {
			return ErrTripUpdateDenied
		}
		return nil
	case ActionDelete:
		if !member.Role.CanDeleteTrip() {
			return ErrTripDeleteDenied
		}
		return nil
	case ActionInvite:
		if !member.Role.CanInvite() {
			return ErrTripInviteDenied
		}
		if !models.DeriveTripStatus(trip, a.now()).Invitable() {
			return ErrTripNotInvitable
		}
		return nil
	default:
		return ErrUnknownTripAction.WithMessage(fmt.Sprintf("Unknown trip action %q", action))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "allow"
	case errors.Is(err, ErrTripNotFound):
		return "not_found"
	case errors.Is(err, ErrTripAccessDenied),
		errors.Is(err, ErrTripUpdateDenied),
		errors.Is(err, ErrTripDeleteDenied),
		errors.Is(err, ErrTripInviteDenied),
		errors.Is(err, ErrTripNotInvitable):
		return "deny"
	default:
		return "error"
	}
}
