package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Trip is a shared travel plan. Status is the last persisted lifecycle value and
// may lag behind DeriveTripStatus until the next read reconciles it.
type Trip struct {
	BaseModel

	Name          string              `gorm:"size:255;not null" json:"name"`
	Description   *string             `gorm:"type:text" json:"description,omitempty"`
	StartDate     datatypes.Date      `gorm:"not null;index" json:"start_date"`
	EndDate       *datatypes.Date     `json:"end_date,omitempty"`
	Budget        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"budget"`
	CoverImageURL *string             `gorm:"size:1024" json:"cover_image_url,omitempty"`
	Status        TripStatus          `gorm:"not null;index" json:"status"`
	CreatorID     string              `gorm:"size:36;not null;index" json:"creator_id"`
	Deleted       bool                `gorm:"not null;default:false;index" json:"-"`

	Members []TripMember `gorm:"foreignKey:TripID" json:"-"`
}

// TripMember links a user to a trip. There is at most one row per (trip, user);
// leaving and rejoining reuses it.
type TripMember struct {
	BaseModel

	TripID   string       `gorm:"size:36;not null;uniqueIndex:idx_trip_members_trip_user" json:"trip_id"`
	UserID   string       `gorm:"size:36;not null;uniqueIndex:idx_trip_members_trip_user;index" json:"user_id"`
	Role     TripRole     `gorm:"not null" json:"role"`
	Status   MemberStatus `gorm:"not null" json:"status"`
	JoinedAt *time.Time   `json:"joined_at,omitempty"`
	Deleted  bool         `gorm:"not null;default:false" json:"-"`

	Trip *Trip `gorm:"foreignKey:TripID" json:"-"`
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TripInvitation is a redeemable join token for a trip. Only the SHA-256 of
// the token is stored.
type TripInvitation struct {
	BaseModel

	TripID          string     `gorm:"size:36;not null;index" json:"trip_id"`
	TokenHash       string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	CreatedByUserID string     `gorm:"size:36;not null" json:"created_by_user_id"`
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at,omitempty"`
	MaxUses         *int       `json:"max_uses,omitempty"`
	CurrentUses     int        `gorm:"not null;default:0" json:"current_uses"`
	RoleToAssign    TripRole   `gorm:"not null" json:"role_to_assign"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	Deleted         bool       `gorm:"not null;default:false" json:"-"`

	Trip *Trip `gorm:"foreignKey:TripID" json:"-"`
}

// Usable reports whether the invitation can still be redeemed at now.
func (i *TripInvitation) Usable(now time.Time) bool {
	if i == nil || !i.IsActive || i.Deleted {
		return false
	}
	if i.ExpiresAt != nil && !i.ExpiresAt.After(now) {
		return false
	}
	if i.MaxUses != nil && i.CurrentUses >= *i.MaxUses {
		return false
	}
	return true
}

// DeriveTripStatus computes the status a trip should have at now. Cancelled is
// sticky. Otherwise the trip is Active from the first instant of its start date
// through the last instant of its end date, both taken in now's location.
func DeriveTripStatus(trip *Trip, now time.Time) TripStatus {
	if trip.Status == TripStatusCancelled {
		return TripStatusCancelled
	}

	end := trip.StartDate
	if trip.EndDate != nil {
		end = *trip.EndDate
	}

	loc := now.Location()
	switch {
	case now.Before(StartOfDay(time.Time(trip.StartDate), loc)):
		return TripStatusPlanned
	case now.After(EndOfDay(time.Time(end), loc)):
		return TripStatusEnded
	default:
		return TripStatusActive
	}
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of t's calendar date in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// NewDate builds a calendar date value for storage.
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
