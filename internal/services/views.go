package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/repository"
)

// TripView is the API representation of a trip.
type TripView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    *string           `json:"description"`
	StartDate      string            `json:"start_date"`
	EndDate        *string           `json:"end_date"`
	Budget         *decimal.Decimal  `json:"budget"`
	CoverImageURL  *string           `json:"cover_image_url"`
	Status         models.TripStatus `json:"status"`
	CreatorID      string            `json:"creator_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	UserRoleInTrip *models.TripRole  `json:"user_role_in_trip,omitempty"`
}

// TripPage is one page of a user's trips.
type TripPage struct {
	Items      []TripView `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// MemberView is the API representation of a trip membership.
type MemberView struct {
	ID          string              `json:"id"`
	TripID      string              `json:"trip_id"`
	UserID      string              `json:"user_id"`
	Username    string              `json:"username,omitempty"`
	DisplayName string              `json:"display_name,omitempty"`
	Role        models.TripRole     `json:"role"`
	Status      models.MemberStatus `json:"status"`
	JoinedAt    *time.Time          `json:"joined_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// InvitationTokenView is returned once, when an invitation is issued. The raw
// token is not stored and cannot be retrieved again.
type InvitationTokenView struct {
	InvitationID string          `json:"invitation_id"`
	InviteToken  string          `json:"invite_token"`
	JoinLink     string          `json:"join_link"`
	QRCodeData   string          `json:"qr_code_data"`
	ExpiresAt    *time.Time      `json:"expires_at"`
	MaxUses      *int            `json:"max_uses"`
	RoleToAssign models.TripRole `json:"role_to_assign"`
}

func newTripView(trip *models.Trip) TripView {
	view := TripView{
		ID:            trip.ID,
		Name:          trip.Name,
		Description:   trip.Description,
		StartDate:     time.Time(trip.StartDate).Format(models.DateLayout),
		CoverImageURL: trip.CoverImageURL,
		Status:        trip.Status,
		CreatorID:     trip.CreatorID,
		CreatedAt:     trip.CreatedAt,
		UpdatedAt:     trip.UpdatedAt,
	}
	if trip.EndDate != nil {
		end := time.Time(*trip.EndDate).Format(models.DateLayout)
		view.EndDate = &end
	}
	if trip.Budget.Valid {
		budget := trip.Budget.Decimal.Round(2)
		view.Budget = &budget
	}
	return view
}

func newListedTripView(row *repository.TripWithRole) TripView {
	view := newTripView(&row.Trip)
	role := row.UserRoleInTrip
	view.UserRoleInTrip = &role
	return view
}

func newMemberView(member *models.TripMember) MemberView {
	view := MemberView{
		ID:        member.ID,
		TripID:    member.TripID,
		UserID:    member.UserID,
		Role:      member.Role,
		Status:    member.Status,
		JoinedAt:  member.JoinedAt,
		CreatedAt: member.CreatedAt,
		UpdatedAt: member.UpdatedAt,
	}
	if member.User != nil {
		view.Username = member.User.Username
		view.DisplayName = member.User.DisplayName
	}
	return view
}
