package services

import (
	"net/http"

	apperrors "github.com/tripbill/tripbill/pkg/errors"
)

var (
	// ErrTripDateOrder rejects ranges whose start is not strictly before the end.
	ErrTripDateOrder = apperrors.New("TRIP_INVALID_DATES", "Trip start date must be before the end date", http.StatusBadRequest)
	// ErrTripStartInPast rejects trips created with a start date before today.
	ErrTripStartInPast = apperrors.New("TRIP_START_IN_PAST", "Trip start date cannot be in the past", http.StatusBadRequest)
	// ErrTripStatusMismatch rejects an update whose requested status contradicts the new dates.
	ErrTripStatusMismatch = apperrors.New("TRIP_STATUS_MISMATCH", "Trip status does not match the trip dates", http.StatusBadRequest)

	// ErrInvitationNotFound covers unknown, expired, exhausted and revoked tokens alike.
	ErrInvitationNotFound = apperrors.New("INVITATION_NOT_FOUND", "Invitation token is invalid or has expired", http.StatusNotFound)
	// ErrAlreadyTripMember is returned when the caller already belongs to the trip.
	ErrAlreadyTripMember = apperrors.New("ALREADY_TRIP_MEMBER", "You are already a member of this trip", http.StatusConflict)
	// ErrInvitationOwnerRole rejects invitations that would hand out ownership.
	ErrInvitationOwnerRole = apperrors.New("INVITATION_INVALID_ROLE", "Invitations cannot assign the owner role", http.StatusBadRequest)
)
