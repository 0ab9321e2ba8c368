package permissions

import (
	"net/http"

	apperrors "github.com/tripbill/tripbill/pkg/errors"
)

var (
	ErrTripNotFound      = apperrors.New("TRIP_NOT_FOUND", "Trip not found", http.StatusNotFound)
	ErrTripAccessDenied  = apperrors.New("TRIP_ACCESS_DENIED", "You are not an active member of this trip", http.StatusForbidden)
	ErrTripUpdateDenied  = apperrors.New("TRIP_UPDATE_FORBIDDEN", "Only the trip owner or an admin can update this trip", http.StatusForbidden)
	ErrTripDeleteDenied  = apperrors.New("TRIP_DELETE_FORBIDDEN", "Only the trip owner can delete this trip", http.StatusForbidden)
	ErrTripInviteDenied  = apperrors.New("TRIP_INVITE_FORBIDDEN", "Your role cannot invite members to this trip", http.StatusForbidden)
	ErrTripNotInvitable  = apperrors.New("TRIP_NOT_INVITABLE", "This trip has ended or was cancelled and no longer accepts members", http.StatusForbidden)
	ErrUnknownTripAction = apperrors.New("TRIP_ACTION_UNKNOWN", "Unknown trip action", http.StatusInternalServerError)
)
