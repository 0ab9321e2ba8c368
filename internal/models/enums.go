package models

import "fmt"

// TripStatus is the lifecycle state of a trip. Values are part of the wire format.
type TripStatus int

const (
	TripStatusPlanned   TripStatus = 1
	TripStatusActive    TripStatus = 2
	TripStatusEnded     TripStatus = 3
	TripStatusCancelled TripStatus = 4
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusPlanned, TripStatusActive, TripStatusEnded, TripStatusCancelled:
		return true
	default:
		return false
	}
}

func (s TripStatus) String() string {
	switch s {
	case TripStatusPlanned:
		return "planned"
	case TripStatusActive:
		return "active"
	case TripStatusEnded:
		return "ended"
	case TripStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("trip_status(%d)", int(s))
	}
}

// Invitable reports whether new members may still be invited to a trip in this state.
func (s TripStatus) Invitable() bool {
	switch s {
	case TripStatusPlanned, TripStatusActive:
		return true
	case TripStatusEnded, TripStatusCancelled:
		return false
	default:
		return false
	}
}

// TripRole is a member's role within a single trip.
type TripRole int

const (
	TripRoleOwner  TripRole = 1
	TripRoleAdmin  TripRole = 2
	TripRoleEditor TripRole = 3
	TripRoleMember TripRole = 4
)

func (r TripRole) Valid() bool {
	switch r {
	case TripRoleOwner, TripRoleAdmin, TripRoleEditor, TripRoleMember:
		return true
	default:
		return false
	}
}

func (r TripRole) String() string {
	switch r {
	case TripRoleOwner:
		return "owner"
	case TripRoleAdmin:
		return "admin"
	case TripRoleEditor:
		return "editor"
	case TripRoleMember:
		return "member"
	default:
		return fmt.Sprintf("trip_role(%d)", int(r))
	}
}

// CanUpdateTrip reports whether the role may edit trip details.
func (r TripRole) CanUpdateTrip() bool {
	switch r {
	case TripRoleOwner, TripRoleAdmin:
		return true
	case TripRoleEditor, TripRoleMember:
		return false
	default:
		return false
	}
}

// CanDeleteTrip reports whether the role may delete the trip.
func (r TripRole) CanDeleteTrip() bool {
	switch r {
	case TripRoleOwner:
		return true
	case TripRoleAdmin, TripRoleEditor, TripRoleMember:
		return false
	default:
		return false
	}
}

// CanInvite reports whether the role may issue invitation tokens.
func (r TripRole) CanInvite() bool {
	switch r {
	case TripRoleOwner, TripRoleAdmin, TripRoleEditor, TripRoleMember:
		return true
	default:
		return false
	}
}

// MemberStatus is the state of a trip membership.
type MemberStatus int

const (
	MemberStatusActive               MemberStatus = 1
	MemberStatusInvited              MemberStatus = 2
	MemberStatusPendingOwnerApproval MemberStatus = 3
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusInvited, MemberStatusPendingOwnerApproval:
		return true
	default:
		return false
	}
}

func (s MemberStatus) String() string {
	switch s {
	case MemberStatusActive:
		return "active"
	case MemberStatusInvited:
		return "invited"
	case MemberStatusPendingOwnerApproval:
		return "pending_owner_approval"
	default:
		return fmt.Sprintf("member_status(%d)", int(s))
	}
}
