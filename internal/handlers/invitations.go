package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/services"
	appErrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/response"
)

// InvitationHandler issues, redeems and revokes trip invitation tokens.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService) (*InvitationHandler, error) {
	if invitations == nil {
		return nil, errors.New("invitation handler: invitation service is required")
	}
	return &InvitationHandler{invitations: invitations}, nil
}

type createInvitationRequest struct {
	ExpiresInMinutes *int             `json:"expires_in_minutes" validate:"omitempty,gt=0"`
	MaxUses          *int             `json:"max_uses" validate:"omitempty,gt=0"`
	RoleToAssign     *models.TripRole `json:"role_to_assign"`
}

// POST /api/v1/trips/invitation-tokens/:trip_id
func (h *InvitationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createInvitationRequest
	if !bindOptional(c, &req) {
		return
	}

	invitation, err := h.invitations.Create(requestContext(c), userID, c.Param("trip_id"), services.CreateInvitationInput{
		ExpiresInMinutes: req.ExpiresInMinutes,
		MaxUses:          req.MaxUses,
		RoleToAssign:     req.RoleToAssign,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invitation)
}

// GET /api/v1/trips/join-trip?token=
func (h *InvitationHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("token query parameter is required"))
		return
	}

	member, err := h.invitations.Redeem(requestContext(c), userID, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, member)
}

// DELETE /api/v1/trips/invitation-tokens/:trip_id/:invitation_id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.invitations.Revoke(requestContext(c), userID, c.Param("trip_id"), c.Param("invitation_id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
