package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/services"
	appErrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/response"
)

// TripHandler exposes the trip lifecycle endpoints.
type TripHandler struct {
	trips *services.TripService
}

// NewTripHandler constructs a TripHandler.
func NewTripHandler(trips *services.TripService) (*TripHandler, error) {
	if trips == nil {
		return nil, errors.New("trip handler: trip service is required")
	}
	return &TripHandler{trips: trips}, nil
}

type createTripRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	StartDate     string           `json:"start_date" validate:"required,isodate"`
	EndDate       string           `json:"end_date" validate:"required,isodate"`
	Budget        *decimal.Decimal `json:"budget"`
	CoverImageURL *string          `json:"cover_image_url" validate:"omitempty,max=2048"`
}

type updateTripRequest struct {
	Name          *string            `json:"name" validate:"omitempty,max=255"`
	Description   *string            `json:"description" validate:"omitempty,max=5000"`
	StartDate     *string            `json:"start_date" validate:"omitempty,isodate"`
	EndDate       *string            `json:"end_date" validate:"omitempty,isodate"`
	Budget        *decimal.Decimal   `json:"budget"`
	CoverImageURL *string            `json:"cover_image_url" validate:"omitempty,max=2048"`
	Status        *models.TripStatus `json:"status" validate:"omitempty,oneof=1 2 3 4"`
}

// POST /api/v1/trips/create
func (h *TripHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createTripRequest
	if !bindAndValidate(c, &req) {
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	trip, err := h.trips.Create(requestContext(c), services.CreateTripInput{
		CreatorID:     userID,
		Name:          req.Name,
		Description:   req.Description,
		StartDate:     start,
		EndDate:       end,
		Budget:        req.Budget,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, trip)
}

// GET /api/v1/trips/list
func (h *TripHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	input := services.ListTripsInput{UserID: userID}
	for key, dest := range map[string]*int{
		"page":      &input.Page,
		"page_size": &input.PageSize,
	} {
		value, err := parseIntQuery(c, key)
		if err != nil {
			response.Error(c, err)
			return
		}
		*dest = value
	}

	status, err := parseIntQuery(c, "status")
	if err != nil {
		response.Error(c, err)
		return
	}
	if status != 0 && !models.TripStatus(status).Valid() {
		response.Error(c, appErrors.NewBadRequest("status must be one of [1 2 3 4]"))
		return
	}
	input.Status = models.TripStatus(status)

	role, err := parseIntQuery(c, "role")
	if err != nil {
		response.Error(c, err)
		return
	}
	if role != 0 && !models.TripRole(role).Valid() {
		response.Error(c, appErrors.NewBadRequest("role must be one of [1 2 3 4]"))
		return
	}
	input.Role = models.TripRole(role)

	page, err := h.trips.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, page)
}

// GET /api/v1/trips/detail/:trip_id
func (h *TripHandler) Detail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	trip, err := h.trips.Get(requestContext(c), userID, c.Param("trip_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, trip)
}

// PATCH /api/v1/trips/update/:trip_id
func (h *TripHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateTripRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateTripInput{
		Name:          req.Name,
		Description:   req.Description,
		Budget:        req.Budget,
		CoverImageURL: req.CoverImageURL,
		Status:        req.Status,
	}
	if req.StartDate != nil {
		start, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.EndDate = &end
	}

	trip, err := h.trips.Update(requestContext(c), userID, c.Param("trip_id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, trip)
}

// DELETE /api/v1/trips/delete/:trip_id
func (h *TripHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.trips.Delete(requestContext(c), userID, c.Param("trip_id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// GET /api/v1/trips/members/:trip_id
func (h *TripHandler) Members(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	members, err := h.trips.Members(requestContext(c), userID, c.Param("trip_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"members": members})
}

