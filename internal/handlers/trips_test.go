package handlers_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tripbill/tripbill/internal/handlers/testutil"
)

type tripPayload struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    *string          `json:"description"`
	StartDate      string           `json:"start_date"`
	EndDate        *string          `json:"end_date"`
	Budget         *decimal.Decimal `json:"budget"`
	Status         int              `json:"status"`
	CreatorID      string           `json:"creator_id"`
	UserRoleInTrip *int             `json:"user_role_in_trip"`
}

type tripPagePayload struct {
	Items      []tripPayload `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

func createTrip(t *testing.T, env *testutil.Env, token, name string, startIn, endIn int) tripPayload {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/v1/trips/create", map[string]any{
		"name":       name,
		"start_date": env.Date(startIn),
		"end_date":   env.Date(endIn),
		"budget":     "1500.50",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)

	var trip tripPayload
	testutil.DecodeInto(t, resp.Data, &trip)
	return trip
}

func TestTripHandler_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	user, token := env.CreateUser("ana")

	trip := createTrip(t, env, token, "  Lisbon  ", 3, 6)
	require.NotEmpty(t, trip.ID)
	require.Equal(t, "Lisbon", trip.Name)
	require.Equal(t, env.Date(3), trip.StartDate)
	require.NotNil(t, trip.EndDate)
	require.Equal(t, env.Date(6), *trip.EndDate)
	require.Equal(t, 1, trip.Status)
	require.Equal(t, user.ID, trip.CreatorID)
	require.NotNil(t, trip.Budget)
	require.True(t, decimal.RequireFromString("1500.50").Equal(*trip.Budget))

	today := createTrip(t, env, token, "Today", 0, 2)
	require.Equal(t, 2, today.Status)
}

func TestTripHandler_CreateValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser("ana")

	cases := map[string]struct {
		body any
		code string
	}{
		"missing name":    {map[string]any{"start_date": env.Date(1), "end_date": env.Date(2)}, "BAD_REQUEST"},
		"bad date format": {map[string]any{"name": "x", "start_date": "15/06/2025", "end_date": env.Date(2)}, "BAD_REQUEST"},
		"inverted dates":  {map[string]any{"name": "x", "start_date": env.Date(5), "end_date": env.Date(2)}, "TRIP_INVALID_DATES"},
		"same day":        {map[string]any{"name": "x", "start_date": env.Date(2), "end_date": env.Date(2)}, "TRIP_INVALID_DATES"},
		"start in past":   {map[string]any{"name": "x", "start_date": env.Date(-1), "end_date": env.Date(2)}, "TRIP_START_IN_PAST"},
		"negative budget": {map[string]any{"name": "x", "start_date": env.Date(1), "end_date": env.Date(2), "budget": -1}, "BAD_REQUEST"},
		"malformed json":  {"not an object", "BAD_REQUEST"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/api/v1/trips/create", tc.body, token)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := testutil.DecodeResponse(t, w)
			require.False(t, resp.Success)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestTripHandler_RequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/v1/trips/list", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = env.Request(http.MethodGet, "/api/v1/trips/list", nil, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTripHandler_ListAndDetail(t *testing.T) {
	env := testutil.NewEnv(t)
	_, anaToken := env.CreateUser("ana")
	_, benToken := env.CreateUser("ben")

	createTrip(t, env, anaToken, "Early", 1, 3)
	late := createTrip(t, env, anaToken, "Late", 10, 12)
	createTrip(t, env, benToken, "Other", 2, 4)

	w := env.Request(http.MethodGet, "/api/v1/trips/list?page_size=5", nil, anaToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page tripPagePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.EqualValues(t, 2, page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 5, page.PageSize)
	require.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 2)
	require.Equal(t, "Late", page.Items[0].Name)
	require.NotNil(t, page.Items[0].UserRoleInTrip)
	require.Equal(t, 1, *page.Items[0].UserRoleInTrip)

	w = env.Request(http.MethodGet, "/api/v1/trips/detail/"+late.ID, nil, anaToken)
	require.Equal(t, http.StatusOK, w.Code)
	var detail tripPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &detail)
	require.Equal(t, late.ID, detail.ID)

	w = env.Request(http.MethodGet, "/api/v1/trips/detail/"+late.ID, nil, benToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodGet, "/api/v1/trips/detail/missing", nil, anaToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTripHandler_ListRejectsBadQuery(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser("ana")

	for _, query := range []string{"page=0", "page=-1", "page_size=101", "page_size=0", "page=abc", "status=9", "role=0x"} {
		w := env.Request(http.MethodGet, "/api/v1/trips/list?"+query, nil, token)
		require.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestTripHandler_ListReconcilesStatus(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser("ana")
	trip := createTrip(t, env, token, "Soon", 1, 2)
	require.Equal(t, 1, trip.Status)

	env.Now = env.Now.AddDate(0, 0, 1)

	w := env.Request(http.MethodGet, "/api/v1/trips/list", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page tripPagePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, 2, page.Items[0].Status)

	// The status filter matches stored values, which the previous read persisted.
	w = env.Request(http.MethodGet, "/api/v1/trips/list?status=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, trip.ID, page.Items[0].ID)
}

func TestTripHandler_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser("ana")
	trip := createTrip(t, env, token, "Lisbon", 2, 5)

	w := env.Request(http.MethodPatch, "/api/v1/trips/update/"+trip.ID, map[string]any{
		"name":        "Porto",
		"description": "Food trip",
		"end_date":    env.Date(8),
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated tripPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "Porto", updated.Name)
	require.NotNil(t, updated.Description)
	require.Equal(t, "Food trip", *updated.Description)
	require.Equal(t, env.Date(8), *updated.EndDate)

	w = env.Request(http.MethodPatch, "/api/v1/trips/update/"+trip.ID, map[string]any{
		"start_date": env.Date(9),
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "TRIP_INVALID_DATES", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPatch, "/api/v1/trips/update/"+trip.ID, map[string]any{
		"status": 7,
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPatch, "/api/v1/trips/update/"+trip.ID, map[string]any{
		"status": 4,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, 4, updated.Status)
}

func TestTripHandler_DeleteAndMembers(t *testing.T) {
	env := testutil.NewEnv(t)
	_, anaToken := env.CreateUser("ana")
	_, benToken := env.CreateUser("ben")
	trip := createTrip(t, env, anaToken, "Lisbon", 2, 5)

	invitation := createInvitation(t, env, anaToken, trip.ID, map[string]any{"role_to_assign": 3})
	w := env.Request(http.MethodGet, "/api/v1/trips/join-trip?token="+invitation.InviteToken, nil, benToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/v1/trips/members/"+trip.ID, nil, benToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var members struct {
		Members []memberPayload `json:"members"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &members)
	require.Len(t, members.Members, 2)

	w = env.Request(http.MethodDelete, "/api/v1/trips/delete/"+trip.ID, nil, benToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodDelete, "/api/v1/trips/delete/"+trip.ID, nil, anaToken)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Zero(t, w.Body.Len())

	w = env.Request(http.MethodGet, "/api/v1/trips/detail/"+trip.ID, nil, anaToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodGet, "/api/v1/trips/list", nil, benToken)
	require.Equal(t, http.StatusOK, w.Code)
	var page tripPagePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.Zero(t, page.Total)
	require.Empty(t, page.Items)
}
