package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tripbill/tripbill/internal/handlers"
	"github.com/tripbill/tripbill/internal/services"
)

func registerTripRoutes(api *gin.RouterGroup, trips *services.TripService, invitations *services.InvitationService, joinLimit gin.HandlerFunc) error {
	tripHandler, err := handlers.NewTripHandler(trips)
	if err != nil {
		return err
	}
	invitationHandler, err := handlers.NewInvitationHandler(invitations)
	if err != nil {
		return err
	}

	group := api.Group("/trips")
	{
		group.POST("/create", tripHandler.Create)
		group.GET("/list", tripHandler.List)
		group.GET("/detail/:trip_id", tripHandler.Detail)
		group.PATCH("/update/:trip_id", tripHandler.Update)
		group.DELETE("/delete/:trip_id", tripHandler.Delete)
		group.GET("/members/:trip_id", tripHandler.Members)

		group.POST("/invitation-tokens/:trip_id", invitationHandler.Create)
		group.DELETE("/invitation-tokens/:trip_id/:invitation_id", invitationHandler.Revoke)
		group.GET("/join-trip", joinLimit, invitationHandler.Join)
	}

	return nil
}
