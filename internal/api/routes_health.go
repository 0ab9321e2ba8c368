package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tripbill/tripbill/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, health *handlers.HealthHandler) {
	r.GET("/health", health.Live)
	r.GET("/health/live", health.Live)
	r.GET("/health/ready", health.Ready)
}
