package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tripbill/tripbill/internal/monitoring"
	appErrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/response"
)

// ErrServiceUnavailable is returned by the readiness probe when a dependency is down.
var ErrServiceUnavailable = appErrors.New("SERVICE_UNAVAILABLE", "Service unavailable", http.StatusServiceUnavailable)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	health *monitoring.Health
}

// NewHealthHandler builds a HealthHandler around the readiness probes.
func NewHealthHandler(health *monitoring.Health) *HealthHandler {
	if health == nil {
		health = monitoring.NewHealth(0)
	}
	return &HealthHandler{health: health}
}

// Live reports that the process is serving requests.
func (h *HealthHandler) Live(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
}

// Ready reports whether every dependency is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.health.Evaluate(requestContext(c))
	if !report.Success {
		response.Error(c, ErrServiceUnavailable.WithMessage(
			fmt.Sprintf("Unavailable: %s", strings.Join(report.Failed(), ", ")),
		))
		return
	}
	response.Success(c, http.StatusOK, report)
}
