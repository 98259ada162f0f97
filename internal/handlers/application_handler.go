package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-application-tracker/internal/services"
)

type ApplicationHandler struct {
	Applications *services.ApplicationService
}

func NewApplicationHandler(apps *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{Applications: apps}
}

// ByStatus is GET /applications/by-status.
func (h *ApplicationHandler) ByStatus(c *gin.Context) {
	grouped, err := h.Applications.ApplicationsByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load applications: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, grouped)
}
