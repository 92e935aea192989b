package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/store"
)

// GetIncidents handles the GET /api/incidents request. Resolved incidents
// are excluded.
func GetIncidents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var incidents []model.Incident
		if err := db.
			Where("status <> ?", model.IncidentStatusResolved).
			Order("reported_at").
			Find(&incidents).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve incidents"})
			return
		}
		c.JSON(http.StatusOK, incidents)
	}
}

type resolveIncidentRequest struct {
	IncidentID string `json:"incidentId" binding:"required"`
	Finalize   bool   `json:"finalize"`
	ResolvedBy string `json:"resolvedBy"`
}

// ResolveIncident handles the POST /api/incidents/resolve request: the
// two-phase resolution target. finalize=false opens the confirmation
// window, finalize=true completes the resolution.
func (h *Handler) ResolveIncident(c *gin.Context) {
	var req resolveIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	incident, err := h.store.ResolveIncident(c.Request.Context(), req.IncidentID, req.Finalize, req.ResolvedBy, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrIncidentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, store.ErrIncidentResolved):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "incident": incident})
}
