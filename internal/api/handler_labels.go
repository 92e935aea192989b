package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type saveLabelsRequest struct {
	Labels map[string]string `json:"labels" binding:"required"`
}

// SaveLabels handles the POST /api/layout/labels request: the batch save
// target for dashboard label edits. The body always carries the full label
// set, so the operation can be retried as-is after a failure.
func (h *Handler) SaveLabels(c *gin.Context) {
	var req saveLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := h.store.SaveLabels(c.Request.Context(), req.Labels); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
