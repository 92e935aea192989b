package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-monitor-backend/internal/model"
)

// CategorySummary is the per-category availability line of the dashboard
// header.
type CategorySummary struct {
	Category  model.SlotCategory `json:"category"`
	Total     int64              `json:"total"`
	Occupied  int64              `json:"occupied"`
	Available int64              `json:"available"`
}

// GetSummary handles the GET /api/summary request.
func GetSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		type aggRow struct {
			Category model.SlotCategory
			Count    int64
		}

		var totals []aggRow
		if err := db.
			Model(&model.Slot{}).
			Select("category as category, COUNT(*) as count").
			Group("category").
			Scan(&totals).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate slots"})
			return
		}

		var occupied []aggRow
		if err := db.
			Model(&model.SlotStatusOpen{}).
			Select("slots.category as category, COUNT(*) as count").
			Joins("JOIN slots ON slots.name = slot_status_opens.slot_name").
			Group("slots.category").
			Scan(&occupied).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate occupancy"})
			return
		}

		occupiedMap := make(map[model.SlotCategory]int64, len(occupied))
		for _, a := range occupied {
			occupiedMap[a.Category] = a.Count
		}

		responses := make([]CategorySummary, 0, len(totals))
		for _, tot := range totals {
			occ := occupiedMap[tot.Category]
			responses = append(responses, CategorySummary{
				Category:  tot.Category,
				Total:     tot.Count,
				Occupied:  occ,
				Available: availableFor(tot.Count, occ),
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// availableFor floors a category's availability at zero. Open rows are keyed
// by slot name and joined to the layout, so occupied should never exceed the
// total; a negative count must still not render.
func availableFor(total, occupied int64) int64 {
	if available := total - occupied; available > 0 {
		return available
	}
	return 0
}
