package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-monitor-backend/internal/model"
)

// GetSlotStatus handles the GET /api/slots request. Without a query it
// returns the current view; with ?at=RFC3339 it reconstructs the view at
// that instant from the history table.
func GetSlotStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		atParam := c.Query("at")
		if atParam == "" {
			getCurrentStatus(c, db)
		} else {
			getHistoricalStatus(c, db, atParam)
		}
	}
}

// slotStatusResponse is the flattened structure for the API response.
type slotStatusResponse struct {
	model.Slot
	Occupied      bool       `json:"occupied"`
	OccupantID    string     `json:"occupantId,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
	VehicleType   string     `json:"vehicleType,omitempty"`
	TimeIn        *time.Time `json:"timeIn,omitempty"`
	ObservedAt    time.Time  `json:"observedAt"`
}

func getCurrentStatus(c *gin.Context, db *gorm.DB) {
	var slots []model.Slot
	if err := db.Order("name").Find(&slots).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slots"})
		return
	}

	var openStatuses []model.SlotStatusOpen
	db.Find(&openStatuses)

	statusMap := make(map[string]model.SlotStatusOpen, len(openStatuses))
	for _, s := range openStatuses {
		statusMap[s.SlotName] = s
	}

	response := make([]slotStatusResponse, 0, len(slots))
	for _, slot := range slots {
		if status, ok := statusMap[slot.Name]; ok {
			timeIn := status.TimeIn
			response = append(response, slotStatusResponse{
				Slot:          slot,
				Occupied:      true,
				OccupantID:    status.OccupantID,
				TransactionID: status.TransactionID,
				VehicleType:   status.VehicleType,
				TimeIn:        &timeIn,
				ObservedAt:    status.ObservedAt,
			})
		} else {
			response = append(response, slotStatusResponse{
				Slot:       slot,
				Occupied:   false,
				ObservedAt: time.Now().UTC(),
			})
		}
	}
	c.JSON(http.StatusOK, response)
}

func getHistoricalStatus(c *gin.Context, db *gorm.DB, atParam string) {
	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp format. Use RFC3339."})
		return
	}

	var slots []model.Slot
	if err := db.Order("name").Find(&slots).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slots"})
		return
	}

	response := make([]slotStatusResponse, 0, len(slots))
	for _, slot := range slots {
		var history model.SlotStatusHistory
		// The occupancy covering the requested instant, if any.
		err := db.Where("slot_name = ? AND period_start <= ? AND period_end > ?", slot.Name, at, at).
			Order("observed_at DESC").
			First(&history).Error

		if err == gorm.ErrRecordNotFound {
			response = append(response, slotStatusResponse{
				Slot:       slot,
				Occupied:   false,
				ObservedAt: at,
			})
			continue
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Database error during historical lookup"})
			return
		}

		timeIn := history.PeriodStart
		response = append(response, slotStatusResponse{
			Slot:          slot,
			Occupied:      true,
			OccupantID:    history.OccupantID,
			TransactionID: history.TransactionID,
			VehicleType:   history.VehicleType,
			TimeIn:        &timeIn,
			ObservedAt:    history.PeriodStart,
		})
	}

	c.JSON(http.StatusOK, response)
}
