package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parking-monitor-backend/config"
	"parking-monitor-backend/internal/db"
	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/store"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.ServerConfig{
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
		CacheTTLSeconds: 60,
	}
	router := NewRouter(cfg, store.NewGormStore(gormDB), &webpush.Options{VAPIDPublicKey: "test-public-key"}, nil)
	return router, gormDB
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSaveLabelsEndpoint(t *testing.T) {
	router, gormDB := setupRouter(t)
	require.NoError(t, gormDB.Create(&model.Slot{Name: "A1", Category: model.CategoryCar, Label: "Front Left"}).Error)

	w := doJSON(router, http.MethodPost, "/api/layout/labels", gin.H{
		"labels": gin.H{"A1": "VIP"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	var slot model.Slot
	require.NoError(t, gormDB.First(&slot, "name = ?", "A1").Error)
	assert.Equal(t, "VIP", slot.Label)
}

func TestSaveLabelsEndpoint_BadRequest(t *testing.T) {
	router, _ := setupRouter(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/layout/labels", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["ok"])
}

func TestResolveIncidentEndpoint(t *testing.T) {
	router, gormDB := setupRouter(t)
	require.NoError(t, gormDB.Create(&model.Incident{
		IncidentID: "inc-1",
		ReporterID: "u1",
		Status:     model.IncidentStatusOpen,
		ReportedAt: time.Now().UTC(),
	}).Error)

	// Phase one opens the confirmation window.
	w := doJSON(router, http.MethodPost, "/api/incidents/resolve", gin.H{
		"incidentId": "inc-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var incident model.Incident
	require.NoError(t, gormDB.First(&incident, "incident_id = ?", "inc-1").Error)
	assert.Equal(t, model.IncidentStatusPendingConfirm, incident.Status)
	assert.NotNil(t, incident.ConfirmDeadline)

	// Finalize completes it.
	w = doJSON(router, http.MethodPost, "/api/incidents/resolve", gin.H{
		"incidentId": "inc-1",
		"finalize":   true,
		"resolvedBy": "Admin",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, gormDB.First(&incident, "incident_id = ?", "inc-1").Error)
	assert.Equal(t, model.IncidentStatusResolved, incident.Status)

	// Resolved incidents disappear from the list.
	w = doJSON(router, http.MethodGet, "/api/incidents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/incidents/resolve", gin.H{
		"incidentId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	router, gormDB := setupRouter(t)
	require.NoError(t, gormDB.Create(&[]model.Slot{
		{Name: "A1", Category: model.CategoryCar, Label: "A1"},
		{Name: "A2", Category: model.CategoryCar, Label: "A2"},
		{Name: "M1", Category: model.CategoryMotorcycle, Label: "M1"},
	}).Error)
	require.NoError(t, gormDB.Create(&model.SlotStatusOpen{
		SlotName:      "A1",
		OccupantID:    "u1",
		TransactionID: "t1",
		ObservedAt:    time.Now().UTC(),
		TimeIn:        time.Now().UTC(),
	}).Error)

	w := doJSON(router, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []CategorySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))

	byCategory := map[model.SlotCategory]CategorySummary{}
	for _, s := range summaries {
		byCategory[s.Category] = s
	}
	assert.Equal(t, CategorySummary{Category: model.CategoryCar, Total: 2, Occupied: 1, Available: 1}, byCategory[model.CategoryCar])
	assert.Equal(t, CategorySummary{Category: model.CategoryMotorcycle, Total: 1, Occupied: 0, Available: 1}, byCategory[model.CategoryMotorcycle])
}

func TestAvailableForNeverNegative(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		occupied int64
		want     int64
	}{
		{"partially occupied", 4, 1, 3},
		{"fully occupied", 2, 2, 0},
		{"occupancy exceeds layout", 1, 3, 0},
		{"empty category", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, availableFor(tt.total, tt.occupied))
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	router, gormDB := setupRouter(t)
	require.NoError(t, gormDB.Create(&model.Slot{Name: "A1", Category: model.CategoryCar, Label: "A1"}).Error)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint":         "https://example.com/push",
		"p256dh":           "key",
		"auth":             "secret",
		"subscribed_slots": []string{"A1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://example.com/push", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_slots":["A1"]}`, w.Body.String())

	w = doJSON(router, http.MethodDelete, "/api/subscriptions", gin.H{
		"endpoint": "https://example.com/push",
	})
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}
