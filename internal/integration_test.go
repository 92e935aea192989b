package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parking-monitor-backend/config"
	"parking-monitor-backend/internal/db"
	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/monitor"
	"parking-monitor-backend/internal/remote"
	"parking-monitor-backend/internal/store"
)

// TestOccupancyLifecycle drives a slot through occupied and vacant snapshots
// of the remote store and verifies the open/history tables and the vacancy
// signal at each step.
func TestOccupancyLifecycle(t *testing.T) {
	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, db.Migrate(testDB))

	appStore := store.NewGormStore(testDB)
	layout := []model.Slot{
		{Name: "A1", Category: model.CategoryCar, Label: "Front Left"},
		{Name: "M1", Category: model.CategoryMotorcycle, Label: "Bike 1"},
	}
	require.NoError(t, appStore.UpsertSlots(context.Background(), layout))

	// 2. Mock the remote store: the first snapshot shows A1 occupied, every
	// later one shows the lot empty.
	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/configurations/layout/occupied.json", r.URL.Path)
		var snapshot map[string]any
		if requestCount.Add(1) == 1 {
			snapshot = map[string]any{
				"A1": map[string]any{
					"slotName": "A1",
					"uid":      "u1",
					"txId":     "t1",
					"status":   "OCCUPIED",
					"timeIn":   time.Now().UTC().Add(-10 * time.Minute).Format(time.RFC3339),
				},
			}
		}
		json.NewEncoder(w).Encode(snapshot)
	}))
	defer server.Close()

	remoteCfg := config.RemoteConfig{
		BaseURL:  server.URL,
		Interval: 50 * time.Millisecond,
		Paths:    config.RemotePaths{Occupancy: "/configurations/layout/occupied"},
	}
	gateway := remote.NewGateway(&remoteCfg)

	// 3. Wire the projector to persistence the way the daemon does.
	projector := monitor.NewProjector(layout, nil)
	vacated := make(chan string, 4)
	projector.OnUpdate(func(proj monitor.Projection) {
		var observations []store.Observation
		for _, rec := range proj.Records {
			if !rec.Occupied() {
				continue
			}
			timeIn, _ := time.Parse(time.RFC3339, rec.TimeIn)
			observations = append(observations, store.Observation{
				SlotName:      rec.SlotName,
				OccupantID:    rec.OccupantID,
				TransactionID: rec.TransactionID,
				TimeIn:        timeIn,
			})
		}
		names, err := appStore.RecordObservations(context.Background(), proj.PushedAt, observations)
		require.NoError(t, err)
		for _, name := range names {
			vacated <- name
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Subscribe(ctx, remoteCfg.Paths.Occupancy, func(snap remote.Snapshot) {
		projector.Apply(snap)
	}, nil)

	// 4. The first snapshot opens an occupancy.
	assert.Eventually(t, func() bool {
		var open model.SlotStatusOpen
		return testDB.First(&open, "slot_name = ?", "A1").Error == nil
	}, 2*time.Second, 10*time.Millisecond, "occupied snapshot should open an occupancy record")

	proj := projector.Current()
	assert.Equal(t, monitor.HighlightOccupied, proj.Highlights["A1"])
	assert.Equal(t, 0, proj.Available[model.CategoryCar])
	assert.Equal(t, 1, proj.Available[model.CategoryMotorcycle])

	// 5. The vacant snapshot archives it and reports the vacancy.
	select {
	case name := <-vacated:
		assert.Equal(t, "A1", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the vacancy signal")
	}

	var history []model.SlotStatusHistory
	require.NoError(t, testDB.Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "A1", history[0].SlotName)
	assert.Equal(t, "u1", history[0].OccupantID)
	assert.True(t, history[0].PeriodEnd.After(history[0].PeriodStart))

	var openCount int64
	require.NoError(t, testDB.Model(&model.SlotStatusOpen{}).Count(&openCount).Error)
	assert.Zero(t, openCount)

	assert.Equal(t, monitor.HighlightVacant, projector.Current().Highlights["A1"])
	assert.Equal(t, 1, projector.Current().Available[model.CategoryCar])
}
