package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/remote"
)

func testLayout() []model.Slot {
	return []model.Slot{
		{Name: "A1", Category: model.CategoryCar, Label: "A1"},
		{Name: "A2", Category: model.CategoryCar, Label: "A2"},
		{Name: "M1", Category: model.CategoryMotorcycle, Label: "M1"},
		{Name: "P1", Category: model.CategoryAccessible, Label: "P1"},
	}
}

func TestProjector_Apply(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	push := map[string]OccupancyRecord{
		"key-1": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
		"key-2": {SlotName: "M1", OccupantID: "u2", Status: "occupied"}, // case-insensitive
		"key-3": {SlotName: "A2", OccupantID: "u3", Status: "RELEASED"},
	}

	proj, ok := p.Apply(snapOf(t, push))
	require.True(t, ok)

	assert.Equal(t, HighlightOccupied, proj.Highlights["A1"])
	assert.Equal(t, HighlightOccupied, proj.Highlights["M1"])
	assert.Equal(t, HighlightVacant, proj.Highlights["A2"])
	assert.Equal(t, HighlightVacant, proj.Highlights["P1"])

	assert.Equal(t, 1, proj.Available[model.CategoryCar])
	assert.Equal(t, 0, proj.Available[model.CategoryMotorcycle])
	assert.Equal(t, 1, proj.Available[model.CategoryAccessible])

	assert.Equal(t, map[string]bool{"u1": true, "u2": true}, proj.ActiveOccupants())
}

func TestProjector_KeyFallback(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	// Records without a slotName are keyed by their collection key.
	proj, ok := p.Apply(snapOf(t, map[string]OccupancyRecord{
		"A1": {OccupantID: "u1", Status: "OCCUPIED"},
	}))
	require.True(t, ok)

	rec, occupied := proj.Record("A1")
	require.True(t, occupied)
	assert.Equal(t, "A1", rec.SlotName)
	assert.Equal(t, "u1", rec.OccupantID)
}

func TestProjector_LastPushWins(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	// The projection after P1 then P2 must equal the projection computed
	// from P2 alone: full replacement, no merge artifacts.
	p1 := map[string]OccupancyRecord{
		"k1": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
		"k2": {SlotName: "A2", OccupantID: "u2", Status: "OCCUPIED"},
	}
	p2 := map[string]OccupancyRecord{
		"k3": {SlotName: "M1", OccupantID: "u3", Status: "OCCUPIED"},
	}

	_, ok := p.Apply(snapOf(t, p1))
	require.True(t, ok)
	after, ok := p.Apply(snapOf(t, p2))
	require.True(t, ok)

	fresh := NewProjector(testLayout(), nil)
	alone, ok := fresh.Apply(snapOf(t, p2))
	require.True(t, ok)

	assert.Equal(t, alone.Highlights, after.Highlights)
	assert.Equal(t, alone.Available, after.Available)
	assert.Equal(t, alone.Records, after.Records)
	_, stillThere := after.Record("A1")
	assert.False(t, stillThere, "record from superseded push must not survive")
}

func TestProjector_StaleRebuildDoesNotOverwrite(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	older := p.stamp()
	newer := p.stamp()

	newerProj := p.build(newer, snapOf(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u-new", Status: "OCCUPIED"},
	}))
	olderProj := p.build(older, snapOf(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u-old", Status: "OCCUPIED"},
	}))

	_, ok := p.commit(newerProj)
	require.True(t, ok)

	// The older rebuild finishes late; it must lose.
	current, ok := p.commit(olderProj)
	assert.False(t, ok)
	rec, _ := current.Record("A1")
	assert.Equal(t, "u-new", rec.OccupantID)

	rec, _ = p.Current().Record("A1")
	assert.Equal(t, "u-new", rec.OccupantID)
}

func TestProjector_AbsentSnapshotClearsEverything(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	_, ok := p.Apply(snapOf(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
	}))
	require.True(t, ok)

	proj, ok := p.Apply(remote.Snapshot{})
	require.True(t, ok)
	assert.Empty(t, proj.ActiveOccupants())
	assert.Equal(t, 2, proj.Available[model.CategoryCar])
	assert.Equal(t, HighlightVacant, proj.Highlights["A1"])
}

func TestProjector_ClampFloorsAvailabilityAtZero(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	p := NewProjector(testLayout(), metrics)

	assert.Equal(t, 0, p.clampAvailable(-1))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ClampedAvailability))

	// Non-negative counts pass through without touching the signal.
	assert.Equal(t, 2, p.clampAvailable(2))
	assert.Equal(t, 0, p.clampAvailable(0))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ClampedAvailability))
}

func TestProjector_NotifiesSubscribers(t *testing.T) {
	p := NewProjector(testLayout(), nil)

	var got []uint64
	p.OnUpdate(func(proj Projection) {
		got = append(got, proj.Seq)
	})

	p.Apply(snapOf(t, map[string]OccupancyRecord{}))
	p.Apply(snapOf(t, map[string]OccupancyRecord{}))

	assert.Equal(t, []uint64{1, 2}, got)
}
