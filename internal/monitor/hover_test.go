package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreview(fetch HoverReader, dispatch func(Event)) *HoverPreview {
	if dispatch == nil {
		dispatch = func(Event) {}
	}
	return NewHoverPreview(10*time.Millisecond, Size{W: 1280, H: 720}, Size{W: 200, H: 120}, fetch, dispatch, nil)
}

func TestHover_DwellOpensPreview(t *testing.T) {
	events := make(chan Event, 4)
	fetch := func(ctx context.Context, rec OccupancyRecord) (HoverView, error) {
		return HoverView{
			Detail:    DetailView{Name: "Dana"},
			Countdown: CountdownView{Text: "1 hr 30 mins"},
		}, nil
	}
	h := newTestPreview(fetch, func(ev Event) { events <- ev })

	proj := occupiedProjection(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
	})

	h.PointerEnter("A1", Point{X: 100, Y: 100})
	assert.False(t, h.Visible())

	dwell := collectEvents(events, 1, t)[0].(DwellElapsed)
	require.Equal(t, "A1", dwell.Slot)
	h.HandleDwell(context.Background(), dwell.Slot, proj)

	assert.True(t, h.Visible())
	assert.Equal(t, loadingView, h.View().Detail)
	assert.Equal(t, Point{X: 112, Y: 112}, h.Position())

	h.HandleLoaded(collectEvents(events, 1, t)[0].(hoverLoaded))
	assert.Equal(t, "Dana", h.View().Detail.Name)
	assert.Equal(t, "1 hr 30 mins", h.View().Countdown.Text)
}

func TestHover_DwellIgnoredAfterSlotChange(t *testing.T) {
	h := newTestPreview(nil, func(Event) {})

	proj := occupiedProjection(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
	})

	h.PointerEnter("A1", Point{X: 10, Y: 10})
	h.PointerEnter("A2", Point{X: 20, Y: 20})

	// A1's timer already fired but the pointer has moved on.
	h.HandleDwell(context.Background(), "A1", proj)
	assert.False(t, h.Visible())
}

func TestHover_LeaveCancelsPendingOpen(t *testing.T) {
	fired := make(chan Event, 1)
	h := newTestPreview(nil, func(ev Event) { fired <- ev })

	h.PointerEnter("A1", Point{X: 10, Y: 10})
	h.PointerLeave()

	select {
	case ev := <-fired:
		t.Fatalf("dwell timer fired after leave: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, h.Visible())
}

func TestHover_VacantSlotShowsNotAvailableWithoutFetch(t *testing.T) {
	fetched := false
	fetch := func(ctx context.Context, rec OccupancyRecord) (HoverView, error) {
		fetched = true
		return HoverView{}, nil
	}
	h := newTestPreview(fetch, func(Event) {})

	proj := occupiedProjection(t, map[string]OccupancyRecord{})

	h.PointerEnter("A1", Point{X: 10, Y: 10})
	h.HandleDwell(context.Background(), "A1", proj)

	assert.True(t, h.Visible())
	assert.Equal(t, notAvailableView, h.View().Detail)
	assert.False(t, fetched)
}

func TestHover_MoveRepositionsOnlyWhenVisible(t *testing.T) {
	h := newTestPreview(nil, func(Event) {})

	proj := occupiedProjection(t, map[string]OccupancyRecord{})

	h.PointerEnter("A1", Point{X: 10, Y: 10})
	h.PointerMove(Point{X: 50, Y: 50})
	assert.Equal(t, Point{}, h.Position(), "hidden preview must not track the cursor")

	h.HandleDwell(context.Background(), "A1", proj)
	h.PointerMove(Point{X: 300, Y: 400})
	assert.Equal(t, Point{X: 312, Y: 412}, h.Position())
}

func TestHover_ClampKeepsCardInsideViewport(t *testing.T) {
	h := newTestPreview(nil, func(Event) {})

	tests := []struct {
		name string
		at   Point
		want Point
	}{
		{"open space", Point{X: 100, Y: 100}, Point{X: 112, Y: 112}},
		{"right edge", Point{X: 1270, Y: 100}, Point{X: 1280 - 200 - 8, Y: 112}},
		{"bottom edge", Point{X: 100, Y: 710}, Point{X: 112, Y: 720 - 120 - 8}},
		{"corner", Point{X: 1279, Y: 719}, Point{X: 1072, Y: 592}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.clamp(tt.at))
		})
	}
}

func TestHover_ClampFloorsAtInsetForTinyViewport(t *testing.T) {
	h := NewHoverPreview(time.Millisecond, Size{W: 100, H: 80}, Size{W: 200, H: 120}, nil, func(Event) {}, nil)
	assert.Equal(t, Point{X: hoverInset, Y: hoverInset}, h.clamp(Point{X: 50, Y: 40}))
}

func TestHover_LeaveDiscardsInFlightLoad(t *testing.T) {
	events := make(chan Event, 4)
	release := make(chan struct{})
	fetch := func(ctx context.Context, rec OccupancyRecord) (HoverView, error) {
		<-release
		return HoverView{Detail: DetailView{Name: "Late"}}, errors.New("ignored anyway")
	}
	h := newTestPreview(fetch, func(ev Event) { events <- ev })

	proj := occupiedProjection(t, map[string]OccupancyRecord{
		"k": {SlotName: "A1", OccupantID: "u1", Status: "OCCUPIED"},
	})

	h.PointerEnter("A1", Point{X: 10, Y: 10})
	h.HandleDwell(context.Background(), "A1", proj)
	h.PointerLeave()

	close(release)
	h.HandleLoaded(collectEvents(events, 1, t)[0].(hoverLoaded))

	assert.False(t, h.Visible())
	assert.Equal(t, HoverView{Detail: loadingView}, h.View())
}
