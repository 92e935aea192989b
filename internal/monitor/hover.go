package monitor

import (
	"context"
	"time"
)

const (
	hoverPad   = 12 // offset from the cursor
	hoverInset = 8  // minimum distance from the viewport edge
)

// HoverView is the hover preview's content: the occupant summary plus the
// occupant's deadline countdown.
type HoverView struct {
	Detail    DetailView
	Countdown CountdownView
}

// HoverReader performs the preview's own read of occupant and countdown
// data. The preview never borrows the detail panel's state: hover and
// click-to-open are concurrent interactions over potentially different slots.
type HoverReader func(ctx context.Context, rec OccupancyRecord) (HoverView, error)

// HoverPreview is the debounced, pointer-following preview panel. The
// pointer must dwell on a slot for the configured duration before the
// preview opens; motion repositions it clamped inside the viewport; leaving
// the slot cancels any pending timer and hides it.
type HoverPreview struct {
	dwell    time.Duration
	viewport Size
	card     Size
	fetch    HoverReader
	dispatch func(Event)
	metrics  *Metrics

	timer   *time.Timer
	target  string
	lastAt  Point
	visible bool
	pos     Point
	view    HoverView
	gen     uint64
}

// NewHoverPreview creates a preview with the given dwell threshold and
// geometry.
func NewHoverPreview(dwell time.Duration, viewport, card Size, fetch HoverReader, dispatch func(Event), metrics *Metrics) *HoverPreview {
	return &HoverPreview{
		dwell:    dwell,
		viewport: viewport,
		card:     card,
		fetch:    fetch,
		dispatch: dispatch,
		metrics:  metrics,
	}
}

// Visible reports whether the preview is currently shown.
func (h *HoverPreview) Visible() bool { return h.visible }

// View returns the preview content.
func (h *HoverPreview) View() HoverView { return h.view }

// Position returns the preview's clamped viewport position.
func (h *HoverPreview) Position() Point { return h.pos }

// SetViewport updates the viewport bounds used for clamping.
func (h *HoverPreview) SetViewport(v Size) { h.viewport = v }

// PointerEnter starts the dwell timer for a slot. Starting a new timer
// always cancels the previous one.
func (h *HoverPreview) PointerEnter(slot string, at Point) {
	h.stopTimer()
	h.target = slot
	h.lastAt = at
	h.timer = time.AfterFunc(h.dwell, func() {
		h.dispatch(DwellElapsed{Slot: slot})
	})
}

// PointerMove tracks the cursor and repositions an open preview.
func (h *HoverPreview) PointerMove(at Point) {
	h.lastAt = at
	if h.visible {
		h.pos = h.clamp(at)
	}
}

// PointerLeave cancels any pending dwell timer and hides the preview.
func (h *HoverPreview) PointerLeave() {
	h.stopTimer()
	h.target = ""
	h.visible = false
	h.gen++ // invalidate any in-flight load
}

// HandleDwell opens the preview when the dwell timer fires, provided the
// pointer is still over the same slot.
func (h *HoverPreview) HandleDwell(ctx context.Context, slot string, proj Projection) {
	if h.target != slot {
		return
	}

	h.gen++
	gen := h.gen
	h.visible = true
	h.pos = h.clamp(h.lastAt)
	h.view = HoverView{Detail: loadingView}

	rec, ok := proj.Record(slot)
	if !ok || rec.OccupantID == "" {
		h.view = HoverView{Detail: notAvailableView}
		return
	}

	go func() {
		view, err := h.fetch(ctx, rec)
		if err != nil {
			h.dispatch(hoverLoaded{Gen: gen, Err: err})
			return
		}
		h.dispatch(hoverLoaded{Gen: gen, View: view})
	}()
}

// HandleLoaded applies a completed hover load; superseded results are
// discarded.
func (h *HoverPreview) HandleLoaded(ev hoverLoaded) {
	if ev.Gen != h.gen {
		if h.metrics != nil {
			h.metrics.StaleLoadsDiscarded.Inc()
		}
		return
	}
	if ev.Err != nil {
		h.view = HoverView{Detail: notAvailableView}
		return
	}
	h.view = ev.View
}

func (h *HoverPreview) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// clamp positions the card near the cursor without letting it extend past
// the viewport edge.
func (h *HoverPreview) clamp(at Point) Point {
	x := at.X + hoverPad
	y := at.Y + hoverPad
	if x+h.card.W > h.viewport.W-hoverInset {
		x = h.viewport.W - h.card.W - hoverInset
		if x < hoverInset {
			x = hoverInset
		}
	}
	if y+h.card.H > h.viewport.H-hoverInset {
		y = h.viewport.H - h.card.H - hoverInset
		if y < hoverInset {
			y = hoverInset
		}
	}
	return Point{X: x, Y: y}
}
