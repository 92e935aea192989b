package monitor

import "parking-monitor-backend/internal/remote"

// The dashboard session is driven entirely by messages: pointer and click
// input from the rendering surface, pushes from the remote store, and the
// session's own timers. Handlers never run concurrently; every event is
// applied by the single session goroutine.

// Point is a viewport coordinate in pixels.
type Point struct {
	X int
	Y int
}

// Size is a width/height pair in pixels.
type Size struct {
	W int
	H int
}

// Event is a message delivered to the session loop.
type Event interface {
	isEvent()
}

// PushReceived carries a full snapshot of the occupancy collection.
type PushReceived struct {
	Snap remote.Snapshot
}

// IncidentsReceived carries a full snapshot of the incidents collection.
type IncidentsReceived struct {
	Snap remote.Snapshot
}

// PointerEnter reports the pointer moving onto a slot element.
type PointerEnter struct {
	Slot string
	At   Point
}

// PointerMove reports pointer motion while over a slot element.
type PointerMove struct {
	At Point
}

// PointerLeave reports the pointer leaving the slot element.
type PointerLeave struct{}

// DwellElapsed fires when the hover dwell timer completes.
type DwellElapsed struct {
	Slot string
}

// OpenDetail requests the modal detail panel for a slot.
type OpenDetail struct {
	Slot string
}

// ClearSelection dismisses the detail panel and resets dependent displays.
type ClearSelection struct{}

// OpenContextMenu requests the right-click menu for a slot.
type OpenContextMenu struct {
	Slot string
	At   Point
}

// CloseContextMenu dismisses the menu.
type CloseContextMenu struct{}

// detailLoaded delivers the result of an async occupant read for the detail
// panel. Gen ties the result to the request that started it.
type detailLoaded struct {
	Gen  uint64
	View DetailView
	Err  error
}

// hoverLoaded delivers the result of an async occupant read for the hover
// preview.
type hoverLoaded struct {
	Gen  uint64
	View HoverView
	Err  error
}

// CountdownTick re-renders the active selection's deadline countdown.
type CountdownTick struct{}

// EditLabel records a pending label edit for a slot.
type EditLabel struct {
	Slot  string
	Label string
}

// SaveLayout submits all pending label edits as one batch.
type SaveLayout struct{}

// SendNotice starts a violation notice for the currently selected occupant.
type SendNotice struct {
	Message string
}

// StopNotice ends the active notice for the currently selected occupant.
// Confirmed must be set by the UI only after explicit user confirmation.
type StopNotice struct {
	Confirmed bool
}

// noticeDone delivers the outcome of a notice write round trip. The notice
// control stays disabled until this event is applied.
type noticeDone struct {
	OccupantID string
	Stop       bool
	State      NoticeState
	Err        error
}

// ConfirmAssign assigns a candidate's transaction to a slot.
type ConfirmAssign struct {
	Slot      string
	Candidate Candidate
}

// ResolveIncident drives the incident resolution workflow.
type ResolveIncident struct {
	IncidentID string
	Finalize   bool
}

func (PushReceived) isEvent()      {}
func (IncidentsReceived) isEvent() {}
func (PointerEnter) isEvent()      {}
func (PointerMove) isEvent()       {}
func (PointerLeave) isEvent()      {}
func (DwellElapsed) isEvent()      {}
func (OpenDetail) isEvent()        {}
func (ClearSelection) isEvent()    {}
func (OpenContextMenu) isEvent()   {}
func (CloseContextMenu) isEvent()  {}
func (detailLoaded) isEvent()      {}
func (hoverLoaded) isEvent()       {}
func (CountdownTick) isEvent()     {}
func (EditLabel) isEvent()         {}
func (SaveLayout) isEvent()        {}
func (SendNotice) isEvent()        {}
func (StopNotice) isEvent()        {}
func (noticeDone) isEvent()        {}
func (ConfirmAssign) isEvent()     {}
func (ResolveIncident) isEvent()   {}
