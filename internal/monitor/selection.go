package monitor

import "context"

// SelectionPhase is the detail panel's state machine phase.
type SelectionPhase int

const (
	PhaseIdle SelectionPhase = iota
	PhaseLoading
	PhaseActive
	// PhaseNotApplicable is the terminal display for a vacant slot: there is
	// no occupant to select, so the panel shows N/A without an active
	// selection.
	PhaseNotApplicable
)

// Selection identifies the occupant/slot pair a detail panel is showing.
type Selection struct {
	OccupantID    string
	SlotName      string
	TransactionID string
}

// DetailView is the rendered content of the detail panel or hover preview.
type DetailView struct {
	Name    string
	Contact string
	Class   string
	TimeIn  string
}

// OccupantProfile is the remote store's occupant record.
type OccupantProfile struct {
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
	Accessible    bool   `json:"isPWD"`
}

// ProfileReader performs a point read of an occupant profile. Absence is a
// clean outcome, not an error.
type ProfileReader func(ctx context.Context, occupantID string) (OccupantProfile, bool, error)

var (
	loadingView      = DetailView{Name: "Loading…"}
	notAvailableView = DetailView{Name: "N/A"}
)

// SelectionController owns the single active selection shared by the detail
// panel workflows. Overlapping detail loads are serialized by intent: each
// load captures a generation at dispatch time and only the result matching
// the current generation is applied, so the most recently opened slot always
// wins regardless of which read resolves first.
type SelectionController struct {
	fetch    ProfileReader
	dispatch func(Event)
	metrics  *Metrics

	// onActive fires when a selection reaches Active; the session uses it to
	// refresh the countdown cache and notice state for the occupant.
	onActive func(Selection)
	// onClear fires whenever the selection leaves Active/Loading; dependent
	// displays reset and the countdown tick stops.
	onClear func()

	gen     uint64
	phase   SelectionPhase
	current Selection
	view    DetailView
}

// NewSelectionController wires a controller to its profile reader and event
// dispatch.
func NewSelectionController(fetch ProfileReader, dispatch func(Event), metrics *Metrics) *SelectionController {
	return &SelectionController{
		fetch:    fetch,
		dispatch: dispatch,
		metrics:  metrics,
		onActive: func(Selection) {},
		onClear:  func() {},
	}
}

// OnActive registers the callback fired when a selection becomes Active.
func (s *SelectionController) OnActive(fn func(Selection)) { s.onActive = fn }

// OnClear registers the callback fired when the selection resets.
func (s *SelectionController) OnClear(fn func()) { s.onClear = fn }

// Phase returns the current state machine phase.
func (s *SelectionController) Phase() SelectionPhase { return s.phase }

// Current returns the selection being shown, meaningful in Loading/Active.
func (s *SelectionController) Current() Selection { return s.current }

// View returns the detail panel content.
func (s *SelectionController) View() DetailView { return s.view }

// Open starts loading the detail panel for a slot. Opening a slot always
// supersedes whatever was selected before.
func (s *SelectionController) Open(ctx context.Context, slot string, proj Projection) {
	rec, ok := proj.Record(slot)
	if !ok || rec.OccupantID == "" {
		// Vacant slot: terminal display, no Active selection.
		s.gen++ // invalidate any in-flight load
		s.phase = PhaseNotApplicable
		s.current = Selection{}
		s.view = notAvailableView
		s.onClear()
		return
	}

	s.gen++
	gen := s.gen
	s.phase = PhaseLoading
	s.current = Selection{
		OccupantID:    rec.OccupantID,
		SlotName:      slot,
		TransactionID: rec.TransactionID,
	}
	s.view = loadingView

	go func() {
		profile, exists, err := s.fetch(ctx, rec.OccupantID)
		if err != nil {
			s.dispatch(detailLoaded{Gen: gen, Err: err})
			return
		}
		s.dispatch(detailLoaded{Gen: gen, View: profileView(profile, exists, rec)})
	}()
}

// HandleLoaded applies a completed detail load. Results from superseded
// requests are discarded.
func (s *SelectionController) HandleLoaded(ev detailLoaded) {
	if ev.Gen != s.gen {
		if s.metrics != nil {
			s.metrics.StaleLoadsDiscarded.Inc()
		}
		return
	}
	if ev.Err != nil {
		s.phase = PhaseIdle
		s.current = Selection{}
		s.view = notAvailableView
		s.onClear()
		return
	}
	s.phase = PhaseActive
	s.view = ev.View
	s.onActive(s.current)
}

// Clear resets the panel to Idle and invalidates any in-flight load.
func (s *SelectionController) Clear() {
	s.gen++
	s.phase = PhaseIdle
	s.current = Selection{}
	s.view = DetailView{}
	s.onClear()
}

// profileView renders an occupant profile into panel content, falling back
// to the raw occupant id when the profile record is absent.
func profileView(profile OccupantProfile, exists bool, rec OccupancyRecord) DetailView {
	if !exists {
		return DetailView{Name: rec.OccupantID, TimeIn: rec.TimeIn}
	}
	name := profile.DisplayName
	if name == "" {
		name = profile.Email
	}
	if name == "" {
		name = rec.OccupantID
	}
	class := "regular"
	if profile.Accessible {
		class = "pwd"
	}
	return DetailView{
		Name:    name,
		Contact: profile.ContactNumber,
		Class:   class,
		TimeIn:  rec.TimeIn,
	}
}
