package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"parking-monitor-backend/config"
	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/remote"
)

// MenuState is the context menu's visibility and anchor.
type MenuState struct {
	Visible bool
	Slot    string
	At      Point
}

// RenderState is the full renderable state of a dashboard session, built for
// the rendering surface on demand.
type RenderState struct {
	Highlights   map[string]Highlight
	Available    map[model.SlotCategory]int
	Phase        SelectionPhase
	Detail       DetailView
	Countdown    CountdownView
	HoverVisible bool
	HoverAt      Point
	Hover        HoverView
	Menu         MenuState
	Incidents    []IncidentRow
	NoticeAction string
	NoticeBusy   bool
	Status       string
	Dirty        bool
}

// Session is the per-dashboard coordinator. It owns the selection, hover,
// countdown, notice, draft, assignment, and incident subsystems and applies
// every event on a single goroutine; there are no process-wide singletons
// and no concurrent handlers.
type Session struct {
	cfg       config.SessionConfig
	gw        remote.Gateway
	paths     config.RemotePaths
	projector *Projector
	metrics   *Metrics

	selection *SelectionController
	hover     *HoverPreview
	countdown *CountdownCache
	notices   *NoticeController
	drafts    *DraftLabelEditor
	incidents *IncidentBoard
	assigner  *Assigner

	events chan Event
	now    func() time.Time

	mu            sync.Mutex
	countdownView CountdownView
	menu          MenuState
	status        string
}

// NewSession wires a session over the shared projector and gateway. The
// viewport and hover card geometry come from the rendering surface.
func NewSession(cfg *config.Config, gw remote.Gateway, projector *Projector, labels map[string]string, viewport, card Size, metrics *Metrics) *Session {
	s := &Session{
		cfg:       cfg.Session,
		gw:        gw,
		paths:     cfg.Remote.Paths,
		projector: projector,
		metrics:   metrics,
		events:    make(chan Event, 64),
		now:       time.Now,
	}

	s.countdown = NewCountdownCache(gw, cfg.Remote.Paths.ClosingInfo)
	s.notices = NewNoticeController(gw, cfg.Remote.Paths.Notices, cfg.Session.AdminLabel, cfg.Session.NoticeMaxLen, s.Post)
	s.drafts = NewDraftLabelEditor(cfg.Session.SaveURL, labels)
	s.incidents = NewIncidentBoard(gw, cfg.Remote.Paths.Users, cfg.Session.ResolveURL, cfg.Session.IsAdmin)
	s.assigner = NewAssigner(gw, cfg.Remote.Paths.Users, cfg.Remote.Paths.Transactions, cfg.Remote.Paths.Occupancy)

	s.selection = NewSelectionController(s.readProfile, s.Post, metrics)
	s.hover = NewHoverPreview(cfg.Session.HoverDwell, viewport, card, s.readHover, s.Post, metrics)

	return s
}

// Post delivers an event to the session loop.
func (s *Session) Post(ev Event) {
	s.events <- ev
}

// Run consumes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.Attach(ctx)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.countdown.StopTicking()
			s.hover.PointerLeave()
			s.mu.Unlock()
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// Render snapshots the session state for the rendering surface.
func (s *Session) Render() RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj := s.projector.Current()
	return RenderState{
		Highlights:   proj.Highlights,
		Available:    proj.Available,
		Phase:        s.selection.Phase(),
		Detail:       s.selection.View(),
		Countdown:    s.countdownView,
		HoverVisible: s.hover.Visible(),
		HoverAt:      s.hover.Position(),
		Hover:        s.hover.View(),
		Menu:         s.menu,
		Incidents:    s.incidents.Rows(),
		NoticeAction: s.notices.Action(s.selection.Current().OccupantID),
		NoticeBusy:   s.notices.Busy(),
		Status:       s.status,
		Dirty:        s.drafts.Dirty(),
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := ev.(type) {
	case PushReceived:
		proj, ok := s.projector.Apply(ev.Snap)
		if !ok {
			return
		}
		s.countdown.Prune(proj.ActiveOccupants())
		s.renderCountdown(ctx)

	case IncidentsReceived:
		s.incidents.Apply(ctx, ev.Snap)

	case PointerEnter:
		s.hover.PointerEnter(ev.Slot, ev.At)

	case PointerMove:
		s.hover.PointerMove(ev.At)

	case PointerLeave:
		s.hover.PointerLeave()

	case DwellElapsed:
		s.hover.HandleDwell(ctx, ev.Slot, s.projector.Current())

	case hoverLoaded:
		s.hover.HandleLoaded(ev)

	case OpenDetail:
		s.selection.Open(ctx, ev.Slot, s.projector.Current())

	case detailLoaded:
		s.selection.HandleLoaded(ev)

	case ClearSelection:
		s.selection.Clear()

	case OpenContextMenu:
		if s.cfg.CanEdit || s.cfg.CanAssign {
			s.menu = MenuState{Visible: true, Slot: ev.Slot, At: ev.At}
		}

	case CloseContextMenu:
		s.menu = MenuState{}

	case CountdownTick:
		s.renderCountdown(ctx)

	case EditLabel:
		if !s.cfg.CanEdit {
			return
		}
		s.drafts.Edit(ev.Slot, ev.Label)

	case SaveLayout:
		if err := s.drafts.Save(ctx); err != nil {
			log.Printf("layout save failed: %v", err)
		}
		s.status = s.drafts.Status()

	case SendNotice:
		sel := s.selection.Current()
		if err := s.notices.Send(ctx, sel.OccupantID, ev.Message, sel.SlotName, sel.TransactionID); err != nil {
			s.status = "Notice failed: " + err.Error()
			return
		}
		s.status = "Sending notice…"

	case StopNotice:
		sel := s.selection.Current()
		if err := s.notices.Stop(ctx, sel.OccupantID, ev.Confirmed); err != nil {
			s.status = "Notice failed: " + err.Error()
			return
		}
		s.status = "Stopping notice…"

	case noticeDone:
		if err := s.notices.HandleDone(ev); err != nil {
			s.status = "Notice failed: " + err.Error()
			return
		}
		if ev.Stop {
			s.status = "Notice stopped"
		} else {
			s.status = "Notice sent"
		}

	case ConfirmAssign:
		if !s.cfg.CanAssign {
			s.status = ErrNotPermitted.Error()
			return
		}
		if err := s.assigner.Assign(ctx, ev.Slot, ev.Candidate); err != nil {
			log.Printf("assignment of %s failed: %v", ev.Slot, err)
			s.status = "Failed to assign."
			return
		}
		s.menu = MenuState{}

	case ResolveIncident:
		if err := s.incidents.Resolve(ctx, ev.IncidentID, ev.Finalize); err != nil {
			log.Printf("resolve of incident %s failed: %v", ev.IncidentID, err)
		}
	}
}

// onSelectionActive refreshes the occupant's notice state, renders the
// deadline countdown, and starts the tick while the selection stays Active.
func (s *Session) onSelectionActive(ctx context.Context) func(Selection) {
	return func(sel Selection) {
		if err := s.notices.Refresh(ctx, sel.OccupantID); err != nil {
			log.Printf("notice refresh for %s failed: %v", sel.OccupantID, err)
		}
		s.renderCountdown(ctx)
		s.countdown.StartTicking(s.cfg.CountdownTick, s.Post)
	}
}

// onSelectionClear stops the countdown tick and resets the display.
func (s *Session) onSelectionClear() func() {
	return func() {
		s.countdown.StopTicking()
		s.countdownView = CountdownView{}
	}
}

// Attach completes the selection wiring; split out of NewSession so the
// callbacks can capture the session's run context.
func (s *Session) Attach(ctx context.Context) {
	s.selection.OnActive(s.onSelectionActive(ctx))
	s.selection.OnClear(s.onSelectionClear())
}

// renderCountdown re-renders the active selection's countdown. Read
// failures and absent deadlines degrade to a "not available" display.
func (s *Session) renderCountdown(ctx context.Context) {
	sel := s.selection.Current()
	if s.selection.Phase() != PhaseActive || sel.OccupantID == "" {
		return
	}
	// An occupant no longer in the projection must not be re-cached by the
	// read-through; the display degrades until the selection changes.
	if !s.projector.Current().ActiveOccupants()[sel.OccupantID] {
		s.countdownView = CountdownView{Text: "N/A"}
		return
	}
	info, found, err := s.countdown.Get(ctx, sel.OccupantID)
	if err != nil || !found {
		s.countdownView = CountdownView{Text: "N/A"}
		return
	}
	s.countdownView = Render(info, s.now())
}

// readProfile is the detail panel's point read of an occupant profile.
func (s *Session) readProfile(ctx context.Context, occupantID string) (OccupantProfile, bool, error) {
	snap, err := s.gw.Get(ctx, s.paths.Users+"/"+occupantID)
	if err != nil {
		return OccupantProfile{}, false, err
	}
	if !snap.Exists {
		return OccupantProfile{}, false, nil
	}
	var profile OccupantProfile
	if err := snap.Decode(&profile); err != nil {
		return OccupantProfile{}, false, err
	}
	return profile, true, nil
}

// readHover is the hover preview's independent read: occupant profile plus
// the occupant's closing countdown.
func (s *Session) readHover(ctx context.Context, rec OccupancyRecord) (HoverView, error) {
	profile, exists, err := s.readProfile(ctx, rec.OccupantID)
	if err != nil {
		return HoverView{}, err
	}
	view := HoverView{Detail: profileView(profile, exists, rec)}
	if info, found, err := s.countdown.Get(ctx, rec.OccupantID); err == nil && found {
		view.Countdown = Render(info, s.now())
	} else {
		view.Countdown = CountdownView{Text: "N/A"}
	}
	return view, nil
}

// Candidates exposes the assignment candidate list for the UI.
func (s *Session) Candidates(ctx context.Context) ([]Candidate, error) {
	if !s.cfg.CanAssign {
		return nil, ErrNotPermitted
	}
	return s.assigner.Candidates(ctx)
}
