package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"parking-monitor-backend/internal/remote"
)

// Notice validation and state errors.
var (
	ErrNoOccupant     = errors.New("no occupant selected")
	ErrEmptyMessage   = errors.New("notice message is empty")
	ErrMessageTooLong = errors.New("notice message exceeds the maximum length")
	ErrNotConfirmed   = errors.New("stopping a notice requires confirmation")
	ErrNoticeInFlight = errors.New("a notice operation is already in progress")
)

// NoticeState is the per-occupant notice record kept in the remote store.
// The active flag only ever changes through explicit start/stop actions.
type NoticeState struct {
	NoticeID      string `json:"noticeId,omitempty"`
	Active        bool   `json:"active"`
	Message       string `json:"message"`
	StartedAt     string `json:"startedAt,omitempty"`
	StartedBy     string `json:"startedBy,omitempty"`
	StoppedAt     string `json:"stoppedAt,omitempty"`
	StoppedBy     string `json:"stoppedBy,omitempty"`
	SlotName      string `json:"slotName,omitempty"`
	TransactionID string `json:"txId,omitempty"`
}

// NoticeController manages the binary notice lifecycle per occupant.
// Send/Stop perform the remote write off-loop and deliver the outcome as a
// noticeDone event; the control stays disabled for the whole round trip, so
// a second submission while one is in flight is rejected.
type NoticeController struct {
	gw       remote.Gateway
	basePath string
	issuer   string
	maxLen   int
	dispatch func(Event)
	now      func() time.Time

	states   map[string]NoticeState
	inFlight bool
}

// NewNoticeController creates a controller writing notices under basePath,
// attributed to issuer. Completed round trips are delivered through dispatch.
func NewNoticeController(gw remote.Gateway, basePath, issuer string, maxLen int, dispatch func(Event)) *NoticeController {
	return &NoticeController{
		gw:       gw,
		basePath: basePath,
		issuer:   issuer,
		maxLen:   maxLen,
		dispatch: dispatch,
		now:      time.Now,
		states:   make(map[string]NoticeState),
	}
}

// State returns the locally known notice state for an occupant.
func (n *NoticeController) State(occupantID string) (NoticeState, bool) {
	st, ok := n.states[occupantID]
	return st, ok
}

// Action returns which affordance the UI should offer for an occupant:
// "stop" while a notice is active, "send" otherwise.
func (n *NoticeController) Action(occupantID string) string {
	if st, ok := n.states[occupantID]; ok && st.Active {
		return "stop"
	}
	return "send"
}

// Busy reports whether a notice operation is in flight. The UI disables the
// notice control while this is true.
func (n *NoticeController) Busy() bool { return n.inFlight }

// Refresh synchronizes the local state from the remote store, dropping the
// local entry when the record is absent.
func (n *NoticeController) Refresh(ctx context.Context, occupantID string) error {
	snap, err := n.gw.Get(ctx, n.basePath+"/"+occupantID)
	if err != nil {
		return err
	}
	if !snap.Exists {
		delete(n.states, occupantID)
		return nil
	}
	var st NoticeState
	if err := snap.Decode(&st); err != nil {
		return err
	}
	n.states[occupantID] = st
	return nil
}

// Send validates and starts writing an active notice for the occupant.
// Validation happens entirely before any network call: a missing occupant,
// an empty trimmed message, or an over-length message abort the operation.
// The write itself runs off-loop; local state is applied by HandleDone.
func (n *NoticeController) Send(ctx context.Context, occupantID, message, slotName, txID string) error {
	if occupantID == "" {
		return ErrNoOccupant
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	if len([]rune(message)) > n.maxLen {
		return ErrMessageTooLong
	}
	if n.inFlight {
		return ErrNoticeInFlight
	}
	n.inFlight = true

	st := NoticeState{
		NoticeID:      uuid.New().String(),
		Active:        true,
		Message:       message,
		StartedAt:     n.now().UTC().Format(time.RFC3339),
		StartedBy:     n.issuer,
		SlotName:      slotName,
		TransactionID: txID,
	}
	path := n.basePath + "/" + occupantID
	go func() {
		err := n.gw.Set(ctx, path, st)
		n.dispatch(noticeDone{OccupantID: occupantID, State: st, Err: err})
	}()
	return nil
}

// Stop starts ending the active notice for the occupant. The confirmed flag
// must be set by the caller only after explicit user confirmation.
func (n *NoticeController) Stop(ctx context.Context, occupantID string, confirmed bool) error {
	if occupantID == "" {
		return ErrNoOccupant
	}
	if !confirmed {
		return ErrNotConfirmed
	}
	if n.inFlight {
		return ErrNoticeInFlight
	}
	n.inFlight = true

	st := n.states[occupantID]
	st.Active = false
	st.StoppedAt = n.now().UTC().Format(time.RFC3339)
	st.StoppedBy = n.issuer
	path := n.basePath + "/" + occupantID
	go func() {
		err := n.gw.Update(ctx, path, map[string]any{
			"active":    false,
			"stoppedAt": st.StoppedAt,
			"stoppedBy": st.StoppedBy,
		})
		n.dispatch(noticeDone{OccupantID: occupantID, Stop: true, State: st, Err: err})
	}()
	return nil
}

// HandleDone applies a completed notice round trip and re-enables the
// control. A failed write leaves the local state untouched.
func (n *NoticeController) HandleDone(ev noticeDone) error {
	n.inFlight = false
	if ev.Err != nil {
		return ev.Err
	}
	n.states[ev.OccupantID] = ev.State
	return nil
}
