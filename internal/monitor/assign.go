package monitor

import (
	"context"
	"errors"
	"time"

	"parking-monitor-backend/internal/parse"
	"parking-monitor-backend/internal/remote"
)

// ErrNotPermitted is returned when a session without the required role flag
// attempts a restricted operation.
var ErrNotPermitted = errors.New("operation not permitted for this session")

// Candidate is a user eligible for slot assignment: they hold an active
// transaction that has no slot yet.
type Candidate struct {
	UID           string
	TransactionID string
	Name          string
}

// Assigner implements the slot assignment workflow against the remote store.
type Assigner struct {
	gw            remote.Gateway
	usersPath     string
	txPath        string
	occupancyPath string
	now           func() time.Time
}

// NewAssigner creates an assigner over the configured store paths.
func NewAssigner(gw remote.Gateway, usersPath, txPath, occupancyPath string) *Assigner {
	return &Assigner{
		gw:            gw,
		usersPath:     usersPath,
		txPath:        txPath,
		occupancyPath: occupancyPath,
		now:           time.Now,
	}
}

type candidateUser struct {
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	ActiveTransaction string `json:"activeTransaction"`
}

type candidateTx struct {
	Slot string `json:"slot"`
}

// Candidates lists users whose active transaction has not been assigned a
// slot yet.
func (a *Assigner) Candidates(ctx context.Context) ([]Candidate, error) {
	usersSnap, err := a.gw.Get(ctx, a.usersPath)
	if err != nil {
		return nil, err
	}
	txSnap, err := a.gw.Get(ctx, a.txPath)
	if err != nil {
		return nil, err
	}

	users := map[string]candidateUser{}
	if usersSnap.Exists {
		if err := usersSnap.Decode(&users); err != nil {
			return nil, err
		}
	}
	txs := map[string]candidateTx{}
	if txSnap.Exists {
		if err := txSnap.Decode(&txs); err != nil {
			return nil, err
		}
	}

	var candidates []Candidate
	for uid, u := range users {
		if u.ActiveTransaction == "" {
			continue
		}
		if tx, ok := txs[u.ActiveTransaction]; ok && tx.Slot != "" {
			continue
		}
		name := u.DisplayName
		if name == "" {
			name = u.Email
		}
		if name == "" {
			name = uid
		}
		candidates = append(candidates, Candidate{
			UID:           uid,
			TransactionID: u.ActiveTransaction,
			Name:          name,
		})
	}
	return candidates, nil
}

// Assign binds the candidate's transaction to the slot and writes the
// occupancy record under the sanitized slot key.
func (a *Assigner) Assign(ctx context.Context, slotName string, c Candidate) error {
	if err := a.gw.Update(ctx, a.txPath+"/"+c.TransactionID, map[string]any{"slot": slotName}); err != nil {
		return err
	}
	rec := OccupancyRecord{
		SlotName:      slotName,
		OccupantID:    c.UID,
		TransactionID: c.TransactionID,
		Status:        "OCCUPIED",
		TimeIn:        a.now().UTC().Format(time.RFC3339),
		VehicleType:   "CAR",
	}
	return a.gw.Set(ctx, a.occupancyPath+"/"+parse.SafeKey(slotName), rec)
}
