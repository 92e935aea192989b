package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/parse"
	"parking-monitor-backend/internal/remote"
)

// IncidentRow is one renderable entry of the incident list.
type IncidentRow struct {
	IncidentID   string
	Description  string
	ImageURL     string
	ReporterName string
	Timestamp    string
	Status       string
	CanResolve   bool
}

// incidentRecord is the remote store's incident shape. confirmDeadline
// arrives in mixed numeric representations.
type incidentRecord struct {
	IncidentID      string `json:"incidentId"`
	UID             string `json:"uid"`
	Description     string `json:"description"`
	ImageURL        string `json:"imageUrl"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status"`
	ConfirmDeadline any    `json:"confirmDeadline"`
}

// IncidentBoard projects the incidents collection and drives the resolution
// workflow. Resolution is two-phase: the first resolve marks the incident
// pending user confirmation with a deadline, the finalize marks it resolved.
// When an admin's board observes a pending incident whose deadline has
// passed, it finalizes it automatically.
type IncidentBoard struct {
	gw         remote.Gateway
	usersPath  string
	resolveURL string
	isAdmin    bool
	client     *http.Client
	now        func() time.Time

	rows []IncidentRow
}

// NewIncidentBoard creates a board for a session with the given admin flag
// and resolve target.
func NewIncidentBoard(gw remote.Gateway, usersPath, resolveURL string, isAdmin bool) *IncidentBoard {
	return &IncidentBoard{
		gw:         gw,
		usersPath:  usersPath,
		resolveURL: resolveURL,
		isAdmin:    isAdmin,
		client:     &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// Rows returns the current incident list.
func (b *IncidentBoard) Rows() []IncidentRow { return b.rows }

// Apply rebuilds the incident list from a full snapshot. Resolved incidents
// are filtered out so they disappear from the list.
func (b *IncidentBoard) Apply(ctx context.Context, snap remote.Snapshot) {
	raw := map[string]incidentRecord{}
	if snap.Exists {
		if err := snap.Decode(&raw); err != nil {
			log.Printf("failed to decode incidents push: %v", err)
			return
		}
	}

	nowMillis := b.now().UnixMilli()
	nameCache := map[string]string{}

	rows := make([]IncidentRow, 0, len(raw))
	for key, rec := range raw {
		status := strings.ToUpper(strings.TrimSpace(rec.Status))
		if status == model.IncidentStatusResolved {
			continue
		}

		// Prefer the record key; fall back to a stored incidentId.
		id := rec.IncidentID
		if id == "" {
			id = key
		}

		if b.isAdmin && b.resolveURL != "" && status == model.IncidentStatusPendingConfirm {
			if deadline := parse.EpochMillis(rec.ConfirmDeadline); deadline > 0 && deadline <= nowMillis {
				// Confirmation window elapsed; finalize in the background.
				// Failures are absorbed, the next push retries.
				go func(id string) {
					if err := b.Resolve(ctx, id, true); err != nil {
						log.Printf("auto-finalize of incident %s failed: %v", id, err)
					}
				}(id)
			}
		}

		rows = append(rows, IncidentRow{
			IncidentID:   id,
			Description:  rec.Description,
			ImageURL:     rec.ImageURL,
			ReporterName: b.reporterName(ctx, rec.UID, nameCache),
			Timestamp:    rec.Timestamp,
			Status:       rec.Status,
			CanResolve:   b.isAdmin,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	b.rows = rows
}

// reporterName resolves a reporter's display name, falling back to the raw
// uid. Lookup failures degrade to the uid; they never fail the projection.
func (b *IncidentBoard) reporterName(ctx context.Context, uid string, cache map[string]string) string {
	if uid == "" {
		return ""
	}
	if name, ok := cache[uid]; ok {
		return name
	}
	name := uid
	snap, err := b.gw.Get(ctx, b.usersPath+"/"+uid+"/displayName")
	if err == nil && snap.Exists {
		var s string
		if err := snap.Decode(&s); err == nil && s != "" {
			name = s
		}
	}
	cache[uid] = name
	return name
}

type resolveRequest struct {
	IncidentID string `json:"incidentId"`
	Finalize   bool   `json:"finalize"`
}

// Resolve posts a resolution step to the resolve target: finalize=false for
// the first phase, finalize=true to complete it.
func (b *IncidentBoard) Resolve(ctx context.Context, incidentID string, finalize bool) error {
	if !b.isAdmin {
		return ErrNotPermitted
	}
	if b.resolveURL == "" {
		return fmt.Errorf("no resolve target configured")
	}

	body, err := json.Marshal(resolveRequest{IncidentID: incidentID, Finalize: finalize})
	if err != nil {
		return fmt.Errorf("failed to marshal resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.resolveURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("resolve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("resolve rejected with status %d", resp.StatusCode)
	}
	return nil
}
