package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DraftLabelEditor tracks unsaved slot label edits and submits them as one
// idempotent batch. Saving always sends the full current label set, not a
// diff; on any failure the dirty flag is preserved so the same batch can be
// retried.
type DraftLabelEditor struct {
	client  *http.Client
	saveURL string
	labels  map[string]string
	dirty   bool
	status  string
}

// NewDraftLabelEditor seeds the editor with the current label set. An empty
// saveURL leaves Save as a no-op.
func NewDraftLabelEditor(saveURL string, labels map[string]string) *DraftLabelEditor {
	seeded := make(map[string]string, len(labels))
	for k, v := range labels {
		seeded[k] = v
	}
	return &DraftLabelEditor{
		client:  &http.Client{Timeout: 15 * time.Second},
		saveURL: saveURL,
		labels:  seeded,
	}
}

// Edit records a pending label edit and marks the editor dirty.
func (d *DraftLabelEditor) Edit(slot, label string) {
	if slot == "" || label == "" {
		return
	}
	d.labels[slot] = label
	d.dirty = true
}

// Dirty reports whether there are unsaved edits.
func (d *DraftLabelEditor) Dirty() bool { return d.dirty }

// Labels returns the full current label set.
func (d *DraftLabelEditor) Labels() map[string]string {
	out := make(map[string]string, len(d.labels))
	for k, v := range d.labels {
		out[k] = v
	}
	return out
}

// Status returns the transient status indicator text from the last save.
func (d *DraftLabelEditor) Status() string { return d.status }

type saveLayoutRequest struct {
	Labels map[string]string `json:"labels"`
}

type saveLayoutResponse struct {
	OK *bool `json:"ok"`
}

// Save submits the batch. It is a no-op when there is nothing to save or no
// save target is configured. A 2xx response carrying an explicit ok:false is
// an application-level rejection and counts as a failure.
func (d *DraftLabelEditor) Save(ctx context.Context) error {
	if !d.dirty || d.saveURL == "" {
		return nil
	}

	body, err := json.Marshal(saveLayoutRequest{Labels: d.labels})
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.saveURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.status = "Save failed"
		return fmt.Errorf("label save request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok {
		var parsed saveLayoutResponse
		// A body that is not JSON is tolerated; only an explicit ok:false
		// rejects the save.
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
			if parsed.OK != nil && !*parsed.OK {
				ok = false
			}
		}
	}

	if !ok {
		d.status = "Save failed"
		return fmt.Errorf("label save rejected with status %d", resp.StatusCode)
	}

	d.dirty = false
	d.status = "Changes saved"
	return nil
}
