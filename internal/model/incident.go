package model

import "time"

// Incident status values mirror the remote store's workflow.
const (
	IncidentStatusOpen           = "OPEN"
	IncidentStatusPendingConfirm = "PENDING_USER_CONFIRM"
	IncidentStatusResolved       = "RESOLVED"
)

// Incident is the local record of a reported incident and its resolution
// state. Resolution is two-phase: a first resolve marks the incident pending
// user confirmation with a deadline, a finalize (explicit or automatic once
// the deadline passes) marks it resolved.
type Incident struct {
	IncidentID      string     `gorm:"primaryKey;size:64" json:"incidentId"`
	ReporterID      string     `gorm:"index;size:64" json:"uid"`
	SlotName        string     `gorm:"size:64" json:"slotName"`
	Description     string     `gorm:"size:1024" json:"description"`
	ImageURL        string     `gorm:"size:512" json:"imageUrl"`
	Status          string     `gorm:"size:32;not null" json:"status"`
	ReportedAt      time.Time  `gorm:"not null" json:"reportedAt"`
	ConfirmDeadline *time.Time `json:"confirmDeadline,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy      string     `gorm:"size:64" json:"resolvedBy,omitempty"`
}
