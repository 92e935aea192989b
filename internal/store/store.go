package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-monitor-backend/internal/model"
)

// Incident resolution errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrIncidentResolved = errors.New("incident is already resolved")
)

// The first resolve opens a confirmation window for the reporter; once it
// elapses the incident may be finalized without their confirmation.
const confirmWindow = 24 * time.Hour

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	UpsertSlots(ctx context.Context, slots []model.Slot) error
	SaveLabels(ctx context.Context, labels map[string]string) error
	RecordObservations(ctx context.Context, now time.Time, observations []Observation) ([]string, error)
	ImportIncidents(ctx context.Context, incidents []model.Incident) error
	ResolveIncident(ctx context.Context, incidentID string, finalize bool, resolvedBy string, now time.Time) (model.Incident, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for handlers that query directly.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// UpsertSlots provisions or refreshes the slot layout.
func (s *gormStore) UpsertSlots(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "label", "updated_at"}),
	}).Create(&slots).Error
}

// SaveLabels applies a batch of label edits transactionally. The batch
// always carries the full label set, so replaying it is harmless.
func (s *gormStore) SaveLabels(ctx context.Context, labels map[string]string) error {
	if len(labels) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name, label := range labels {
			res := tx.Model(&model.Slot{}).Where("name = ?", name).Update("label", label)
			if res.Error != nil {
				return fmt.Errorf("failed to update label for slot %s: %w", name, res.Error)
			}
			if res.RowsAffected == 0 {
				log.Printf("Label for unknown slot %q ignored", name)
			}
		}
		return nil
	})
}

// RecordObservations reconciles a full occupancy snapshot against the open
// table transactionally, archiving every ended occupancy into the history
// table. It returns the names of slots that became vacant so the caller can
// notify their subscribers.
func (s *gormStore) RecordObservations(ctx context.Context, now time.Time, observations []Observation) ([]string, error) {
	openRecords, err := s.fetchAllOpenStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open status records: %w", err)
	}

	var vacated []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, obs := range observations {
			oldRecord, exists := openRecords[obs.SlotName]

			if exists {
				// Same transaction still parked: nothing changed.
				if oldRecord.TransactionID == obs.TransactionID && oldRecord.OccupantID == obs.OccupantID {
					delete(openRecords, obs.SlotName)
					continue
				}
				// A different occupant without an intervening vacant
				// snapshot: close out the old occupancy and open the new one.
				if err := archiveRecord(tx, oldRecord, now); err != nil {
					return err
				}
				updated := prepareOpenStatus(obs, now)
				if err := tx.Save(&updated).Error; err != nil {
					return fmt.Errorf("failed to update open status for slot %s: %w", obs.SlotName, err)
				}
				delete(openRecords, obs.SlotName)
				continue
			}

			newRecord := prepareOpenStatus(obs, now)
			if err := tx.Create(&newRecord).Error; err != nil {
				return fmt.Errorf("failed to create open status for slot %s: %w", obs.SlotName, err)
			}
		}

		// Slots that had an open occupancy but are absent from this
		// snapshot are now vacant.
		for _, remaining := range openRecords {
			if err := archiveRecord(tx, remaining, now); err != nil {
				return err
			}
			if err := tx.Delete(&model.SlotStatusOpen{}, "slot_name = ?", remaining.SlotName).Error; err != nil {
				return fmt.Errorf("failed to delete open status for slot %s: %w", remaining.SlotName, err)
			}
			vacated = append(vacated, remaining.SlotName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vacated, nil
}

// archiveRecord writes a completed occupancy into the history table.
func archiveRecord(tx *gorm.DB, record model.SlotStatusOpen, observationTime time.Time) error {
	historyRecord := model.SlotStatusHistory{
		SlotName:      record.SlotName,
		ObservedAt:    observationTime,
		OccupantID:    record.OccupantID,
		TransactionID: record.TransactionID,
		VehicleType:   record.VehicleType,
		PeriodStart:   record.TimeIn,
		PeriodEnd:     observationTime,
	}
	if err := tx.Create(&historyRecord).Error; err != nil {
		return fmt.Errorf("failed to archive occupancy for slot %s: %w", record.SlotName, err)
	}
	return nil
}

// ImportIncidents mirrors incident records pushed by the remote store into
// the local table.
func (s *gormStore) ImportIncidents(ctx context.Context, incidents []model.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "incident_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reporter_id", "slot_name", "description", "image_url", "status", "confirm_deadline"}),
	}).Create(&incidents).Error
}

// ResolveIncident drives the two-phase resolution workflow. The first phase
// marks an open incident pending user confirmation and stamps the
// confirmation deadline; finalize marks it resolved. Finalizing is
// idempotent once the incident is resolved.
func (s *gormStore) ResolveIncident(ctx context.Context, incidentID string, finalize bool, resolvedBy string, now time.Time) (model.Incident, error) {
	var incident model.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&incident, "incident_id = ?", incidentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIncidentNotFound
			}
			return err
		}

		if finalize {
			if incident.Status == model.IncidentStatusResolved {
				return nil
			}
			incident.Status = model.IncidentStatusResolved
			incident.ResolvedAt = &now
			incident.ResolvedBy = resolvedBy
			return tx.Save(&incident).Error
		}

		switch incident.Status {
		case model.IncidentStatusResolved:
			return ErrIncidentResolved
		case model.IncidentStatusPendingConfirm:
			// Already awaiting confirmation; keep the original deadline.
			return nil
		}
		deadline := now.Add(confirmWindow)
		incident.Status = model.IncidentStatusPendingConfirm
		incident.ConfirmDeadline = &deadline
		return tx.Save(&incident).Error
	})
	if err != nil {
		return model.Incident{}, err
	}
	return incident, nil
}

func (s *gormStore) fetchAllOpenStatuses(ctx context.Context) (map[string]model.SlotStatusOpen, error) {
	var openRecords []model.SlotStatusOpen
	if err := s.db.WithContext(ctx).Find(&openRecords).Error; err != nil {
		return nil, err
	}
	recordMap := make(map[string]model.SlotStatusOpen, len(openRecords))
	for _, r := range openRecords {
		recordMap[r.SlotName] = r
	}
	return recordMap, nil
}

func prepareOpenStatus(obs Observation, now time.Time) model.SlotStatusOpen {
	timeIn := obs.TimeIn
	if timeIn.IsZero() {
		timeIn = now
	}
	return model.SlotStatusOpen{
		SlotName:      obs.SlotName,
		OccupantID:    obs.OccupantID,
		TransactionID: obs.TransactionID,
		VehicleType:   obs.VehicleType,
		ObservedAt:    now,
		TimeIn:        timeIn,
	}
}
