package model

import "time"

// SlotStatusOpen represents the currently open occupancy of a slot (hot
// table). A slot with no open row is vacant.
type SlotStatusOpen struct {
	SlotName      string    `gorm:"primaryKey;size:64"`
	OccupantID    string    `gorm:"size:64;not null"`
	TransactionID string    `gorm:"size:64;not null"`
	VehicleType   string    `gorm:"size:32"`
	ObservedAt    time.Time `gorm:"not null"`
	TimeIn        time.Time `gorm:"not null"`
}

// SlotStatusHistory is the historical log of completed occupancies (cold
// table). Rows are appended when a slot's occupant changes or leaves.
type SlotStatusHistory struct {
	ID            int64     `gorm:"autoIncrement"`
	SlotName      string    `gorm:"not null;index;primaryKey;size:64"`
	ObservedAt    time.Time `gorm:"not null;index;primaryKey"` // Time the occupancy's END was observed
	OccupantID    string    `gorm:"size:64;not null"`
	TransactionID string    `gorm:"size:64;not null"`
	VehicleType   string    `gorm:"size:32"`
	PeriodStart   time.Time `gorm:"not null"`
	PeriodEnd     time.Time `gorm:"not null"`
}
