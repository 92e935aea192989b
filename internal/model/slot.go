package model

import "time"

// SlotCategory is the closed set of slot types in the lot layout.
type SlotCategory string

const (
	CategoryCar        SlotCategory = "Car"
	CategoryMotorcycle SlotCategory = "Motorcycle"
	CategoryAccessible SlotCategory = "Accessible"
)

// Slot represents a physical parking slot. Slots are provisioned when the
// layout is created; the monitor only ever mutates the display label.
type Slot struct {
	Name      string       `gorm:"primaryKey;size:64" json:"name"`
	Category  SlotCategory `gorm:"index;size:32;not null" json:"category"`
	Label     string       `gorm:"size:128;not null" json:"label"`
	CreatedAt time.Time    `gorm:"not null" json:"-"`
	UpdatedAt time.Time    `gorm:"not null" json:"-"`
}
