package store

import "time"

// Observation is one occupied slot taken from a remote occupancy snapshot,
// normalized for persistence. A slot absent from a snapshot is vacant.
type Observation struct {
	SlotName      string
	OccupantID    string
	TransactionID string
	VehicleType   string
	TimeIn        time.Time
}
