package monitor

import (
	"log"
	"strings"
	"sync"
	"time"

	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/remote"
)

// OccupancyRecord is the remote store's record of who occupies a slot. The
// projector treats it as read-only and replaces its local copy wholesale on
// every push.
type OccupancyRecord struct {
	SlotName      string `json:"slotName"`
	OccupantID    string `json:"uid"`
	TransactionID string `json:"txId"`
	Status        string `json:"status"`
	TimeIn        string `json:"timeIn"`
	VehicleType   string `json:"vehicleType"`
}

// Occupied reports whether the record marks its slot as occupied. The
// comparison is case-insensitive; any other status is treated as vacant.
func (r OccupancyRecord) Occupied() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "OCCUPIED")
}

// Highlight is the rendering hint for a slot element.
type Highlight string

const (
	HighlightOccupied Highlight = "occupied"
	HighlightVacant   Highlight = "vacant"
)

// Projection is the renderable view derived from one occupancy push: the
// slot-name keyed records, per-slot highlights, and per-category availability.
type Projection struct {
	Seq        uint64
	Records    map[string]OccupancyRecord
	Highlights map[string]Highlight
	Available  map[model.SlotCategory]int
	PushedAt   time.Time
}

// ActiveOccupants returns the set of occupant ids present in the projection.
func (p Projection) ActiveOccupants() map[string]bool {
	active := make(map[string]bool, len(p.Records))
	for _, rec := range p.Records {
		if rec.Occupied() && rec.OccupantID != "" {
			active[rec.OccupantID] = true
		}
	}
	return active
}

// Record returns the occupancy record for a slot, if the slot is occupied.
func (p Projection) Record(slot string) (OccupancyRecord, bool) {
	rec, ok := p.Records[slot]
	if !ok || !rec.Occupied() {
		return OccupancyRecord{}, false
	}
	return rec, true
}

// Projector rebuilds the occupancy projection from every push of the remote
// collection. The source is the authority: each push fully replaces the
// local state, and a rebuild from an older push can never overwrite one from
// a newer push.
type Projector struct {
	mu        sync.Mutex
	layout    []model.Slot
	totals    map[model.SlotCategory]int
	nextSeq   uint64
	committed uint64
	current   Projection
	subs      []func(Projection)

	metrics *Metrics
	now     func() time.Time
}

// NewProjector creates a projector over the static slot layout.
func NewProjector(layout []model.Slot, metrics *Metrics) *Projector {
	totals := make(map[model.SlotCategory]int)
	for _, s := range layout {
		totals[s.Category]++
	}
	return &Projector{
		layout:  layout,
		totals:  totals,
		metrics: metrics,
		now:     time.Now,
		current: Projection{
			Records:    map[string]OccupancyRecord{},
			Highlights: map[string]Highlight{},
			Available:  totals,
		},
	}
}

// OnUpdate registers a subscriber called with every committed projection.
func (p *Projector) OnUpdate(fn func(Projection)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Current returns the latest committed projection.
func (p *Projector) Current() Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Apply rebuilds the projection from a push and commits it if no newer push
// has been applied in the meantime. It returns the committed projection and
// whether this push won.
func (p *Projector) Apply(snap remote.Snapshot) (Projection, bool) {
	seq := p.stamp()
	proj := p.build(seq, snap)
	return p.commit(proj)
}

// stamp assigns the push its position in arrival order.
func (p *Projector) stamp() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSeq++
	return p.nextSeq
}

// build derives a projection from a snapshot without touching shared state.
func (p *Projector) build(seq uint64, snap remote.Snapshot) Projection {
	raw := map[string]OccupancyRecord{}
	if snap.Exists {
		if err := snap.Decode(&raw); err != nil {
			log.Printf("failed to decode occupancy push: %v", err)
			raw = map[string]OccupancyRecord{}
		}
	}

	// Denormalize: the collection is keyed by an opaque id; records carry
	// the slot name. Fall back to the key when the name is missing.
	byName := make(map[string]OccupancyRecord, len(raw))
	for key, rec := range raw {
		name := rec.SlotName
		if name == "" {
			name = key
			rec.SlotName = key
		}
		byName[name] = rec
	}

	highlights := make(map[string]Highlight, len(p.layout))
	occupied := make(map[model.SlotCategory]int)
	for _, slot := range p.layout {
		if rec, ok := byName[slot.Name]; ok && rec.Occupied() {
			highlights[slot.Name] = HighlightOccupied
			occupied[slot.Category]++
		} else {
			highlights[slot.Name] = HighlightVacant
		}
	}

	available := make(map[model.SlotCategory]int, len(p.totals))
	for category, total := range p.totals {
		available[category] = p.clampAvailable(total - occupied[category])
	}

	return Projection{
		Seq:        seq,
		Records:    byName,
		Highlights: highlights,
		Available:  available,
		PushedAt:   p.now(),
	}
}

// clampAvailable floors a category's availability at zero. A negative count
// means the push disagreed with the layout; the clamp is counted as a health
// signal rather than rendered.
func (p *Projector) clampAvailable(left int) int {
	if left >= 0 {
		return left
	}
	if p.metrics != nil {
		p.metrics.ClampedAvailability.Inc()
	}
	return 0
}

// commit installs the projection unless a newer push already won.
func (p *Projector) commit(proj Projection) (Projection, bool) {
	p.mu.Lock()
	if proj.Seq < p.committed {
		current := p.current
		p.mu.Unlock()
		return current, false
	}
	p.committed = proj.Seq
	p.current = proj
	subs := p.subs
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.LastPushTimestamp.SetToCurrentTime()
	}
	for _, fn := range subs {
		fn(proj)
	}
	return proj, true
}
