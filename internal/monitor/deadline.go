package monitor

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"parking-monitor-backend/internal/format"
	"parking-monitor-backend/internal/parse"
	"parking-monitor-backend/internal/remote"
)

// ClosingInfo is an occupant's closing deadline and the transaction it
// anchors to.
type ClosingInfo struct {
	Deadline      time.Time
	TransactionID string
}

// CountdownView is the rendered countdown for a deadline.
type CountdownView struct {
	Text    string
	Overdue bool
}

// closingRecord is the remote store's shape; the deadline arrives in mixed
// representations (epoch millis, numeric string).
type closingRecord struct {
	Deadline any    `json:"deadline"`
	TxID     string `json:"txId"`
}

// CountdownCache caches ClosingInfo per occupant id. An entry must never
// outlive the occupant's presence in the occupancy projection: Prune is
// called on every projection update and evicts every entry whose occupant is
// no longer active, even when the record disappeared between two pushes
// without an explicit eviction.
type CountdownCache struct {
	gw       remote.Gateway
	basePath string
	entries  *gocache.Cache

	tick     *time.Ticker
	tickStop chan struct{}
}

// NewCountdownCache creates a cache reading closing info under basePath.
func NewCountdownCache(gw remote.Gateway, basePath string) *CountdownCache {
	return &CountdownCache{
		gw:       gw,
		basePath: basePath,
		entries:  gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Get returns the cached closing info for an occupant, reading through on a
// miss. A present result is cached; an absent result evicts any stale entry
// instead of being cached.
func (c *CountdownCache) Get(ctx context.Context, occupantID string) (ClosingInfo, bool, error) {
	if v, found := c.entries.Get(occupantID); found {
		return v.(ClosingInfo), true, nil
	}

	snap, err := c.gw.Get(ctx, c.basePath+"/"+occupantID)
	if err != nil {
		return ClosingInfo{}, false, err
	}
	if !snap.Exists {
		c.entries.Delete(occupantID)
		return ClosingInfo{}, false, nil
	}

	var rec closingRecord
	if err := snap.Decode(&rec); err != nil {
		return ClosingInfo{}, false, fmt.Errorf("failed to decode closing info for %s: %w", occupantID, err)
	}
	deadline, err := parse.Timestamp(rec.Deadline)
	if err != nil {
		return ClosingInfo{}, false, fmt.Errorf("bad deadline for %s: %w", occupantID, err)
	}
	if deadline == nil {
		c.entries.Delete(occupantID)
		return ClosingInfo{}, false, nil
	}

	info := ClosingInfo{Deadline: *deadline, TransactionID: rec.TxID}
	c.entries.Set(occupantID, info, gocache.NoExpiration)
	return info, true, nil
}

// Contains reports whether an entry is cached for the occupant.
func (c *CountdownCache) Contains(occupantID string) bool {
	_, found := c.entries.Get(occupantID)
	return found
}

// Prune evicts every entry whose occupant is not in the active set.
func (c *CountdownCache) Prune(active map[string]bool) {
	for id := range c.entries.Items() {
		if !active[id] {
			c.entries.Delete(id)
		}
	}
}

// Render formats the remaining time until the deadline.
func Render(info ClosingInfo, now time.Time) CountdownView {
	d := info.Deadline.Sub(now)
	return CountdownView{
		Text:    format.Remaining(d),
		Overdue: d < 0,
	}
}

// StartTicking begins dispatching CountdownTick events at the given
// interval. Starting always cancels a previous ticker first; at most one
// tick source exists at a time.
func (c *CountdownCache) StartTicking(interval time.Duration, dispatch func(Event)) {
	c.StopTicking()
	c.tick = time.NewTicker(interval)
	c.tickStop = make(chan struct{})
	ticker, stop := c.tick, c.tickStop
	go func() {
		for {
			select {
			case <-ticker.C:
				dispatch(CountdownTick{})
			case <-stop:
				return
			}
		}
	}()
}

// StopTicking cancels the countdown tick, if any.
func (c *CountdownCache) StopTicking() {
	if c.tick != nil {
		c.tick.Stop()
		close(c.tickStop)
		c.tick = nil
		c.tickStop = nil
	}
}
