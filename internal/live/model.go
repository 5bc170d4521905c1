// Package live holds the desk: the in-memory state of the currently loaded
// options-flow batch and spot price, with pub/sub of changes for the
// WebSocket and gRPC streams.
package live

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"flowdesk/internal/domain"
	"flowdesk/internal/flow"
)

// EventKind names what changed on the desk.
type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventAppended EventKind = "appended"
	EventCleared  EventKind = "cleared"
	EventSpot     EventKind = "spot"
)

// Event is emitted to subscribers after every desk mutation.
type Event struct {
	Kind    EventKind `json:"kind"`
	BatchID string    `json:"batchId"`
	Trades  int       `json:"trades"`
	Spot    float64   `json:"spot"`
	Time    time.Time `json:"time"`
}

// Snapshot is a consistent copy of the desk state.
type Snapshot struct {
	BatchID   string                `json:"batchId"`
	Trades    []domain.OptionTrade  `json:"trades"`
	Summary   domain.OptionsSummary `json:"summary"`
	Stats     flow.ParseStats       `json:"stats"`
	LastParse flow.ParseStats       `json:"lastParse"` // most recent Load or Append only
	Spot      float64               `json:"spot"`
	SpotTime  time.Time             `json:"spotTime"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Desk holds the current batch of parsed trades and the spot price. Every
// derived view is recomputed from a Snapshot on demand; the desk only
// stores inputs.
type Desk struct {
	mu       sync.RWMutex
	parser   *flow.Parser
	clock    flow.Clock
	batchID  string
	trades   []domain.OptionTrade
	summary  domain.OptionsSummary
	stats    flow.ParseStats
	last     flow.ParseStats
	spot     float64
	spotTime time.Time
	updated  time.Time

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewDesk creates an empty desk. A nil clock means the system clock.
func NewDesk(clock flow.Clock) *Desk {
	if clock == nil {
		clock = flow.SystemClock
	}
	return &Desk{
		parser: flow.NewParser(clock),
		clock:  clock,
		trades: make([]domain.OptionTrade, 0),
		subs:   make(map[int]chan Event),
	}
}

// Clock returns the clock used for timestamp normalization.
func (d *Desk) Clock() flow.Clock { return d.clock }

// Load replaces the current batch with the trades parsed from raw.
func (d *Desk) Load(raw string) Snapshot {
	parsed, stats := d.parser.Parse(raw)

	d.mu.Lock()
	d.batchID = uuid.NewString()
	d.trades = parsed.Trades
	d.summary = parsed.Summary
	d.stats = stats
	d.last = stats
	d.updated = d.clock.Now()
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.publish(EventLoaded, snap)
	return snap
}

// Append adds the trades parsed from raw to the current batch. The summary
// is recomputed over the combined trades.
func (d *Desk) Append(raw string) Snapshot {
	parsed, stats := d.parser.Parse(raw)

	d.mu.Lock()
	if d.batchID == "" {
		d.batchID = uuid.NewString()
	}
	combined := make([]domain.OptionTrade, 0, len(d.trades)+len(parsed.Trades))
	combined = append(combined, d.trades...)
	combined = append(combined, parsed.Trades...)
	d.trades = combined
	d.summary = flow.Summarize(combined)
	d.stats.Lines += stats.Lines
	d.stats.Parsed += stats.Parsed
	d.stats.Dropped += stats.Dropped
	d.last = stats
	d.updated = d.clock.Now()
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.publish(EventAppended, snap)
	return snap
}

// Clear drops the current batch. The spot price is kept.
func (d *Desk) Clear() {
	d.mu.Lock()
	d.batchID = ""
	d.trades = make([]domain.OptionTrade, 0)
	d.summary = domain.OptionsSummary{}
	d.stats = flow.ParseStats{}
	d.last = flow.ParseStats{}
	d.updated = d.clock.Now()
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.publish(EventCleared, snap)
}

// SetSpot records the latest spot price. It satisfies market.SpotSink.
func (d *Desk) SetSpot(price float64, at time.Time) {
	if at.IsZero() {
		at = d.clock.Now()
	}
	d.mu.Lock()
	d.spot = price
	d.spotTime = at
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.publish(EventSpot, snap)
}

// Spot returns the last recorded spot price and when it was observed.
func (d *Desk) Spot() (float64, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spot, d.spotTime
}

// Snapshot returns a copy of the current state.
func (d *Desk) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *Desk) snapshotLocked() Snapshot {
	trades := make([]domain.OptionTrade, len(d.trades))
	copy(trades, d.trades)
	return Snapshot{
		BatchID:   d.batchID,
		Trades:    trades,
		Summary:   d.summary,
		Stats:     d.stats,
		LastParse: d.last,
		Spot:      d.spot,
		SpotTime:  d.spotTime,
		UpdatedAt: d.updated,
	}
}

func (d *Desk) publish(kind EventKind, snap Snapshot) {
	evt := Event{
		Kind:    kind,
		BatchID: snap.BatchID,
		Trades:  len(snap.Trades),
		Spot:    snap.Spot,
		Time:    d.clock.Now(),
	}
	d.subsMu.Lock()
	for _, ch := range d.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber, drop event.
		}
	}
	d.subsMu.Unlock()
}

// Subscribe creates a new subscription channel for desk events.
func (d *Desk) Subscribe(bufSize int) (id int, ch <-chan Event) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	id = d.nextSubID
	d.nextSubID++
	c := make(chan Event, bufSize)
	d.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (d *Desk) Unsubscribe(id int) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	if ch, ok := d.subs[id]; ok {
		close(ch)
		delete(d.subs, id)
	}
}

// Subscribers returns the number of open subscriptions.
func (d *Desk) Subscribers() int {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	return len(d.subs)
}
