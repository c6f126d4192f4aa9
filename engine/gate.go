// ABOUTME: Per-resource single-flight guard for mutating operations
// ABOUTME: At most one ticket per (kind, id); a second acquire is refused, never queued
package engine

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harperreed/devicedrop/models"
)

// Ticket is held while one mutation on a resource is in flight.
type Ticket struct {
	ID         string
	Kind       models.Kind
	ResourceID string
	AcquiredAt time.Time
}

type gateKey struct {
	kind models.Kind
	id   string
}

// Gate hands out tickets keyed by (kind, id). Different keys never block
// each other.
type Gate struct {
	mu      sync.Mutex
	held    map[gateKey]*Ticket
	entropy io.Reader
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{
		held:    make(map[gateKey]*Ticket),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Acquire returns a ticket, or ErrBusy while another ticket for the same
// resource is outstanding.
func (g *Gate) Acquire(kind models.Kind, id string) (*Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := gateKey{kind: kind, id: id}
	if _, busy := g.held[key]; busy {
		return nil, ErrBusy
	}

	now := time.Now()
	t := &Ticket{
		ID:         ulid.MustNew(ulid.Timestamp(now), g.entropy).String(),
		Kind:       kind,
		ResourceID: id,
		AcquiredAt: now,
	}
	g.held[key] = t
	ticketsInFlight.Inc()
	return t, nil
}

// Release gives a ticket back. Releasing twice, or releasing a ticket that
// was superseded, is a no-op.
func (g *Gate) Release(t *Ticket) {
	if t == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := gateKey{kind: t.Kind, id: t.ResourceID}
	if g.held[key] == t {
		delete(g.held, key)
		ticketsInFlight.Dec()
	}
}

// Do runs fn while holding the ticket for (kind, id). The ticket is released
// on every path out of fn, including panics.
func (g *Gate) Do(kind models.Kind, id string, fn func(*Ticket) error) error {
	t, err := g.Acquire(kind, id)
	if err != nil {
		return err
	}
	defer g.Release(t)
	return fn(t)
}

// Busy reports whether a ticket for (kind, id) is outstanding.
func (g *Gate) Busy(kind models.Kind, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[gateKey{kind: kind, id: id}]
	return busy
}

// InFlight returns the number of outstanding tickets.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
