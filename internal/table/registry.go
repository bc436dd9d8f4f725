package table

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/internal/metrics"
	"github.com/park285/dama-table/internal/msgcat"
	"github.com/park285/dama-table/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

// Registry maps table ids to live rooms. Rooms are created on first use and
// removed when their last participant leaves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	store        store.Store
	catalog      *msgcat.Catalog
	metrics      *metrics.Metrics
	storeTimeout time.Duration
}

type Option func(*Registry)

// WithCatalog sets the catalog used for winner labels.
func WithCatalog(c *msgcat.Catalog) Option {
	return func(g *Registry) {
		if c != nil {
			g.catalog = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Registry) { g.metrics = m }
}

// WithStoreTimeout bounds each store call made from a room.
func WithStoreTimeout(d time.Duration) Option {
	return func(g *Registry) {
		if d > 0 {
			g.storeTimeout = d
		}
	}
}

func NewRegistry(st store.Store, opts ...Option) *Registry {
	g := &Registry{
		rooms:        make(map[string]*Room),
		store:        st,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.catalog == nil {
		g.catalog = msgcat.MustDefault()
	}
	return g
}

// Acquire returns the live room for id, creating and starting it if absent.
func (g *Registry) Acquire(id string) *Room {
	id = strings.TrimSpace(id)
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := newRoom(id, g)
	g.rooms[id] = r
	go r.run()
	g.metrics.RoomOpened()
	return r
}

// Lookup returns the live room for id without creating one.
func (g *Registry) Lookup(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[strings.TrimSpace(id)]
	return r, ok
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// remove drops id only while it still maps to r, so a closing room never evicts its successor.
func (g *Registry) remove(id string, r *Room) {
	g.mu.Lock()
	cur, ok := g.rooms[id]
	if ok && cur == r {
		delete(g.rooms, id)
	}
	g.mu.Unlock()
	if ok && cur == r {
		g.metrics.RoomClosed()
	}
}

// Join admits a connection into the room for id. A room that closed between
// lookup and admission is replaced transparently.
func (g *Registry) Join(id string, a Admission) (*Room, Participant, error) {
	for {
		r := g.Acquire(id)
		p, err := r.Join(a)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return r, p, err
	}
}

// Snapshot returns the live snapshot of a loaded room.
func (g *Registry) Snapshot(id string) (domain.Snapshot, bool) {
	r, ok := g.Lookup(id)
	if !ok {
		return domain.Snapshot{}, false
	}
	return r.Snapshot()
}
