package claims

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is an immutable view of the last claim state applied to a Model.
type Snapshot struct {
	Claim     *Claim
	LastKnown Stage
	Version   uint64
	AppliedAt time.Time
}

// Model holds the last server-sourced snapshot of a single claim.
// Every response (poll tick, post-action refresh) is applied in arrival
// order; the last one applied wins. The model never derives a stage on its
// own.
type Model struct {
	id ID

	mu        sync.RWMutex
	claim     *Claim
	lastKnown Stage
	version   uint64
	appliedAt time.Time

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]func(Snapshot)
}

// NewModel creates an empty Model for the claim with the given id.
func NewModel(id ID) *Model {
	return &Model{
		id:        id,
		observers: make(map[int]func(Snapshot)),
	}
}

// ID returns the claim identifier the model is bound to.
func (m *Model) ID() ID {
	return m.id
}

// Apply replaces the held snapshot with c and notifies observers.
func (m *Model) Apply(c *Claim) error {
	if c == nil {
		return ErrNilClaim
	}
	if c.ID != m.id {
		return fmt.Errorf("%w: model %s, got %s", ErrClaimMismatch, m.id, c.ID)
	}
	c = c.Clone()
	if !c.Status.Valid() {
		c.Status = StageProcessing
	}

	m.mu.Lock()
	m.claim = c
	if c.Status != StageFailed {
		m.lastKnown = c.Status
	}
	m.version++
	m.appliedAt = time.Now()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// Loaded reports whether any snapshot has been applied.
func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claim != nil
}

// Snapshot returns the current snapshot. The boolean is false until the
// first Apply.
func (m *Model) Snapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claim == nil {
		return Snapshot{}, false
	}
	return m.snapshotLocked(), true
}

// Claim returns a copy of the held claim, or nil before the first Apply.
func (m *Model) Claim() *Claim {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claim.Clone()
}

// Stage returns the held stage. Before the first Apply it reports
// StageProcessing, the same safe default used for unknown wire values.
func (m *Model) Stage() Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claim == nil {
		return StageProcessing
	}
	return m.claim.Status
}

// Progress renders the pipeline markers for the held stage.
func (m *Model) Progress() []Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claim == nil {
		return Progress(StageProcessing, StageProcessing)
	}
	return Progress(m.claim.Status, m.lastKnown)
}

// Subscribe registers fn to receive every applied snapshot and returns a
// function that removes the registration.
func (m *Model) Subscribe(fn func(Snapshot)) func() {
	m.obsMu.Lock()
	key := m.nextObs
	m.nextObs++
	m.observers[key] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, key)
		m.obsMu.Unlock()
	}
}

func (m *Model) snapshotLocked() Snapshot {
	return Snapshot{
		Claim:     m.claim.Clone(),
		LastKnown: m.lastKnown,
		Version:   m.version,
		AppliedAt: m.appliedAt,
	}
}

func (m *Model) notify(s Snapshot) {
	m.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
