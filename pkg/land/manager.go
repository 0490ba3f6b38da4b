package land

import (
	"context"
	"log/slog"
	"sync"

	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/landerr"
	"github.com/landkeeper/engine/pkg/transport"
	"golang.org/x/sync/errgroup"
)

// Entry bundles the two halves of a running Land: the Keeper that owns its
// state and the Adapter that owns its sessions.
type Entry struct {
	LandID  string
	Keeper  *keeper.Keeper
	Adapter *transport.Adapter
}

// Factory constructs the Keeper/Adapter pair for a newly created Land
// instance. Called without the Manager's lock held; if two callers race to
// create the same landID, the loser's Keeper is stopped and the winner's
// Entry is returned.
type Factory func(landID string) (*keeper.Keeper, *transport.Adapter, error)

// ManagerConfig configures one land type's Manager.
type ManagerConfig struct {
	LandType string

	// MaxLands caps the number of concurrently live instances of this land
	// type. Zero means unlimited.
	MaxLands int

	// OnLandCreated and OnLandRemoved fire on Land creation/removal,
	// called outside the Manager's lock.
	OnLandCreated func(landID string)
	OnLandRemoved func(landID string)
}

// Manager owns every live instance of one land type.
type Manager struct {
	cfg     ManagerConfig
	factory Factory
	logger  *slog.Logger

	mu    sync.RWMutex
	lands map[string]*Entry
}

// NewManager constructs a Manager for one land type.
func NewManager(cfg ManagerConfig, factory Factory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		factory: factory,
		logger:  logger.With("landType", cfg.LandType),
		lands:   make(map[string]*Entry),
	}
}

// Get returns the Entry for landID, if it exists.
func (m *Manager) Get(landID string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.lands[landID]
	return e, ok
}

// GetOrCreate returns the existing Entry for landID, or constructs one via
// the Manager's Factory if none exists yet. A Manager at its MaxLands cap
// refuses to create a new instance but still serves existing ones.
func (m *Manager) GetOrCreate(landID string) (*Entry, error) {
	m.mu.Lock()
	if e, ok := m.lands[landID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	if m.cfg.MaxLands > 0 && len(m.lands) >= m.cfg.MaxLands {
		m.mu.Unlock()
		return nil, landerr.ErrLandLimitReached
	}
	m.mu.Unlock()

	k, a, err := m.factory(landID)
	if err != nil {
		return nil, err
	}
	e := &Entry{LandID: landID, Keeper: k, Adapter: a}

	m.mu.Lock()
	if existing, ok := m.lands[landID]; ok {
		m.mu.Unlock()
		k.Stop()
		return existing, nil
	}
	m.lands[landID] = e
	count := len(m.lands)
	m.mu.Unlock()

	m.logger.Info("land created", "land", landID, "count", count)
	if m.cfg.OnLandCreated != nil {
		m.cfg.OnLandCreated(landID)
	}
	return e, nil
}

// Remove drops landID from the registry. It does not stop the Keeper;
// callers that want the Keeper finalized should call Stop on it first (TickAll
// does this for lands that stopped or failed on their own; Shutdown stops
// every land as it clears the registry).
func (m *Manager) Remove(landID string) {
	m.mu.Lock()
	_, existed := m.lands[landID]
	delete(m.lands, landID)
	count := len(m.lands)
	m.mu.Unlock()

	if !existed {
		return
	}
	m.logger.Info("land removed", "land", landID, "count", count)
	if m.cfg.OnLandRemoved != nil {
		m.cfg.OnLandRemoved(landID)
	}
}

// List returns the IDs of every currently registered Land.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.lands))
	for id := range m.lands {
		out = append(out, id)
	}
	return out
}

// Len reports how many Land instances of this type are currently live.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lands)
}

// TickAll drives one RunTick on every live Land of this type concurrently,
// then removes and stops any Land whose Keeper stopped or crashed on an
// invariant violation during the tick. A failing Land's tick error never
// aborts its siblings' ticks.
func (m *Manager) TickAll(ctx context.Context) error {
	m.mu.RLock()
	entries := make([]*Entry, 0, len(m.lands))
	for _, e := range m.lands {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	var failedMu sync.Mutex
	var failed []*Entry

	for _, e := range entries {
		e := e
		g.Go(func() error {
			if e.Keeper.IsStopped() {
				failedMu.Lock()
				failed = append(failed, e)
				failedMu.Unlock()
				return nil
			}
			if err := e.Keeper.RunTick(gctx); err != nil {
				m.logger.Error("land tick failed, removing", "land", e.LandID, "error", err)
				failedMu.Lock()
				failed = append(failed, e)
				failedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range failed {
		e.Keeper.Stop()
		m.Remove(e.LandID)
	}
	return nil
}

// Shutdown stops every live Land of this type, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*Entry, 0, len(m.lands))
	for _, e := range m.lands {
		entries = append(entries, e)
	}
	m.lands = make(map[string]*Entry)
	m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			e.Keeper.Stop()
			return nil
		})
	}
	return g.Wait()
}
