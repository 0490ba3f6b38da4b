package land

import (
	"context"
	"log/slog"
	"sync"

	"github.com/landkeeper/engine/pkg/landerr"
	"golang.org/x/sync/errgroup"
)

// Realm aggregates one Manager per land type, the top-level object a host
// process constructs once. It is the unit that a tick driver and an admin
// surface both talk to.
type Realm struct {
	logger *slog.Logger

	mu       sync.RWMutex
	managers map[string]*Manager
	stopped  bool
}

// NewRealm constructs an empty Realm.
func NewRealm(logger *slog.Logger) *Realm {
	if logger == nil {
		logger = slog.Default()
	}
	return &Realm{logger: logger, managers: make(map[string]*Manager)}
}

// RegisterLandType installs the Manager for a land type. Call once per type
// during startup, before any Join can reach it.
func (r *Realm) RegisterLandType(cfg ManagerConfig, factory Factory) *Manager {
	m := NewManager(cfg, factory, r.logger)
	r.mu.Lock()
	r.managers[cfg.LandType] = m
	r.mu.Unlock()
	return m
}

// Manager returns the Manager registered for a land type.
func (r *Realm) Manager(landType string) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[landType]
	return m, ok
}

// LandTypes lists every registered land type.
func (r *Realm) LandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.managers))
	for t := range r.managers {
		out = append(out, t)
	}
	return out
}

// TickAll drives one tick across every land type's Manager concurrently.
func (r *Realm) TickAll(ctx context.Context) error {
	r.mu.RLock()
	if r.stopped {
		r.mu.RUnlock()
		return landerr.ErrRealmStopped
	}
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range managers {
		m := m
		g.Go(func() error { return m.TickAll(gctx) })
	}
	return g.Wait()
}

// AdminList returns every live Land ID keyed by land type, for a cross-type
// admin inspection surface.
func (r *Realm) AdminList() map[string][]string {
	r.mu.RLock()
	managers := make(map[string]*Manager, len(r.managers))
	for t, m := range r.managers {
		managers[t] = m
	}
	r.mu.RUnlock()

	out := make(map[string][]string, len(managers))
	for t, m := range managers {
		out[t] = m.List()
	}
	return out
}

// Shutdown drains every land type's Manager, bounded by ctx.
func (r *Realm) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, m := range managers {
		m := m
		g.Go(func() error { return m.Shutdown(ctx) })
	}
	return g.Wait()
}
