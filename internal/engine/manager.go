package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amourflorals/wishsync/internal/upstream"
)

// Manager owns one Engine per signed-in shopper for the life of the process.
// Engines are created lazily on first touch and hydrated from the cache; the
// first touch also kicks off a background sync so the local copy converges
// without blocking the request that created it.
type Manager struct {
	deps Deps
	base context.Context

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates an engine registry. base must outlive all engines; it
// is the context queued operations and background syncs run against.
func NewManager(base context.Context, deps Deps) *Manager {
	return &Manager{
		deps:    deps,
		base:    base,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the engine for the user, creating it on first touch.
func (m *Manager) Engine(ctx context.Context, userID string) *Engine {
	m.mu.Lock()
	eng, ok := m.engines[userID]
	if !ok {
		eng = New(m.base, userID, m.deps)
		m.engines[userID] = eng
	}
	m.mu.Unlock()

	if !ok {
		eng.Hydrate(ctx)

		if token := upstream.TokenFromContext(ctx); token != "" {
			syncCtx := upstream.WithToken(m.base, token)
			go func() {
				if err := eng.Sync(syncCtx, false); err != nil {
					eng.logger.Warn("initial sync failed",
						slog.String("error", err.Error()))
				}
			}()
		}
	}

	return eng
}

// Len returns the number of active engines. Used by health reporting.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}
