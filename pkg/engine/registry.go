package engine

import (
	"sync"

	"github.com/kalaytan/fxsim/pkg/market"
)

// Registry maps symbols to their engines. It is injected into whatever
// needs to look engines up, never a package singleton.
type Registry struct {
	mu      sync.RWMutex
	engines map[market.Symbol]*Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[market.Symbol]*Engine)}
}

// Add inserts or replaces the engine for its symbol.
func (r *Registry) Add(e *Engine) {
	r.mu.Lock()
	r.engines[e.Symbol()] = e
	r.mu.Unlock()
}

func (r *Registry) Get(sym market.Symbol) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[sym]
	return e, ok
}

// All returns a snapshot of the registered engines.
func (r *Registry) All() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	return out
}
