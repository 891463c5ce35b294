package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// Factory builds a strategy for one instrument from typed parameters.
type Factory func(vtSymbol string, p Params, logger *slog.Logger) (Strategy, error)

// Registry maps strategy names to factories so the CLI and config can pick a
// strategy at runtime. It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get retrieves a factory by name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, domain.ErrNotFound)
	}
	return f, nil
}

// List returns the names of all registered strategies in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build looks up name and constructs the strategy for vtSymbol.
func (r *Registry) Build(name, vtSymbol string, p Params, logger *slog.Logger) (Strategy, error) {
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	s, err := f(vtSymbol, p, logger)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	return s, nil
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("double_ma", func(vt string, p Params, l *slog.Logger) (Strategy, error) {
		return NewDoubleMA(vt, p.DoubleMA, l)
	})
	r.Register("macd", func(vt string, p Params, l *slog.Logger) (Strategy, error) {
		return NewMACD(vt, p.MACD, l)
	})
	r.Register("rsi", func(vt string, p Params, l *slog.Logger) (Strategy, error) {
		return NewRSI(vt, p.RSI, l)
	})
	r.Register("bollinger", func(vt string, p Params, l *slog.Logger) (Strategy, error) {
		return NewBollinger(vt, p.Bollinger, l)
	})
	return r
}
