package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/clock"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Filter selects providers in List. Zero-valued fields match everything.
type Filter struct {
	Category string
	// Tags must all be present on a provider.
	Tags    []string
	MinTier int
	// MaxLoad applies only when greater than zero.
	MaxLoad float64
	Exclude map[string]bool
}

func (f Filter) matches(p *Provider) bool {
	if f.Category != "" && f.Category != p.Category {
		return false
	}
	if p.Tier < f.MinTier {
		return false
	}
	if f.MaxLoad > 0 && p.Load > f.MaxLoad {
		return false
	}
	if f.Exclude[p.ID] {
		return false
	}
	for _, t := range f.Tags {
		if !p.HasCapability(t) {
			return false
		}
	}
	return true
}

// Registry stores registered providers. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	seq       uint64
	clock     clock.Clock
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for last-active timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		providers: make(map[string]*Provider),
		clock:     clock.Real(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates p, normalizes its tags, computes its position and stores
// it. An empty ID is replaced by a generated one. The stored ID is returned.
// Registering an ID that is already present fails with an ALREADY_EXISTS error,
// which matches types.ErrInvalidInput.
func (r *Registry) Register(p Provider) (string, error) {
	if p.Name == "" {
		return "", types.InvalidInput("provider name cannot be empty")
	}
	if p.Tier < MinTier || p.Tier > MaxTier {
		return "", types.InvalidInput("provider %q tier %d outside [%d,%d]", p.Name, p.Tier, MinTier, MaxTier)
	}
	if p.Load < 0 || p.Load > 1 {
		return "", types.InvalidInput("provider %q load %.2f outside [0,1]", p.Name, p.Load)
	}

	stored := p.Clone()
	if stored.ID == "" {
		stored.ID = types.NewID().String()
	}
	stored.Capabilities = NormalizeTags(stored.Capabilities)
	if stored.Flags == nil {
		stored.Flags = make(map[string]bool)
	}
	stored.Position = ComputePosition(stored.Capabilities, stored.Tier)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[stored.ID]; exists {
		return "", types.NewError(types.ALREADY_EXISTS, fmt.Sprintf("provider already registered: %s", stored.ID))
	}

	r.seq++
	stored.Sequence = r.seq
	stored.LastActive = r.clock.Now()
	r.providers[stored.ID] = &stored

	r.logger.Debug("provider registered",
		"provider_id", stored.ID,
		"name", stored.Name,
		"tier", stored.Tier,
		"capabilities", stored.Capabilities,
	)

	return stored.ID, nil
}

// Get returns a copy of the provider with id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return Provider{}, false
	}
	return p.Clone(), true
}

// List returns copies of every provider matching f, in registration order.
func (r *Registry) List(f Filter) []Provider {
	r.mu.RLock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if f.matches(p) {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// UpdateLoad adds delta to the provider's load, clamped to [0,1], and returns
// the new load.
func (r *Registry) UpdateLoad(id string, delta float64) (float64, error) {
	var load float64
	err := r.Update(id, func(p *Provider) {
		p.Load = Clamp01(p.Load + delta)
		load = p.Load
	})
	return load, err
}

// SetLoad sets the provider's load, clamped to [0,1].
func (r *Registry) SetLoad(id string, load float64) error {
	return r.Update(id, func(p *Provider) {
		p.Load = Clamp01(load)
	})
}

// SetFlag sets a compliance flag on the provider.
func (r *Registry) SetFlag(id, flag string, value bool) error {
	return r.Update(id, func(p *Provider) {
		p.Flags[flag] = value
	})
}

// Update applies fn to the stored provider under the registry lock and
// refreshes its last-active timestamp. fn must not call back into the Registry.
// ID, Sequence and Position changes made by fn are discarded.
func (r *Registry) Update(id string, fn func(*Provider)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return types.NotFound("provider", id)
	}

	seq, pos := p.Sequence, p.Position
	fn(p)
	p.ID, p.Sequence, p.Position = id, seq, pos
	if p.Flags == nil {
		p.Flags = make(map[string]bool)
	}
	p.Load = Clamp01(p.Load)
	p.LastActive = r.clock.Now()
	return nil
}

// Deregister removes the provider with id.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[id]; !ok {
		return types.NotFound("provider", id)
	}
	delete(r.providers, id)

	r.logger.Debug("provider deregistered", "provider_id", id)
	return nil
}
