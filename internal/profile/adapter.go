package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/requirement"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// AdoptThreshold is the score an existing persona needs to be reused.
const AdoptThreshold = 0.7

// Adapter picks or synthesizes the persona for each requirement and tracks
// which persona is active. All methods are safe for concurrent use.
type Adapter struct {
	mu          sync.RWMutex
	profiles    map[string]*Profile
	order       []string
	active      string
	switches    uint64
	synthesized int

	logger    *slog.Logger
	publisher events.Publisher
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithPublisher sets where profile events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(a *Adapter) {
		if p != nil {
			a.publisher = p
		}
	}
}

// NewAdapter creates an Adapter holding the seed personas followed by extra.
func NewAdapter(extra []Profile, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		profiles:  make(map[string]*Profile),
		logger:    slog.Default(),
		publisher: events.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, p := range append(Seeds(), extra...) {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a persona. Names must be unique.
func (a *Adapter) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.normalized()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registerLocked(p)
}

func (a *Adapter) registerLocked(p Profile) error {
	if _, ok := a.profiles[p.Name]; ok {
		return types.NewError(types.ALREADY_EXISTS, fmt.Sprintf("profile already registered: %s", p.Name))
	}
	a.profiles[p.Name] = &p
	a.order = append(a.order, p.Name)
	return nil
}

// Get returns the persona called name.
func (a *Adapter) Get(name string) (Profile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.profiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// List returns every persona in registration order.
func (a *Adapter) List() []Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Profile, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.profiles[name].Clone())
	}
	return out
}

// Active returns the active persona, if any has been selected yet.
func (a *Adapter) Active() (Profile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.active == "" {
		return Profile{}, false
	}
	return a.profiles[a.active].Clone(), true
}

// Switches returns how many times the active persona has changed.
func (a *Adapter) Switches() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.switches
}

// Activate makes the persona called name active.
func (a *Adapter) Activate(name string) error {
	a.mu.Lock()
	if _, ok := a.profiles[name]; !ok {
		a.mu.Unlock()
		return types.NotFound("profile", name)
	}
	switched := a.switchLocked(name)
	a.mu.Unlock()

	a.announce(switched)
	return nil
}

// AdaptToRequirement returns the best-scoring persona for r when it reaches
// AdoptThreshold. Otherwise it synthesizes a persona from r's tags, registers
// it permanently and returns it. The returned persona becomes active.
//
// Ties between existing personas go to the one registered first.
func (a *Adapter) AdaptToRequirement(r requirement.Profile) Profile {
	a.mu.Lock()

	var best *Profile
	bestScore := -1.0
	for _, name := range a.order {
		p := a.profiles[name]
		if s := p.Score(r); s > bestScore {
			best, bestScore = p, s
		}
	}

	var created *Profile
	if best == nil || bestScore < AdoptThreshold {
		created = a.synthesizeLocked(r)
		best = created
	}
	chosen := best.Clone()
	switched := a.switchLocked(chosen.Name)
	a.mu.Unlock()

	if created != nil {
		a.logger.Info("profile synthesized",
			"profile", chosen.Name,
			"requirement_id", r.ID,
			"best_score", bestScore,
			"min_tier", chosen.MinTier,
		)
		a.publish(events.Event{Type: events.EventProfileSynthesized, Payload: chosen.Name})
	}
	a.announce(switched)
	return chosen
}

// synthesizeLocked builds a persona from r's tags. Every listed tag carries
// the same raw weight, so after scaling by the maximum each weighs 1.0.
func (a *Adapter) synthesizeLocked(r requirement.Profile) *Profile {
	tags := provider.NormalizeTags(r.RequiredTags)
	weights := make(map[string]float64, len(tags))
	for _, t := range tags {
		weights[t] = 1.0
	}

	for {
		a.synthesized++
		name := fmt.Sprintf("adaptive-%s-%d", r.Category, a.synthesized)
		p := Profile{
			Name:             name,
			Weights:          weights,
			MinTier:          r.RequiredTier,
			ComplianceSealed: r.Compliance,
			Synthesized:      true,
		}
		if err := a.registerLocked(p); err == nil {
			return a.profiles[name]
		}
	}
}

type switchEvent struct {
	from, to string
	count    uint64
}

// switchLocked records a change of active persona. It returns nil when name
// is already active.
func (a *Adapter) switchLocked(name string) *switchEvent {
	if a.active == name {
		return nil
	}
	ev := &switchEvent{from: a.active, to: name}
	a.active = name
	a.switches++
	ev.count = a.switches
	return ev
}

func (a *Adapter) announce(ev *switchEvent) {
	if ev == nil {
		return
	}
	a.logger.Info("profile switched", "from", ev.from, "to", ev.to, "switches", ev.count)
	a.publish(events.Event{
		Type:    events.EventProfileSwitched,
		Payload: events.ProfileSwitchedPayload{From: ev.from, To: ev.to, Switches: ev.count},
	})
}

func (a *Adapter) publish(e events.Event) {
	if err := a.publisher.Publish(context.Background(), e); err != nil {
		a.logger.Debug("event not published", "event_type", e.Type, "error", err)
	}
}
