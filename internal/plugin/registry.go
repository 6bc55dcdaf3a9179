package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrAggregatorNotFound = errors.New("aggregator not found")
	ErrSignalNotFound     = errors.New("signal model not found")
	ErrMechanismNotFound  = errors.New("mechanism not found")
)

// Factories construct a strategy from its config parameters. A factory
// validates and defaults its own parameters so resolution failures and
// parameter errors surface before the first round runs.
type (
	AggregatorFactory func(p Params) (Aggregator, error)
	SignalFactory     func(p Params) (SignalModel, error)
	MechanismFactory  func(p Params) (Mechanism, error)
)

// Registry is an explicit instance owning the three name->factory
// tables. Construct one per composition root; there is no package-wide
// registry.
type Registry struct {
	mu          sync.RWMutex
	aggregators map[string]AggregatorFactory
	signals     map[string]SignalFactory
	mechanisms  map[string]MechanismFactory
	defaults    func(*Registry)
	seeded      bool
}

type RegistryOption func(*Registry)

// WithDefaults installs a hook that seeds the built-in strategy
// collections. The hook runs at most once, triggered by the first
// lookup or listing, so registrations made earlier win over built-ins
// seeded with override=false.
func WithDefaults(seed func(*Registry)) RegistryOption {
	return func(r *Registry) {
		r.defaults = seed
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		aggregators: make(map[string]AggregatorFactory),
		signals:     make(map[string]SignalFactory),
		mechanisms:  make(map[string]MechanismFactory),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterAggregator inserts or overwrites unconditionally.
func (r *Registry) RegisterAggregator(name string, f AggregatorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregators[name] = f
}

func (r *Registry) RegisterSignal(name string, f SignalFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[name] = f
}

func (r *Registry) RegisterMechanism(name string, f MechanismFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mechanisms[name] = f
}

// SeedAggregators bulk-inserts entries. With override=false existing
// entries win, and nil factories are placeholders to skip.
func (r *Registry) SeedAggregators(entries map[string]AggregatorFactory, override bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, f := range entries {
		if f == nil {
			continue
		}
		if _, exists := r.aggregators[name]; exists && !override {
			continue
		}
		r.aggregators[name] = f
	}
}

func (r *Registry) SeedSignals(entries map[string]SignalFactory, override bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, f := range entries {
		if f == nil {
			continue
		}
		if _, exists := r.signals[name]; exists && !override {
			continue
		}
		r.signals[name] = f
	}
}

func (r *Registry) SeedMechanisms(entries map[string]MechanismFactory, override bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, f := range entries {
		if f == nil {
			continue
		}
		if _, exists := r.mechanisms[name]; exists && !override {
			continue
		}
		r.mechanisms[name] = f
	}
}

// NewAggregator resolves name and constructs the aggregator with the
// given parameters. Unknown names fail with ErrAggregatorNotFound and
// the sorted list of known names, after the defaults hook has had its
// one chance to run.
func (r *Registry) NewAggregator(name string, p Params) (Aggregator, error) {
	f := r.lookupAggregator(name)
	if f == nil {
		r.ensureDefaults()
		f = r.lookupAggregator(name)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrAggregatorNotFound, name, knownList(r.Aggregators()))
	}
	return f(p)
}

func (r *Registry) NewSignalModel(name string, p Params) (SignalModel, error) {
	f := r.lookupSignal(name)
	if f == nil {
		r.ensureDefaults()
		f = r.lookupSignal(name)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrSignalNotFound, name, knownList(r.Signals()))
	}
	return f(p)
}

func (r *Registry) NewMechanism(name string, p Params) (Mechanism, error) {
	f := r.lookupMechanism(name)
	if f == nil {
		r.ensureDefaults()
		f = r.lookupMechanism(name)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrMechanismNotFound, name, knownList(r.Mechanisms()))
	}
	return f(p)
}

// Aggregators returns the sorted known aggregator names, built-ins
// included.
func (r *Registry) Aggregators() []string {
	r.ensureDefaults()
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.aggregators))
	for name := range r.aggregators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Signals() []string {
	r.ensureDefaults()
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.signals))
	for name := range r.signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Mechanisms() []string {
	r.ensureDefaults()
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.mechanisms))
	for name := range r.mechanisms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookupAggregator(name string) AggregatorFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aggregators[name]
}

func (r *Registry) lookupSignal(name string) SignalFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signals[name]
}

func (r *Registry) lookupMechanism(name string) MechanismFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mechanisms[name]
}

func (r *Registry) ensureDefaults() {
	r.mu.Lock()
	if r.seeded || r.defaults == nil {
		r.mu.Unlock()
		return
	}
	r.seeded = true
	seed := r.defaults
	r.mu.Unlock()
	seed(r)
}

func knownList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
