// Package registry holds the configured strategy table and the failure
// boundary around strategy execution.
package registry

import (
	"fmt"

	"github.com/wonny/picker/internal/strategy"
)

// Descriptor is the configured identity of one registered strategy.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Weight      float64         `json:"weight"`
	Params      strategy.Params `json:"params,omitempty"`
}

// Override adjusts one registered descriptor during Configure. Nil fields
// keep the registered value; Params are merged over the defaults.
type Override struct {
	Name    string
	Enabled *bool
	Weight  *float64
	Params  strategy.Params
}

// Registry maps strategy names to implementations and descriptors. It is
// populated at startup and read-only afterwards, so scans may share one
// instance across goroutines.
type Registry struct {
	order []string
	impls map[string]strategy.Strategy
	descs map[string]*Descriptor
}

// New builds a registry holding the built-in strategy table. Every
// built-in starts enabled with weight 1.
func New() *Registry {
	r := &Registry{
		impls: make(map[string]strategy.Strategy),
		descs: make(map[string]*Descriptor),
	}
	for _, impl := range []strategy.Strategy{
		strategy.MATrend{},
		strategy.Breakout{},
		strategy.OversoldRebound{},
		strategy.BottomAccumulation{},
	} {
		// built-in names never collide
		_ = r.Register(impl)
	}
	return r
}

// Register adds a strategy with its contract defaults.
func (r *Registry) Register(impl strategy.Strategy) error {
	name := impl.Name()
	if _, dup := r.impls[name]; dup {
		return fmt.Errorf("strategy already registered: %s", name)
	}
	r.impls[name] = impl
	r.descs[name] = &Descriptor{
		Name:        name,
		Description: impl.Description(),
		Enabled:     true,
		Weight:      1.0,
		Params:      impl.DefaultParams(),
	}
	r.order = append(r.order, name)
	return nil
}

// Configure applies descriptor overrides and moves the configured names to
// the front of the declaration order, keeping their configured sequence.
// Unconfigured strategies follow in registration order.
func (r *Registry) Configure(overrides []Override) error {
	for _, o := range overrides {
		d, ok := r.descs[o.Name]
		if !ok {
			return fmt.Errorf("strategy not found: %s", o.Name)
		}
		if o.Enabled != nil {
			d.Enabled = *o.Enabled
		}
		if o.Weight != nil {
			d.Weight = *o.Weight
		}
		if len(o.Params) > 0 {
			d.Params = d.Params.Merge(o.Params)
		}
	}

	seen := make(map[string]bool, len(overrides))
	order := make([]string, 0, len(r.order))
	for _, o := range overrides {
		if !seen[o.Name] {
			seen[o.Name] = true
			order = append(order, o.Name)
		}
	}
	for _, name := range r.order {
		if !seen[name] {
			order = append(order, name)
		}
	}
	r.order = order
	return nil
}

// Descriptors returns every descriptor in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.snapshot(name))
	}
	return out
}

// Enabled returns the enabled descriptors in declaration order.
func (r *Registry) Enabled() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		if r.descs[name].Enabled {
			out = append(out, r.snapshot(name))
		}
	}
	return out
}

// Describe returns the descriptor for one strategy.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	if _, ok := r.descs[name]; !ok {
		return Descriptor{}, false
	}
	return r.snapshot(name), true
}

// Execute evaluates one strategy against the view. Explicit params replace
// the descriptor params entirely; nil means use the descriptor's. Panics
// inside the strategy are converted into a failed result so one broken
// rule never takes down the run.
func (r *Registry) Execute(name string, v *strategy.View, params strategy.Params) (res strategy.Result) {
	res = strategy.Result{StrategyName: name}

	impl, ok := r.impls[name]
	if !ok {
		res.Message = fmt.Sprintf("strategy not found: %s", name)
		return res
	}
	if params == nil {
		params = r.descs[name].Params
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = strategy.Result{
				StrategyName: name,
				Message:      fmt.Sprintf("execution error: %v", rec),
			}
		}
	}()

	if impl.Check(v, params) {
		res.Passed = true
		res.Score = impl.Score(v, params)
		res.Signals = map[string]float64{
			strategy.SignalStopLoss:   impl.StopLoss(params),
			strategy.SignalTakeProfit: impl.TakeProfit(params),
		}
	}
	return res
}

// ExecuteAll runs the named strategies in order, defaulting to the enabled
// set in declaration order. Every requested strategy yields exactly one
// result regardless of individual failures.
func (r *Registry) ExecuteAll(v *strategy.View, names ...string) []strategy.Result {
	if len(names) == 0 {
		for _, d := range r.Enabled() {
			names = append(names, d.Name)
		}
	}
	results := make([]strategy.Result, 0, len(names))
	for _, name := range names {
		results = append(results, r.Execute(name, v, nil))
	}
	return results
}

func (r *Registry) snapshot(name string) Descriptor {
	d := *r.descs[name]
	d.Params = d.Params.Merge(nil)
	return d
}
