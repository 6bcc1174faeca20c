package tool

import (
	"sort"

	"github.com/pkg/errors"
)

// Registry is the name -> Tool lookup of §4.2, grounded on the
// teacher's pkg/tools/tools.go toolRegistry map. Immutable after
// construction (DESIGN NOTES §9: "tools must not share mutable state").
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry builds an immutable registry from the given tools,
// preserving caller-supplied order for ForState (Names is sorted instead).
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.byName[t.Name()]; exists {
			continue
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Lookup returns the named tool, or an error if unknown.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, errors.Errorf("unknown tool: %s", name)
	}
	return t, nil
}

// Validate checks that every name is registered.
func (r *Registry) Validate(names []string) error {
	for _, n := range names {
		if _, err := r.Lookup(n); err != nil {
			return err
		}
	}
	return nil
}

// ForState returns the tools available given state, filtering out any
// AvailableTool that reports false (§6.3's optional available()),
// in registration order.
func (r *Registry) ForState(state State) []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		if av, ok := t.(AvailableTool); ok && !av.Available(state) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Names returns every registered tool name, sorted, for diagnostics (the `/tools` REPL command).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
