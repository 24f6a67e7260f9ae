package feature

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/radcache/internal/model"
)

// Spec describes how one identifier is computed by the extraction engine.
type Spec struct {
	ID    model.FeatureID
	Class string // engine feature class, e.g. "glcm"
	Name  string // engine feature name, e.g. "JointAverage"
}

// ResultKey returns the suffix under which the engine reports this feature,
// "<class>_<name>".
func (s Spec) ResultKey() string {
	return s.Class + "_" + s.Name
}

// Registry is an immutable identifier → Spec table.
type Registry struct {
	specs []Spec
	index map[model.FeatureID]int
}

// NewRegistry builds a registry from specs. Identifiers must be well formed
// and unique.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[model.FeatureID]int, len(specs)),
	}
	for _, s := range specs {
		if !s.ID.Valid() {
			return nil, fmt.Errorf("new registry: malformed identifier %q", s.ID)
		}
		if s.Class == "" || s.Name == "" {
			return nil, fmt.Errorf("new registry: %q has no engine class or name", s.ID)
		}
		if _, dup := r.index[s.ID]; dup {
			return nil, fmt.Errorf("new registry: duplicate identifier %q", s.ID)
		}
		r.index[s.ID] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	specs := make([]Spec, len(builtin))
	for i, row := range builtin {
		specs[i] = Spec{ID: model.FeatureID(row[0]), Class: row[1], Name: row[2]}
	}
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the process-wide registry of built-in features.
func Default() *Registry {
	return defaultRegistry()
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Lookup returns the Spec for id.
func (r *Registry) Lookup(id model.FeatureID) (Spec, bool) {
	i, ok := r.index[id]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Resolve returns the Specs for ids in the same order, or an
// InvalidFeatureError for the first identifier not in the registry.
func (r *Registry) Resolve(ids []model.FeatureID) ([]Spec, error) {
	out := make([]Spec, len(ids))
	for i, id := range ids {
		s, ok := r.Lookup(id)
		if !ok {
			return nil, &InvalidFeatureError{ID: id}
		}
		out[i] = s
	}
	return out, nil
}

// Validate checks that every id is registered.
func (r *Registry) Validate(ids []model.FeatureID) error {
	_, err := r.Resolve(ids)
	return err
}

// IDs returns all identifiers in listing order.
func (r *Registry) IDs() []model.FeatureID {
	out := make([]model.FeatureID, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.ID
	}
	return out
}

// Specs returns a copy of all specs in listing order.
func (r *Registry) Specs() []Spec {
	return append([]Spec(nil), r.specs...)
}

// Classes returns the distinct identifier classes (the part before "/"),
// sorted.
func (r *Registry) Classes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.specs {
		c := s.ID.Class()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ByClass returns the identifiers whose class is class, in listing order.
func (r *Registry) ByClass(class string) []model.FeatureID {
	var out []model.FeatureID
	for _, s := range r.specs {
		if s.ID.Class() == class {
			out = append(out, s.ID)
		}
	}
	return out
}

// Group arranges specs into the per-class feature lists the engine expects.
// Names keep their first-seen order within a class and are not repeated.
func Group(specs []Spec) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[Spec]struct{}, len(specs))
	for _, s := range specs {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out[s.Class] = append(out[s.Class], s.Name)
	}
	return out
}
