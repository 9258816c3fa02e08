package provider

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/mediacenter/internal/domain"
)

// Registry is the read-only set of provider descriptors, kept in
// registration order.
type Registry struct {
	descs  []Descriptor
	byKind map[string]int
}

// NewRegistry validates and freezes descs. Any error here is a fatal
// configuration error.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		descs:  make([]Descriptor, 0, len(descs)),
		byKind: make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		kind := strings.ToLower(strings.TrimSpace(d.Kind))
		switch {
		case kind == "":
			return nil, fmt.Errorf("%w: provider kind must not be empty", domain.ErrInvalidConfig)
		case d.New == nil:
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrInvalidConfig, ErrNoFactory, kind)
		case d.Priority != nil && *d.Priority < 0:
			return nil, fmt.Errorf("%w: provider %s has negative priority %d", domain.ErrInvalidConfig, kind, *d.Priority)
		case d.Priority != nil && *d.Priority > LowestPriority:
			return nil, fmt.Errorf("%w: provider %s priority %d exceeds %d", domain.ErrInvalidConfig, kind, *d.Priority, LowestPriority)
		case len(d.SupportedTypes) == 0:
			return nil, fmt.Errorf("%w: provider %s supports no item kinds", domain.ErrInvalidConfig, kind)
		}
		if _, dup := r.byKind[kind]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %q", domain.ErrInvalidConfig, kind)
		}
		c := d.clone()
		c.Kind = kind
		r.byKind[kind] = len(r.descs)
		r.descs = append(r.descs, c)
	}
	return r, nil
}

// All returns the descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	for i, d := range r.descs {
		out[i] = d.clone()
	}
	return out
}

// Sorted returns the descriptors by ascending Order; ties keep registration
// order.
func (r *Registry) Sorted() []Descriptor {
	out := r.All()
	slices.SortStableFunc(out, func(a, b Descriptor) int {
		switch {
		case a.Order() < b.Order():
			return -1
		case a.Order() > b.Order():
			return 1
		default:
			return 0
		}
	})
	return out
}

// Get returns the descriptor for kind.
func (r *Registry) Get(kind string) (Descriptor, bool) {
	i, ok := r.byKind[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs[i].clone(), true
}

// Lookup is Get with an error naming close matches.
func (r *Registry) Lookup(kind string) (Descriptor, error) {
	if d, ok := r.Get(kind); ok {
		return d, nil
	}
	if s := r.Suggest(kind); len(s) > 0 {
		return Descriptor{}, fmt.Errorf("%w: %q (did you mean %s?)", domain.ErrProviderNotFound, kind, strings.Join(s, ", "))
	}
	return Descriptor{}, fmt.Errorf("%w: %q", domain.ErrProviderNotFound, kind)
}

// Suggest returns registered kinds that fuzzily match pattern, best first.
func (r *Registry) Suggest(pattern string) []string {
	kinds := make([]string, len(r.descs))
	for i, d := range r.descs {
		kinds[i] = d.Kind
	}
	matches := fuzzy.Find(strings.ToLower(strings.TrimSpace(pattern)), kinds)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int { return len(r.descs) }
