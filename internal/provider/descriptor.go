package provider

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmcdole/mediacenter/internal/domain"
)

// TierWeight separates the local, internet and slow ordering tiers. It is one
// above the largest priority so tiers never overlap.
const TierWeight = int64(math.MaxInt32) + 1

// LowestPriority is used when a descriptor declares no priority.
const LowestPriority = math.MaxInt32

// ErrNoFactory indicates a descriptor cannot construct its provider.
var ErrNoFactory = errors.New("provider has no constructor")

// TypeSupport declares one item kind a provider handles.
type TypeSupport struct {
	Kind            domain.ItemKind
	IncludeSubtypes bool
}

// Descriptor is the static declaration of one provider kind.
type Descriptor struct {
	Kind             string
	Slow             bool
	RequiresInternet bool
	Priority         *int // nil = lowest priority
	SupportedTypes   []TypeSupport
	New              func() Provider
}

// Priority returns a pointer for Descriptor.Priority literals.
func Priority(p int) *int { return &p }

// EffectivePriority resolves an absent priority to LowestPriority.
func (d Descriptor) EffectivePriority() int {
	if d.Priority == nil {
		return LowestPriority
	}
	return *d.Priority
}

// Order is the execution sort key: priority within a tier, local before
// internet before slow. Slow internet providers land in a fourth tier.
func (d Descriptor) Order() int64 {
	order := int64(d.EffectivePriority())
	if d.Slow {
		order += 2 * TierWeight
	}
	if d.RequiresInternet {
		order += TierWeight
	}
	return order
}

// SupportsKind reports whether any declared entry matches kind. Entries
// without subtypes require an exact match.
func (d Descriptor) SupportsKind(kind domain.ItemKind) bool {
	for _, st := range d.SupportedTypes {
		if st.IncludeSubtypes {
			if kind.IsA(st.Kind) {
				return true
			}
		} else if kind == st.Kind {
			return true
		}
	}
	return false
}

// Supports reports whether the provider applies to item.
func (d Descriptor) Supports(item *domain.Item) bool {
	return item != nil && d.SupportsKind(item.Kind)
}

// Construct creates a new provider instance.
func (d Descriptor) Construct() (Provider, error) {
	if d.New == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFactory, d.Kind)
	}
	p := d.New()
	if p == nil {
		return nil, fmt.Errorf("%w: %s returned nil", ErrNoFactory, d.Kind)
	}
	return p, nil
}

// clone copies d so registered descriptors cannot be mutated by callers.
func (d Descriptor) clone() Descriptor {
	c := d
	if d.Priority != nil {
		c.Priority = Priority(*d.Priority)
	}
	c.SupportedTypes = append([]TypeSupport(nil), d.SupportedTypes...)
	return c
}
