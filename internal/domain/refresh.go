package domain

import "strings"

// RefreshOptions are independently combinable refresh flags.
type RefreshOptions int

const (
	RefreshDefault  RefreshOptions = 0
	RefreshFastOnly RefreshOptions = 1 << (iota - 1)
	RefreshForce
)

// Has reports whether all bits of flag are set.
func (o RefreshOptions) Has(flag RefreshOptions) bool {
	return flag != 0 && o&flag == flag
}

func (o RefreshOptions) String() string {
	if o == RefreshDefault {
		return "default"
	}
	var parts []string
	if o.Has(RefreshFastOnly) {
		parts = append(parts, "fast-only")
	}
	if o.Has(RefreshForce) {
		parts = append(parts, "force")
	}
	return strings.Join(parts, "|")
}
