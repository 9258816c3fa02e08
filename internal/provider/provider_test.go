package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/mediacenter/internal/domain"
)

type stubState struct {
	Hash  string `json:"hash"`
	Count int    `json:"count"`
}

type stubProvider struct {
	Base
	Stateful[stubState]
	kind string
}

func (s *stubProvider) Kind() string                                  { return s.kind }
func (s *stubProvider) NeedsRefresh(ctx context.Context) (bool, error) { return true, nil }
func (s *stubProvider) Fetch(ctx context.Context) error                { return nil }

func stubDescriptor(kind string, prio *int, slow, internet bool, types ...TypeSupport) Descriptor {
	if len(types) == 0 {
		types = []TypeSupport{{Kind: domain.KindItem, IncludeSubtypes: true}}
	}
	return Descriptor{
		Kind:             kind,
		Slow:             slow,
		RequiresInternet: internet,
		Priority:         prio,
		SupportedTypes:   types,
		New:              func() Provider { return &stubProvider{kind: kind} },
	}
}

func TestOrderTiers(t *testing.T) {
	local := stubDescriptor("local", Priority(10), false, false)
	internet := stubDescriptor("internet", Priority(0), false, true)
	slow := stubDescriptor("slow", Priority(5), true, false)
	both := stubDescriptor("both", Priority(0), true, true)
	unset := stubDescriptor("unset", nil, false, false)

	assert.Equal(t, int64(10), local.Order())
	assert.Equal(t, TierWeight, internet.Order())
	assert.Equal(t, 2*TierWeight+5, slow.Order())
	assert.Equal(t, 3*TierWeight, both.Order())
	assert.Equal(t, int64(LowestPriority), unset.Order())

	assert.Less(t, unset.Order(), internet.Order())
	assert.Less(t, internet.Order(), slow.Order())
	assert.Less(t, slow.Order(), both.Order())
}

func TestSupports(t *testing.T) {
	exact := stubDescriptor("exact", nil, false, false, TypeSupport{Kind: domain.KindVideo})
	sub := stubDescriptor("sub", nil, false, false, TypeSupport{Kind: domain.KindVideo, IncludeSubtypes: true})
	multi := stubDescriptor("multi", nil, false, false,
		TypeSupport{Kind: domain.KindMovie},
		TypeSupport{Kind: domain.KindSeries})

	movie := domain.NewItem(domain.KindMovie, "/m/a.mkv", "a")
	video := domain.NewItem(domain.KindVideo, "/m/b.mkv", "b")
	series := domain.NewItem(domain.KindSeries, "/tv/s", "s")

	assert.False(t, exact.Supports(movie))
	assert.True(t, exact.Supports(video))
	assert.True(t, sub.Supports(movie))
	assert.True(t, sub.Supports(video))
	assert.False(t, sub.Supports(series))
	assert.True(t, multi.Supports(movie))
	assert.True(t, multi.Supports(series))
	assert.False(t, multi.Supports(video))
	assert.False(t, multi.Supports(nil))
}

func TestConstruct(t *testing.T) {
	d := stubDescriptor("stub", nil, false, false)
	p, err := d.Construct()
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Kind())

	_, err = Descriptor{Kind: "empty"}.Construct()
	assert.ErrorIs(t, err, ErrNoFactory)

	nilFactory := Descriptor{Kind: "nil", New: func() Provider { return nil }}
	_, err = nilFactory.Construct()
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestStateRoundTrip(t *testing.T) {
	p := &stubProvider{kind: "stub"}
	p.State = stubState{Hash: "abc", Count: 2}

	data, err := p.MarshalState()
	require.NoError(t, err)

	q := &stubProvider{kind: "stub"}
	require.NoError(t, q.UnmarshalState(data))
	assert.Equal(t, p.State, q.State)

	q.ResetState()
	assert.Equal(t, stubState{}, q.State)

	require.NoError(t, q.UnmarshalState(nil))
	assert.Equal(t, stubState{}, q.State)
	assert.Error(t, q.UnmarshalState([]byte("{")))
}

func TestRegistryValidation(t *testing.T) {
	tooLow := LowestPriority
	tooLow++
	tests := []struct {
		name  string
		descs []Descriptor
	}{
		{"empty kind", []Descriptor{stubDescriptor("  ", nil, false, false)}},
		{"nil factory", []Descriptor{{Kind: "x", SupportedTypes: []TypeSupport{{Kind: domain.KindItem}}}}},
		{"negative priority", []Descriptor{stubDescriptor("x", Priority(-1), false, false)}},
		{"priority past lowest", []Descriptor{stubDescriptor("x", Priority(tooLow), false, false)}},
		{"no types", []Descriptor{{Kind: "x", New: func() Provider { return nil }}}},
		{"duplicate", []Descriptor{stubDescriptor("x", nil, false, false), stubDescriptor("X", nil, false, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.descs...)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestRegistryAcceptsLowestPriority(t *testing.T) {
	reg, err := NewRegistry(
		stubDescriptor("local.last", Priority(LowestPriority), false, false),
		stubDescriptor("slow.first", Priority(0), true, false),
	)
	require.NoError(t, err)

	sorted := reg.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "local.last", sorted[0].Kind)
	assert.Less(t, sorted[0].Order(), sorted[1].Order())
}

func TestRegistrySortedIsStable(t *testing.T) {
	reg, err := NewRegistry(
		stubDescriptor("web", Priority(1), false, true),
		stubDescriptor("scan", Priority(0), true, false),
		stubDescriptor("b", Priority(10), false, false),
		stubDescriptor("a", Priority(10), false, false),
		stubDescriptor("first", Priority(1), false, false),
	)
	require.NoError(t, err)

	var all, sorted []string
	for _, d := range reg.All() {
		all = append(all, d.Kind)
	}
	for _, d := range reg.Sorted() {
		sorted = append(sorted, d.Kind)
	}
	assert.Equal(t, []string{"web", "scan", "b", "a", "first"}, all)
	assert.Equal(t, []string{"first", "b", "a", "web", "scan"}, sorted)
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(
		stubDescriptor("local.filename", Priority(10), false, false),
		stubDescriptor("local.nfo", Priority(15), false, false),
		stubDescriptor("mediainfo", Priority(5), true, false),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	d, ok := reg.Get(" Local.NFO ")
	require.True(t, ok)
	assert.Equal(t, "local.nfo", d.Kind)

	_, err = reg.Lookup("lcnfo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
	assert.Contains(t, err.Error(), "local.nfo")

	_, err = reg.Lookup("zzz")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.Empty(t, reg.Suggest("zzz"))
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg, err := NewRegistry(stubDescriptor("x", Priority(3), false, false))
	require.NoError(t, err)

	d, _ := reg.Get("x")
	*d.Priority = 99
	d.SupportedTypes[0].Kind = domain.KindMovie

	again, _ := reg.Get("x")
	assert.Equal(t, 3, *again.Priority)
	assert.Equal(t, domain.KindItem, again.SupportedTypes[0].Kind)
}
