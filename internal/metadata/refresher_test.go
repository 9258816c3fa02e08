package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/mediacenter/internal/domain"
	applog "github.com/mmcdole/mediacenter/internal/log"
	"github.com/mmcdole/mediacenter/internal/provider"
)

type fakeRepo struct {
	states        map[uuid.UUID][]domain.ProviderState
	savedItems    []*domain.Item
	providerSaves int
	retrieveErr   error
	saveErr       error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{states: make(map[uuid.UUID][]domain.ProviderState)}
}

func (f *fakeRepo) RetrieveProviders(ctx context.Context, id uuid.UUID) ([]domain.ProviderState, bool, error) {
	if f.retrieveErr != nil {
		return nil, false, f.retrieveErr
	}
	s, ok := f.states[id]
	return s, ok, nil
}

func (f *fakeRepo) SaveProviders(ctx context.Context, id uuid.UUID, states []domain.ProviderState) error {
	f.providerSaves++
	f.states[id] = states
	return nil
}

func (f *fakeRepo) SaveItem(ctx context.Context, item *domain.Item) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedItems = append(f.savedItems, item.Clone())
	return nil
}

type fakeState struct {
	Runs int `json:"runs"`
}

// behavior is shared by every instance a descriptor constructs.
type behavior struct {
	needs      bool
	needsPanic bool
	needsErr   error
	fetch      func(item *domain.Item) error
	before     func(opts domain.RefreshOptions) error
	calls      *[]string
	seen       []*domain.Item
	lastRuns   int
}

type fakeProvider struct {
	provider.Base
	provider.Stateful[fakeState]
	kind string
	b    *behavior
}

func (f *fakeProvider) Kind() string { return f.kind }

func (f *fakeProvider) NeedsRefresh(ctx context.Context) (bool, error) {
	if f.b.needsPanic {
		panic("need check exploded")
	}
	return f.b.needs, f.b.needsErr
}

func (f *fakeProvider) Fetch(ctx context.Context) error {
	f.State.Runs++
	f.b.lastRuns = f.State.Runs
	f.b.seen = append(f.b.seen, f.Item())
	*f.b.calls = append(*f.b.calls, "fetch:"+f.kind)
	if f.b.fetch != nil {
		return f.b.fetch(f.Item())
	}
	return nil
}

type preFetchProvider struct {
	fakeProvider
}

func (p *preFetchProvider) BeforeFetch(ctx context.Context, opts domain.RefreshOptions) error {
	*p.b.calls = append(*p.b.calls, "before:"+p.kind)
	if p.b.before != nil {
		return p.b.before(opts)
	}
	return nil
}

type harness struct {
	calls []string
	descs []provider.Descriptor
}

func (h *harness) add(kind string, prio int, slow, internet bool, b *behavior) *behavior {
	b.calls = &h.calls
	h.descs = append(h.descs, provider.Descriptor{
		Kind:             kind,
		Slow:             slow,
		RequiresInternet: internet,
		Priority:         provider.Priority(prio),
		SupportedTypes:   []provider.TypeSupport{{Kind: domain.KindVideo, IncludeSubtypes: true}},
		New:              func() provider.Provider { return &fakeProvider{kind: kind, b: b} },
	})
	return b
}

func (h *harness) addPreFetch(kind string, prio int, b *behavior) *behavior {
	b.calls = &h.calls
	h.descs = append(h.descs, provider.Descriptor{
		Kind:           kind,
		Slow:           true,
		Priority:       provider.Priority(prio),
		SupportedTypes: []provider.TypeSupport{{Kind: domain.KindVideo, IncludeSubtypes: true}},
		New: func() provider.Provider {
			return &preFetchProvider{fakeProvider{kind: kind, b: b}}
		},
	})
	return b
}

func (h *harness) refresher(t *testing.T, repo domain.Repository, allowInternet bool) *Refresher {
	t.Helper()
	reg, err := provider.NewRegistry(h.descs...)
	require.NoError(t, err)
	return NewRefresher(reg, repo, Options{AllowInternetProviders: allowInternet}, applog.NullLogger())
}

func setTitle(title string) func(*domain.Item) error {
	return func(item *domain.Item) error {
		item.Title = title
		return nil
	}
}

func movie() *domain.Item {
	item := domain.NewItem(domain.KindMovie, "/movies/Heat.mkv", "Heat")
	item.Parent = domain.NewItem(domain.KindFolder, "/movies", "movies")
	return item
}

func TestRefreshNothingNeededSavesProviderStateOnce(t *testing.T) {
	h := &harness{}
	h.add("a", 1, false, false, &behavior{})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)
	item := movie()
	item.Title = "Existing"

	changed, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "Existing", item.Title)
	assert.Empty(t, repo.savedItems)
	assert.Equal(t, 1, repo.providerSaves)
	assert.Empty(t, h.calls)

	// state is cached now, a second idle refresh writes nothing
	changed, err = r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, repo.providerSaves)
}

func TestRefreshMergesAndPersists(t *testing.T) {
	h := &harness{}
	h.add("title", 1, false, false, &behavior{needs: true, fetch: setTitle("Heat")})
	h.add("year", 2, false, false, &behavior{fetch: func(item *domain.Item) error {
		item.Year = 1995
		return nil
	}})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)
	item := movie()
	item.Overview = "stale"

	changed, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Heat", item.Title)
	assert.Empty(t, item.Overview, "a pass clears the live item first")
	assert.Zero(t, item.Year, "providers not needing refresh do not run")

	require.Len(t, repo.savedItems, 1)
	assert.Equal(t, "Heat", repo.savedItems[0].Title)
	assert.Equal(t, 1, repo.providerSaves)

	states := repo.states[item.ID]
	require.Len(t, states, 2)
	assert.Equal(t, "title", states[0].Kind)
	assert.JSONEq(t, `{"runs":1}`, string(states[0].Data))
}

func TestRefreshExecutesInTierOrder(t *testing.T) {
	h := &harness{}
	h.add("slow", 0, true, false, &behavior{needs: true})
	h.add("web", 0, false, true, &behavior{needs: true})
	h.add("local-b", 20, false, false, &behavior{needs: true})
	h.add("local-a", 10, false, false, &behavior{needs: true})
	r := h.refresher(t, newFakeRepo(), true)

	_, err := r.Refresh(context.Background(), movie(), domain.RefreshDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch:local-a", "fetch:local-b", "fetch:web", "fetch:slow"}, h.calls)
}

func TestRefreshFastOnlySkipsSlowAndInternet(t *testing.T) {
	h := &harness{}
	h.add("slow", 0, true, false, &behavior{needs: true})
	h.add("web", 0, false, true, &behavior{needs: true})
	h.add("local", 10, false, false, &behavior{needs: true})
	r := h.refresher(t, newFakeRepo(), true)

	_, err := r.Refresh(context.Background(), movie(), domain.RefreshFastOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch:local"}, h.calls)
}

func TestRefreshFastOnlyIgnoresSlowNeeds(t *testing.T) {
	h := &harness{}
	h.add("slow", 0, true, false, &behavior{needs: true})
	h.add("local", 10, false, false, &behavior{})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)

	changed, err := r.Refresh(context.Background(), movie(), domain.RefreshFastOnly)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, h.calls)
}

func TestRefreshExcludesInternetWhenDisallowed(t *testing.T) {
	h := &harness{}
	h.add("web", 0, false, true, &behavior{needs: true})
	h.add("local", 10, false, false, &behavior{needs: true})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)
	item := movie()

	_, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch:local"}, h.calls)
	require.Len(t, repo.states[item.ID], 1)
	assert.Equal(t, "local", repo.states[item.ID][0].Kind)
}

func TestRefreshForceRunsEverythingAndClears(t *testing.T) {
	h := &harness{}
	h.add("a", 1, false, false, &behavior{fetch: setTitle("Forced")})
	h.add("b", 2, false, false, &behavior{})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)
	item := movie()
	item.Overview = "old"
	item.MediaInfo = &domain.MediaInfo{Container: "avi", ProbedFile: item.Path}

	changed, err := r.Refresh(context.Background(), item, domain.RefreshForce)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"fetch:a", "fetch:b"}, h.calls)
	assert.Equal(t, "Forced", item.Title)
	assert.Empty(t, item.Overview)
	require.NotNil(t, item.MediaInfo)
	assert.Empty(t, item.MediaInfo.Container)
	assert.Equal(t, item.Path, item.MediaInfo.ProbedFile)
}

func TestRefreshFailOpen(t *testing.T) {
	h := &harness{}
	h.add("panicky-check", 1, false, false, &behavior{needsPanic: true})
	h.add("erroring-check", 2, false, false, &behavior{needsErr: errors.New("io")})
	h.add("failing-fetch", 3, false, false, &behavior{needs: true, fetch: func(item *domain.Item) error {
		item.Tagline = "partial write"
		return errors.New("offline")
	}})
	h.add("panicking-fetch", 4, false, false, &behavior{needs: true, fetch: func(*domain.Item) error {
		panic("fetch exploded")
	}})
	h.add("good", 5, false, false, &behavior{needs: true, fetch: setTitle("Heat")})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)
	item := movie()

	changed, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"fetch:failing-fetch", "fetch:panicking-fetch", "fetch:good"}, h.calls)
	assert.Equal(t, "Heat", item.Title)
	assert.Len(t, repo.savedItems, 1)
}

func TestRefreshFailedFetchIsUnchanged(t *testing.T) {
	h := &harness{}
	h.add("bad", 1, false, false, &behavior{needs: true, fetch: func(*domain.Item) error {
		return errors.New("nope")
	}})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)

	changed, err := r.Refresh(context.Background(), movie(), domain.RefreshDefault)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, repo.savedItems)
	assert.Equal(t, 1, repo.providerSaves)
}

func TestRefreshDropsFailedProviderWrites(t *testing.T) {
	h := &harness{}
	h.add("a.failing", 1, false, false, &behavior{needs: true, fetch: func(item *domain.Item) error {
		item.Overview = "half written"
		item.Genres = append(item.Genres, "Crime")
		return errors.New("connection reset")
	}})
	h.add("b.panicking", 2, false, false, &behavior{needs: true, fetch: func(item *domain.Item) error {
		item.Tagline = "never finished"
		panic("index out of range")
	}})
	var sawOverview string
	h.add("c.ok", 3, false, false, &behavior{needs: true, fetch: func(item *domain.Item) error {
		sawOverview = item.Overview
		item.Title = "Heat"
		return nil
	}})
	r := h.refresher(t, newFakeRepo(), false)
	item := movie()

	changed, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Heat", item.Title)
	assert.Empty(t, item.Overview)
	assert.Empty(t, item.Genres)
	assert.Empty(t, item.Tagline)
	assert.Empty(t, sawOverview, "later providers do not see rolled back writes")
}

func TestRefreshReportsPanickingProvider(t *testing.T) {
	h := &harness{}
	h.add("panicking", 1, false, false, &behavior{needs: true, fetch: func(*domain.Item) error {
		panic("fetch exploded")
	}})
	reg, err := provider.NewRegistry(h.descs...)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRefresher(reg, newFakeRepo(), Options{}, logger)

	_, err = r.Refresh(context.Background(), movie(), domain.RefreshDefault)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "TestRefreshReportsPanickingProvider")
	assert.Contains(t, buf.String(), "refresher_test.go:")
	assert.NotContains(t, buf.String(), "(*Refresher).execute")
}

func TestRefreshSharesWorkingCopy(t *testing.T) {
	h := &harness{}
	first := h.add("first", 1, false, false, &behavior{needs: true, fetch: setTitle("Heat")})
	var sawTitle string
	second := h.add("second", 2, false, false, &behavior{needs: true, fetch: func(item *domain.Item) error {
		sawTitle = item.Title
		return nil
	}})
	r := h.refresher(t, newFakeRepo(), false)
	item := movie()

	_, err := r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)

	require.Len(t, first.seen, 1)
	require.Len(t, second.seen, 1)
	assert.Same(t, first.seen[0], second.seen[0])
	assert.NotSame(t, item, first.seen[0])
	assert.Same(t, item.Parent, first.seen[0].Parent)
	assert.Equal(t, "Heat", sawTitle)
}

func TestRefreshRestoresCachedState(t *testing.T) {
	h := &harness{}
	b := h.add("counter", 1, false, false, &behavior{needs: true})
	repo := newFakeRepo()
	item := movie()
	repo.states[item.ID] = []domain.ProviderState{
		{Kind: "counter", Data: json.RawMessage(`{"runs":4}`)},
		{Kind: "retired", Data: json.RawMessage(`{"x":1}`)},
	}
	r := h.refresher(t, repo, false)

	_, err := r.Refresh(context.Background(), item, domain.RefreshForce)
	require.NoError(t, err)
	assert.Equal(t, 5, b.lastRuns, "force keeps cached state")

	states := repo.states[item.ID]
	require.Len(t, states, 2)
	assert.Equal(t, "counter", states[0].Kind)
	assert.JSONEq(t, `{"runs":5}`, string(states[0].Data))
	assert.Equal(t, "retired", states[1].Kind)

	_, err = r.Refresh(context.Background(), item, domain.RefreshDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, b.lastRuns, "a default pass resets state")
}

func TestRefreshCallsBeforeFetch(t *testing.T) {
	h := &harness{}
	var gotOpts domain.RefreshOptions
	h.addPreFetch("scan", 1, &behavior{needs: true, before: func(opts domain.RefreshOptions) error {
		gotOpts = opts
		return nil
	}})
	h.addPreFetch("broken", 2, &behavior{needs: true, before: func(domain.RefreshOptions) error {
		return errors.New("cannot prepare")
	}})
	r := h.refresher(t, newFakeRepo(), false)

	_, err := r.Refresh(context.Background(), movie(), domain.RefreshForce)
	require.NoError(t, err)
	assert.Equal(t, []string{"before:scan", "fetch:scan", "before:broken"}, h.calls)
	assert.Equal(t, domain.RefreshForce, gotOpts)
}

func TestRefreshRepositoryErrors(t *testing.T) {
	h := &harness{}
	h.add("a", 1, false, false, &behavior{needs: true, fetch: setTitle("x")})

	repo := newFakeRepo()
	repo.retrieveErr = errors.New("disk gone")
	_, err := h.refresher(t, repo, false).Refresh(context.Background(), movie(), domain.RefreshDefault)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.retrieveErr)

	repo = newFakeRepo()
	repo.saveErr = errors.New("read only")
	changed, err := h.refresher(t, repo, false).Refresh(context.Background(), movie(), domain.RefreshDefault)
	assert.True(t, changed)
	assert.ErrorIs(t, err, repo.saveErr)
}

func TestRefreshNilItem(t *testing.T) {
	r := (&harness{}).refresher(t, newFakeRepo(), false)
	_, err := r.Refresh(context.Background(), nil, domain.RefreshDefault)
	assert.ErrorIs(t, err, ErrNilItem)
}

func TestRefreshUnsupportedKind(t *testing.T) {
	h := &harness{}
	h.add("video-only", 1, false, false, &behavior{needs: true})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)

	folder := domain.NewItem(domain.KindSeries, "/tv/Show", "Show")
	changed, err := r.Refresh(context.Background(), folder, domain.RefreshDefault)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, h.calls)
	assert.Empty(t, repo.states[folder.ID])
}

func TestRefreshAll(t *testing.T) {
	h := &harness{}
	h.add("a", 1, false, false, &behavior{needs: true, fetch: setTitle("t")})
	repo := newFakeRepo()
	r := h.refresher(t, repo, false)

	items := []*domain.Item{movie(), nil, movie()}
	results, err := r.RefreshAll(context.Background(), items, domain.RefreshDefault)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, results[items[0].ID])
	assert.True(t, results[items[2].ID])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = r.RefreshAll(ctx, items, domain.RefreshDefault)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
