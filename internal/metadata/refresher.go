// Package metadata runs the provider pipeline that refreshes an item's
// metadata and persists the outcome.
package metadata

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/mmcdole/mediacenter/internal/domain"
	applog "github.com/mmcdole/mediacenter/internal/log"
	"github.com/mmcdole/mediacenter/internal/provider"
)

// ErrProviderPanic wraps a panic recovered from a provider call.
var ErrProviderPanic = errors.New("provider panicked")

// ErrNilItem is returned when Refresh is handed no item.
var ErrNilItem = errors.New("no item to refresh")

// Options configure a Refresher.
type Options struct {
	AllowInternetProviders bool
}

// Refresher orchestrates the providers for one item at a time. It holds no
// per-item state; callers serialize refreshes of the same item.
type Refresher struct {
	registry *provider.Registry
	repo     domain.Repository
	opts     Options
	logger   *slog.Logger
}

// NewRefresher creates a refresher over the registered providers.
func NewRefresher(registry *provider.Registry, repo domain.Repository, opts Options, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		registry: registry,
		repo:     repo,
		opts:     opts,
		logger:   logger.With(applog.KeyCategory, "metadata"),
	}
}

// binding pairs a descriptor with its provider instance for one pass.
type binding struct {
	desc     provider.Descriptor
	provider provider.Provider
}

func (b binding) skipped(opts domain.RefreshOptions) bool {
	return opts.Has(domain.RefreshFastOnly) && (b.desc.Slow || b.desc.RequiresInternet)
}

// Refresh runs every applicable provider against item and reports whether
// any of them produced new metadata. Provider failures are logged and
// skipped; only repository failures are returned.
func (r *Refresher) Refresh(ctx context.Context, item *domain.Item, opts domain.RefreshOptions) (bool, error) {
	if item == nil {
		return false, ErrNilItem
	}
	force := opts.Has(domain.RefreshForce)
	logger := r.logger.With("item", item.ID, "path", item.Path)

	if force {
		Clear(item)
	}

	cached, hasCache, err := r.repo.RetrieveProviders(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("failed to retrieve provider state for %s: %w", item.ID, err)
	}
	bindings := r.bind(item, cached, logger)

	work := item.Clone()
	for _, b := range bindings {
		b.provider.SetItem(work)
	}

	proceed := force
	if !force {
		for _, b := range bindings {
			if b.skipped(opts) {
				continue
			}
			if r.needsRefresh(ctx, b, logger) {
				proceed = true
				break
			}
		}
	}

	changed := false
	if proceed {
		if !force {
			Clear(item)
			Clear(work)
			for _, b := range bindings {
				b.provider.ResetState()
			}
		}
		changed = r.execute(ctx, item, work, bindings, opts, logger)
	}

	if changed || !hasCache {
		states := r.collectStates(bindings, cached, logger)
		if changed {
			if err := r.repo.SaveItem(ctx, item); err != nil {
				return changed, fmt.Errorf("failed to save item %s: %w", item.ID, err)
			}
		}
		if err := r.repo.SaveProviders(ctx, item.ID, states); err != nil {
			return changed, fmt.Errorf("failed to save provider state for %s: %w", item.ID, err)
		}
	}

	logger.Debug("refresh finished", "options", opts.String(), "pass", proceed, "changed", changed)
	return changed, nil
}

// bind resolves the applicable providers in registration order, restoring
// cached state by kind.
func (r *Refresher) bind(item *domain.Item, cached []domain.ProviderState, logger *slog.Logger) []binding {
	stateByKind := make(map[string][]byte, len(cached))
	for _, s := range cached {
		stateByKind[s.Kind] = s.Data
	}

	var bindings []binding
	for _, d := range r.registry.All() {
		if !d.Supports(item) {
			continue
		}
		if d.RequiresInternet && !r.opts.AllowInternetProviders {
			continue
		}
		p, err := d.Construct()
		if err != nil {
			logger.Error("failed to construct provider", "provider", d.Kind, "error", err)
			continue
		}
		if data, ok := stateByKind[d.Kind]; ok {
			if err := p.UnmarshalState(data); err != nil {
				logger.Warn("discarding cached provider state", "provider", d.Kind, "error", err)
				p.ResetState()
			}
		}
		bindings = append(bindings, binding{desc: d, provider: p})
	}
	return bindings
}

// execute runs the pass in ascending Order and merges each successful fetch
// onto the live item.
func (r *Refresher) execute(ctx context.Context, item, work *domain.Item, bindings []binding, opts domain.RefreshOptions, logger *slog.Logger) bool {
	ordered := make([]binding, len(bindings))
	copy(ordered, bindings)
	sortBindings(ordered)

	force := opts.Has(domain.RefreshForce)
	changed := false
	for _, b := range ordered {
		if b.skipped(opts) {
			continue
		}
		if !force && !r.needsRefresh(ctx, b, logger) {
			continue
		}

		// a failed provider's partial writes are rolled back in place
		snap := work.Clone()

		if pf, ok := b.provider.(provider.PreFetcher); ok {
			err := r.safeCall(func() error { return pf.BeforeFetch(ctx, opts) })
			if err != nil {
				*work = *snap
				applog.ReportException(logger, fmt.Sprintf("provider %s pre-fetch failed", b.desc.Kind), err)
				continue
			}
		}

		if err := r.safeCall(func() error { return b.provider.Fetch(ctx) }); err != nil {
			*work = *snap
			applog.ReportException(logger, fmt.Sprintf("provider %s fetch failed", b.desc.Kind), err)
			continue
		}

		Merge(item, work)
		changed = true
		logger.Debug("provider fetched", "provider", b.desc.Kind)
	}
	return changed
}

func sortBindings(bindings []binding) {
	slices.SortStableFunc(bindings, func(a, b binding) int {
		return cmp.Compare(a.desc.Order(), b.desc.Order())
	})
}

// needsRefresh fails open: an error or panic counts as no refresh needed.
func (r *Refresher) needsRefresh(ctx context.Context, b binding, logger *slog.Logger) bool {
	var needs bool
	err := r.safeCall(func() error {
		var err error
		needs, err = b.provider.NeedsRefresh(ctx)
		return err
	})
	if err != nil {
		applog.ReportException(logger, fmt.Sprintf("provider %s refresh check failed", b.desc.Kind), err)
		return false
	}
	return needs
}

func (r *Refresher) safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, at: applog.PanicLocation()}
		}
	}()
	return fn()
}

// panicError carries where a provider panicked so it is reported instead
// of the pipeline frame that recovered it.
type panicError struct {
	value any
	at    applog.Frame
}

func (e *panicError) Error() string { return fmt.Sprintf("%v: %v", ErrProviderPanic, e.value) }
func (e *panicError) Unwrap() error { return ErrProviderPanic }
func (e *panicError) Location() applog.Frame { return e.at }

// collectStates serializes the bound providers' state. Cached entries for
// kinds not bound this pass are carried over unchanged.
func (r *Refresher) collectStates(bindings []binding, cached []domain.ProviderState, logger *slog.Logger) []domain.ProviderState {
	bound := make(map[string]bool, len(bindings))
	states := make([]domain.ProviderState, 0, len(bindings)+len(cached))
	for _, b := range bindings {
		bound[b.desc.Kind] = true
		data, err := b.provider.MarshalState()
		if err != nil {
			logger.Warn("failed to encode provider state", "provider", b.desc.Kind, "error", err)
			continue
		}
		states = append(states, domain.ProviderState{Kind: b.desc.Kind, Data: data})
	}
	for _, s := range cached {
		if !bound[s.Kind] {
			states = append(states, s)
		}
	}
	return states
}

// RefreshAll refreshes items one after another. Failures are logged and
// joined; the remaining items are still refreshed.
func (r *Refresher) RefreshAll(ctx context.Context, items []*domain.Item, opts domain.RefreshOptions) (map[uuid.UUID]bool, error) {
	results := make(map[uuid.UUID]bool, len(items))
	var errs []error
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := r.Refresh(ctx, item, opts)
		if err != nil {
			r.logger.Error("refresh failed", "item", item.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		results[item.ID] = changed
	}
	return results, errors.Join(errs...)
}
