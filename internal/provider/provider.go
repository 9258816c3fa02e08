// Package provider describes metadata providers: the Provider contract
// implementations satisfy, the static Descriptor each kind registers, and the
// read-only Registry built once at startup.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmcdole/mediacenter/internal/domain"
)

// Provider fetches or computes part of an item's metadata.
//
// Constraints:
//   - the pipeline hands every provider a private working copy via SetItem;
//     providers mutate only that copy
//   - NeedsRefresh must not mutate the item
//   - state returned by MarshalState is cached per item by the repository
type Provider interface {
	Kind() string
	Item() *domain.Item
	SetItem(item *domain.Item)
	NeedsRefresh(ctx context.Context) (bool, error)
	Fetch(ctx context.Context) error

	// ResetState clears the persisted working state.
	ResetState()
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// PreFetcher is implemented by providers that need a hook right before Fetch.
type PreFetcher interface {
	BeforeFetch(ctx context.Context, opts domain.RefreshOptions) error
}

// Base holds the working item; embed it in provider implementations.
type Base struct {
	item *domain.Item
}

func (b *Base) Item() *domain.Item        { return b.item }
func (b *Base) SetItem(item *domain.Item) { b.item = item }

// Stateful stores a provider's persisted working state as JSON. Embed it with
// the provider's own state struct as T.
type Stateful[T any] struct {
	State T
}

func (s *Stateful[T]) ResetState() {
	var zero T
	s.State = zero
}

func (s *Stateful[T]) MarshalState() ([]byte, error) {
	return json.Marshal(s.State)
}

func (s *Stateful[T]) UnmarshalState(data []byte) error {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode provider state: %w", err)
		}
	}
	s.State = v
	return nil
}
