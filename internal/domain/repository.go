package domain

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// ProviderState is the persisted working state of one provider for one item.
type ProviderState struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Repository is the persistence contract the refresh pipeline needs.
type Repository interface {
	// RetrieveProviders returns the cached provider state for an item.
	// ok is false when provider info was never cached for the item.
	RetrieveProviders(ctx context.Context, id uuid.UUID) (states []ProviderState, ok bool, err error)

	// SaveProviders replaces the cached provider state for an item.
	SaveProviders(ctx context.Context, id uuid.UUID, states []ProviderState) error

	// SaveItem persists the item.
	SaveItem(ctx context.Context, item *Item) error
}

// ItemStore extends Repository with the reads used by the CLI.
type ItemStore interface {
	Repository

	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	FindByPath(ctx context.Context, path string) (*Item, error)
	ListItems(ctx context.Context, filter string) ([]*Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	Close() error
}
