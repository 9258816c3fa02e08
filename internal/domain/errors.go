package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrItemNotFound indicates the requested media item does not exist
	ErrItemNotFound = errors.New("media item not found")

	// ErrProviderNotFound indicates no descriptor is registered for a provider kind
	ErrProviderNotFound = errors.New("metadata provider not registered")

	// ErrInvalidConfig indicates a fatal configuration error detected at startup
	ErrInvalidConfig = errors.New("invalid configuration")
)
