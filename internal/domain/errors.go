package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrDrinkNotFound indicates no drink with the requested id exists in the catalog
	ErrDrinkNotFound = errors.New("drink not found")

	// ErrInvalidCatalog indicates the catalog data failed validation
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrEmptyCatalog indicates the catalog loaded but contains no drinks
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrPersistFailed indicates the favorites set could not be written to the store
	ErrPersistFailed = errors.New("failed to persist favorites")

	// ErrInstallFailed indicates the static asset pre-cache could not be completed
	ErrInstallFailed = errors.New("install failed")

	// ErrNotInstalled indicates an operation requires an installed proxy version
	ErrNotInstalled = errors.New("proxy is not installed")

	// ErrUnknownMessage indicates the proxy received a message type it does not handle
	ErrUnknownMessage = errors.New("unknown message type")
)
