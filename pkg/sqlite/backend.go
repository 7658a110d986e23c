// Package sqlite provides the public API for the SQLite source chain
// backend. It exposes the factory while keeping implementation details
// internal.
package sqlite

import (
	"github.com/mesh-intelligence/sourcechain/internal/sqlite"
)

// Backend is the SQLite store. Besides types.Store it serves chain walks,
// link queries, and raw query statements.
type Backend = sqlite.Backend

// WalkResult is the outcome of Backend.Walk.
type WalkResult = sqlite.WalkResult

// Stats is the outcome of Backend.Stats.
type Stats = sqlite.Stats

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".sourcechain-db",
//	})
//	defer backend.Detach()
func NewBackend() *Backend {
	return sqlite.NewBackend()
}
