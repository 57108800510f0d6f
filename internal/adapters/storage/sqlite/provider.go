// Package sqlite provides the SQLite fault store adapter.
package sqlite

import (
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/storage/sqldb"
)

// Provider implements ports.FaultStore using SQLite.
// It wraps the sqldb implementation.
type Provider struct {
	*sqldb.Store
}

// NewProvider opens (creating if needed) the SQLite database at path.
// ":memory:" selects a private in-memory database.
func NewProvider(path string) (*Provider, error) {
	store, err := sqldb.NewSQLite(path)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Store: store,
	}, nil
}

// Ensure Provider implements ports.FaultStore at compile time.
var _ ports.FaultStore = (*Provider)(nil)
