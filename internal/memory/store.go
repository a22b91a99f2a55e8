package memory

import (
	"context"
)

// SearchOptions controls a backend search call.
type SearchOptions struct {
	TopK       int
	Threshold  float64
	ExcludeIDs []string
	Filters    map[string]string
}

// Store is the storage backend consumed by the retrieval engines.
// Implementations own persistence, indexing, and embeddings; the
// retrieval core treats returned entries as read-only.
//
// All methods may block on I/O and must honor ctx cancellation. GetByID
// returns (nil, nil) when the entry does not exist.
type Store interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]ScoredEntry, error)
	GetByID(ctx context.Context, id string) (*Entry, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Entry, error)
	GetRelations(ctx context.Context, entryID string) ([]Relation, error)
	SearchByTimeRange(ctx context.Context, tr TimeRange) ([]*Entry, error)
	SearchByType(ctx context.Context, types []Type, query string, limit int) ([]*Entry, error)
	SearchByTags(ctx context.Context, tags []string, limit int) ([]*Entry, error)
}
