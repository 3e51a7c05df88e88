// Package search pushes item names and contents into the external search
// index. Indexing is a fire-and-forget side effect of create/update; the
// search read path (fuzzy matching, ranking) lives entirely outside this
// core.
package search

import (
	"context"

	"github.com/google/uuid"
)

// Indexer is the write-side boundary of the search index.
type Indexer interface {
	IndexName(ctx context.Context, itemID uuid.UUID, groupIDs []uuid.UUID, name string)
	IndexContent(ctx context.Context, itemID uuid.UUID, groupIDs []uuid.UUID, text string)
}

// NopIndexer is used when no search backend is configured.
type NopIndexer struct{}

func (NopIndexer) IndexName(context.Context, uuid.UUID, []uuid.UUID, string)    {}
func (NopIndexer) IndexContent(context.Context, uuid.UUID, []uuid.UUID, string) {}
