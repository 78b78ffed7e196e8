package storage

import (
	"context"
	"errors"

	"scholardigest/internal/article"
)

// ErrCorruptStore marks a primary table that exists but cannot be parsed.
var ErrCorruptStore = errors.New("record store unreadable")

// Table is one physical record store.
type Table interface {
	// Append inserts records whose key is absent and returns the count inserted.
	Append(ctx context.Context, records []article.Record) (int, error)
	// Load returns every stored record with all optional fields present.
	Load(ctx context.Context) ([]article.Record, error)
	// Update applies partial updates by key. Unknown keys are skipped.
	Update(ctx context.Context, updates []article.Update) (UpdateResult, error)
	Close() error
}

// schemaRepairer is implemented by tables that can rewrite a legacy layout.
type schemaRepairer interface {
	Repair(ctx context.Context) (bool, error)
}

// UpdateResult counts the outcome of a batched partial update.
type UpdateResult struct {
	Updated int
	Skipped int
}

// SyncResult counts the outcome of mirroring the primary into the mirror.
type SyncResult struct {
	Records  int
	Inserted int
	Updated  int
}
