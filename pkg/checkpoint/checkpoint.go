// Package checkpoint persists the block-to-record mapping of a migration so
// that an interrupted run resumes without creating duplicate records.
//
// Entries are keyed by the source block type. Saving is append-only: an
// instance id that already has a record keeps it.
package checkpoint

import "context"

// Store loads and saves mapping entries (instance id to record id).
type Store interface {
	// Load returns the saved entries of a source type, or an empty map.
	Load(ctx context.Context, sourceTypeID string) (map[string]string, error)
	// Save merges entries into the saved ones.
	Save(ctx context.Context, sourceTypeID string, entries map[string]string) error
	// Clear drops every entry of a source type.
	Clear(ctx context.Context, sourceTypeID string) error
}

// merge adds to dst the entries it lacks.
func merge(dst, src map[string]string) int {
	added := 0
	for k, v := range src {
		if _, ok := dst[k]; ok {
			continue
		}
		dst[k] = v
		added++
	}
	return added
}
