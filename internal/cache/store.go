// Package cache persists catalog snapshots and favorites in a key-value store.
package cache

import "context"

// Logical keys, each holding a JSON-serialized array
const (
	KeyFavorites  = "favorites"
	KeyCategories = "persistedCategories"
	KeyProducts   = "persistedProducts"
)

// Store is a flat string key-value store. Get reports found=false for a
// missing key; that is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
