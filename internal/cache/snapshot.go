package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog/browser/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Snapshot is the last persisted categories+products pair
type Snapshot struct {
	Categories []domain.Category
	Products   []domain.Product
}

// SnapshotStore reads and writes catalog snapshots. Keys are written
// independently; a snapshot missing either key is treated as absent.
type SnapshotStore struct {
	store Store
}

func NewSnapshotStore(store Store) *SnapshotStore {
	return &SnapshotStore{store: store}
}

func (s *SnapshotStore) SaveCategories(ctx context.Context, categories []domain.Category) error {
	return s.save(ctx, KeyCategories, categories)
}

func (s *SnapshotStore) SaveProducts(ctx context.Context, products []domain.Product) error {
	return s.save(ctx, KeyProducts, products)
}

// LoadCategories returns the persisted category list, or nil if none is usable
func (s *SnapshotStore) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	ok, err := s.load(ctx, KeyCategories, &categories)
	if err != nil || !ok {
		return nil, err
	}
	return categories, nil
}

// LoadSnapshot returns nil without error when no usable snapshot exists
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	var snapshot Snapshot

	ok, err := s.load(ctx, KeyCategories, &snapshot.Categories)
	if err != nil || !ok {
		return nil, err
	}

	ok, err = s.load(ctx, KeyProducts, &snapshot.Products)
	if err != nil || !ok {
		return nil, err
	}

	return &snapshot, nil
}

func (s *SnapshotStore) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}

	return nil
}

// load reports ok=false for a missing or undecodable value
func (s *SnapshotStore) load(ctx context.Context, key string, v any) (bool, error) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Warnf("⚠️ Ignoring malformed cached %s: %v", key, err)
		return false, nil
	}

	return true, nil
}
