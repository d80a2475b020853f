package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"catalog/browser/internal/cache"
	"catalog/browser/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Manager keeps the favorites set in memory and mirrors it to the store on
// every toggle. In-memory state changes before the write completes.
type Manager struct {
	store cache.Store

	mu    sync.RWMutex
	items []domain.Product

	// Serialises writes so the last write always carries the latest set
	persistMu sync.Mutex
}

func NewManager(store cache.Store) *Manager {
	return &Manager{store: store}
}

// Load replaces the in-memory set with the persisted one. A missing or
// malformed value leaves the set empty.
func (m *Manager) Load(ctx context.Context) error {
	raw, found, err := m.store.Get(ctx, cache.KeyFavorites)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}
	if !found {
		return nil
	}

	var items []domain.Product
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Warnf("⚠️ Ignoring malformed favorites: %v", err)
		return nil
	}

	m.mu.Lock()
	m.items = dedupe(items)
	m.mu.Unlock()

	log.Infof("⭐ Loaded %d favorites", len(items))
	return nil
}

// Toggle flips membership of the product and reports whether it is now a favorite
func (m *Manager) Toggle(ctx context.Context, product domain.Product) bool {
	m.mu.Lock()
	idx := slices.IndexFunc(m.items, func(p domain.Product) bool { return p.ID == product.ID })
	added := idx < 0
	if added {
		m.items = append(m.items, product)
	} else {
		m.items = slices.Delete(m.items, idx, idx+1)
	}
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		log.Errorf("❌ Failed to persist favorites: %v", err)
	}

	return added
}

func (m *Manager) Contains(id int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.ContainsFunc(m.items, func(p domain.Product) bool { return p.ID == id })
}

// List returns a copy of the favorites in insertion order
func (m *Manager) List() []domain.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

func (m *Manager) persist(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	data, err := json.Marshal(m.items)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}

	return m.store.Set(ctx, cache.KeyFavorites, string(data))
}

func dedupe(items []domain.Product) []domain.Product {
	seen := make(map[int]struct{}, len(items))
	out := make([]domain.Product, 0, len(items))
	for _, p := range items {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
