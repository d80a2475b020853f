package cache

import (
	"context"
	"errors"
	"testing"

	"catalog/browser/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	values map[string]string
	getErr error
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	store := newMemStore()
	snapshots := NewSnapshotStore(store)
	ctx := context.Background()

	categories := []domain.Category{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}}
	products := []domain.Product{
		{ID: 1, Title: "One", Category: "a", Price: decimal.RequireFromString("9.99"), Stock: 3},
		{ID: 2, Title: "Two", Category: "b", Price: decimal.RequireFromString("0.10")},
	}

	require.NoError(t, snapshots.SaveCategories(ctx, categories))
	require.NoError(t, snapshots.SaveProducts(ctx, products))

	snapshot, err := snapshots.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, categories, snapshot.Categories)
	require.Len(t, snapshot.Products, 2)
	assert.Equal(t, 1, snapshot.Products[0].ID)
	assert.True(t, snapshot.Products[0].Price.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, snapshot.Products[1].Price.Equal(decimal.RequireFromString("0.1")))
}

func TestSnapshotStore_PartialSnapshotIsAbsent(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "empty", values: map[string]string{}},
		{name: "categories only", values: map[string]string{KeyCategories: `[{"slug":"a","name":"A"}]`}},
		{name: "products only", values: map[string]string{KeyProducts: `[{"id":1}]`}},
		{name: "malformed products", values: map[string]string{
			KeyCategories: `[{"slug":"a","name":"A"}]`,
			KeyProducts:   `{not json`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.values = tt.values

			snapshot, err := NewSnapshotStore(store).LoadSnapshot(context.Background())
			require.NoError(t, err)
			assert.Nil(t, snapshot)
		})
	}
}

func TestSnapshotStore_LoadCategories(t *testing.T) {
	store := newMemStore()
	snapshots := NewSnapshotStore(store)

	categories, err := snapshots.LoadCategories(context.Background())
	require.NoError(t, err)
	assert.Nil(t, categories)

	store.values[KeyCategories] = `[{"slug":"smartphones","name":"Smartphones"}]`
	categories, err = snapshots.LoadCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{{Slug: "smartphones", Name: "Smartphones"}}, categories)
}

func TestSnapshotStore_ReadError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")

	_, err := NewSnapshotStore(store).LoadSnapshot(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}
