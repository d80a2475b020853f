package aggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"catalog/browser/internal/cache"
	"catalog/browser/internal/domain"
	"catalog/browser/internal/favorites"
)

const (
	methodCategories = "categories"
	methodProducts   = "products"
	methodSearch     = "search"
)

type fakeClient struct {
	mu         sync.Mutex
	categories map[int][]domain.Category // By skip
	products   map[string][]domain.Product
	search     map[string][]domain.Product
	errs       map[string]error
	calls      []string

	// blocks holds calls of a method until the channel is closed or the
	// request context is cancelled; entered receives the call name first
	blocks  map[string]chan struct{}
	entered chan string
	// ignoreCancel keeps blocked calls waiting for the channel so they return
	// a successful late result after their request was superseded
	ignoreCancel bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		categories: make(map[int][]domain.Category),
		products:   make(map[string][]domain.Product),
		search:     make(map[string][]domain.Product),
		errs:       make(map[string]error),
		blocks:     make(map[string]chan struct{}),
		entered:    make(chan string, 16),
	}
}

func (f *fakeClient) block(method string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.blocks[method] = ch
	return ch
}

func (f *fakeClient) unblock(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocks, method)
}

func (f *fakeClient) call(ctx context.Context, method, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%s", method, arg))
	ch := f.blocks[method]
	err := f.errs[method]
	ignoreCancel := f.ignoreCancel
	f.mu.Unlock()

	if ch != nil {
		f.entered <- method
		if ignoreCancel {
			<-ch
			return err
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) GetCategories(ctx context.Context, skip int) ([]domain.Category, error) {
	if err := f.call(ctx, methodCategories, fmt.Sprint(skip)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories[skip], nil
}

func (f *fakeClient) GetProductsByCategory(ctx context.Context, slug string) ([]domain.Product, error) {
	if err := f.call(ctx, methodProducts, slug); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[slug], nil
}

func (f *fakeClient) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if err := f.call(ctx, methodSearch, query); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search[query], nil
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type fixture struct {
	client    *fakeClient
	store     *memStore
	snapshots *cache.SnapshotStore
	agg       *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	client := newFakeClient()
	store := newMemStore()
	snapshots := cache.NewSnapshotStore(store)
	agg := New(client, snapshots, favorites.NewManager(store), Options{PageSize: 7})
	t.Cleanup(agg.Close)

	return &fixture{client: client, store: store, snapshots: snapshots, agg: agg}
}

func category(slug string) domain.Category {
	return domain.Category{Slug: slug, Name: slug + " name"}
}

func product(id int, slug string) domain.Product {
	return domain.Product{ID: id, Title: fmt.Sprintf("product %d", id), Category: slug}
}

func productIDs(products []domain.Product) []int {
	out := make([]int, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func sectionBySlug(sections []domain.Section, slug string) (domain.Section, bool) {
	for _, s := range sections {
		if s.Slug == slug {
			return s, true
		}
	}
	return domain.Section{}, false
}
