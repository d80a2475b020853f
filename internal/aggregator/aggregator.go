// Package aggregator owns the catalog screen state: categories, expanded
// sections, search and the accumulated product set, fed from the remote
// catalog when online and from the local snapshot when offline.
package aggregator

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"catalog/browser/internal/cache"
	"catalog/browser/internal/debounce"
	"catalog/browser/internal/domain"

	log "github.com/sirupsen/logrus"
)

type CatalogClient interface {
	GetCategories(ctx context.Context, skip int) ([]domain.Category, error)
	GetProductsByCategory(ctx context.Context, slug string) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (*cache.Snapshot, error)
	LoadCategories(ctx context.Context) ([]domain.Category, error)
	SaveCategories(ctx context.Context, categories []domain.Category) error
	SaveProducts(ctx context.Context, products []domain.Product) error
}

type Favorites interface {
	Load(ctx context.Context) error
	Toggle(ctx context.Context, product domain.Product) bool
	Contains(id int) bool
	List() []domain.Product
}

type Options struct {
	PageSize       int
	SearchDebounce time.Duration
	// OnChange is called after every applied state change, outside the state lock
	OnChange func()
}

type kind int

const (
	kindCategories kind = iota
	kindProducts
	kindSearch
	kindCount
)

func (k kind) String() string {
	switch k {
	case kindCategories:
		return "categories"
	case kindProducts:
		return "products"
	case kindSearch:
		return "search"
	default:
		return "unknown"
	}
}

// request is one issued fetch; its result applies only while it is the
// latest request of its kind
type request struct {
	ctx    context.Context
	cancel context.CancelFunc
	token  uint64
}

type Aggregator struct {
	client    CatalogClient
	snapshots SnapshotStore
	favorites Favorites
	pageSize  int
	onChange  func()
	debouncer *debounce.Debouncer

	mu                sync.Mutex
	state             State
	categoriesFetched []domain.Category // Last full category list from remote or snapshot
	searchSlugs       []string          // Categories of the active search results
	online            bool
	scrolled          bool
	tokens            [kindCount]uint64
	inflight          [kindCount]*request
	gate              *request // Category or product fetch holding the loading gate

	// Serialises snapshot writes so the last write carries the latest state
	persistMu sync.Mutex
}

func New(client CatalogClient, snapshots SnapshotStore, favorites Favorites, opts Options) *Aggregator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 7
	}

	return &Aggregator{
		client:    client,
		snapshots: snapshots,
		favorites: favorites,
		pageSize:  pageSize,
		onChange:  opts.OnChange,
		debouncer: debounce.New(opts.SearchDebounce),
		state:     State{HasMore: true},
		online:    true,
	}
}

// Mount records the initial connectivity, then loads favorites and the
// initial categories from the matching source
func (a *Aggregator) Mount(ctx context.Context, online bool) {
	a.mu.Lock()
	a.online = online
	a.mu.Unlock()

	a.LoadFavorites(ctx)
	a.LoadInitialCategories(ctx)
}

func (a *Aggregator) LoadFavorites(ctx context.Context) {
	if err := a.favorites.Load(ctx); err != nil {
		log.Warnf("⚠️ Failed to load favorites: %v", err)
		return
	}
	a.notify()
}

// SetConnectivity records the connectivity state and reloads categories
// from the matching source
func (a *Aggregator) SetConnectivity(ctx context.Context, online bool) {
	a.mu.Lock()
	a.online = online
	a.mu.Unlock()

	a.LoadInitialCategories(ctx)
}

func (a *Aggregator) Online() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

// LoadInitialCategories fetches the first category page when online, or
// restores the persisted snapshot when offline
func (a *Aggregator) LoadInitialCategories(ctx context.Context) {
	if !a.Online() {
		a.loadPersisted(ctx)
		return
	}

	req, ok := a.begin(ctx, kindCategories, true)
	if !ok {
		log.Debug("⏳ Fetch in flight, dropping initial categories request")
		return
	}

	categories, err := a.client.GetCategories(req.ctx, 0)

	a.mu.Lock()
	if !a.settleLocked(kindCategories, req, err) {
		a.mu.Unlock()
		return
	}
	a.categoriesFetched = slices.Clone(categories)
	a.applyCategoriesLocked()
	a.state.Page = 0
	a.state.HasMore = true
	searching := a.state.SearchQuery != ""
	a.mu.Unlock()

	log.Infof("📂 Loaded %d categories", len(categories))
	if !searching {
		a.persistCategories(ctx)
	}
	a.notify()
}

// Refresh reloads the first category page
func (a *Aggregator) Refresh(ctx context.Context) {
	a.LoadInitialCategories(ctx)
}

func (a *Aggregator) loadPersisted(ctx context.Context) {
	a.mu.Lock()
	req := a.beginLocked(ctx, kindCategories, false)
	a.mu.Unlock()

	snapshot, err := a.snapshots.LoadSnapshot(req.ctx)

	a.mu.Lock()
	if !a.settleLocked(kindCategories, req, err) {
		a.mu.Unlock()
		return
	}
	if snapshot == nil {
		a.mu.Unlock()
		log.Info("📭 Offline and no cached catalog available")
		return
	}
	a.categoriesFetched = slices.Clone(snapshot.Categories)
	a.applyCategoriesLocked()
	if a.state.SearchQuery == "" {
		a.state.Products = slices.Clone(snapshot.Products)
	}
	a.state.ProductsAll, _ = mergeProducts(a.state.ProductsAll, snapshot.Products)
	a.state.Page = 0
	a.mu.Unlock()

	log.Infof("📦 Restored %d categories and %d products from cache",
		len(snapshot.Categories), len(snapshot.Products))
	a.notify()
}

// ToggleSection collapses an expanded section, keeping its products, or
// expands it and loads the category's products
func (a *Aggregator) ToggleSection(ctx context.Context, slug string) {
	if slug == "" {
		return
	}

	a.mu.Lock()
	if idx := slices.Index(a.state.ExpandedSections, slug); idx >= 0 {
		a.state.ExpandedSections = slices.Delete(a.state.ExpandedSections, idx, idx+1)
		a.mu.Unlock()
		a.notify()
		return
	}

	a.state.ExpandedSections = append(a.state.ExpandedSections, slug)
	a.state.Products = nil
	online := a.online
	if !online {
		a.state.Products = filterByCategory(a.state.ProductsAll, slug)
	}
	a.mu.Unlock()
	a.notify()

	if online {
		a.fetchProducts(ctx, slug)
	}
}

func (a *Aggregator) fetchProducts(ctx context.Context, slug string) {
	req, ok := a.begin(ctx, kindProducts, true)
	if !ok {
		log.Debugf("⏳ Fetch in flight, dropping products request for %s", slug)
		return
	}

	products, err := a.client.GetProductsByCategory(req.ctx, slug)

	a.mu.Lock()
	if !a.settleLocked(kindProducts, req, err) {
		a.mu.Unlock()
		return
	}
	a.state.Products = slices.Clone(products)
	var added int
	a.state.ProductsAll, added = mergeProducts(a.state.ProductsAll, products)
	a.mu.Unlock()

	log.Debugf("Loaded %d products for %s (%d new)", len(products), slug, added)
	if added > 0 {
		a.persistProducts(ctx)
	}
	a.notify()
}

// ReportScrollBoundary records that the view reached its scroll end
func (a *Aggregator) ReportScrollBoundary() {
	a.mu.Lock()
	a.scrolled = true
	a.mu.Unlock()
}

// LoadMoreCategories fetches the next category page. It does nothing unless
// more pages may exist, no fetch is pending, the view has reached its scroll
// boundary and no search is active.
func (a *Aggregator) LoadMoreCategories(ctx context.Context) {
	a.mu.Lock()
	if !a.state.HasMore || !a.scrolled || !a.online || a.state.SearchQuery != "" || a.gate != nil {
		a.mu.Unlock()
		return
	}
	req := a.beginLocked(ctx, kindCategories, true)
	skip := (a.state.Page + 1) * a.pageSize
	a.mu.Unlock()

	categories, err := a.client.GetCategories(req.ctx, skip)

	a.mu.Lock()
	if !a.settleLocked(kindCategories, req, err) {
		a.mu.Unlock()
		return
	}
	var added int
	a.state.Categories, added = mergeCategories(a.state.Categories, categories)
	a.categoriesFetched, _ = mergeCategories(a.categoriesFetched, categories)
	a.state.Page++
	if added == 0 || len(categories) < a.pageSize {
		a.state.HasMore = false
	}
	hasMore := a.state.HasMore
	a.mu.Unlock()

	log.Infof("📂 Loaded category page (skip=%d): %d new, more=%t", skip, added, hasMore)
	if added > 0 {
		a.persistCategories(ctx)
	}
	a.notify()
}

// SearchInput is the debounced entry point for the search field: each call
// cancels the pending dispatch and schedules a new one
func (a *Aggregator) SearchInput(ctx context.Context, text string) {
	a.debouncer.Trigger(func() {
		a.Search(ctx, text)
	})
}

// Search restricts the sections to the categories of the matching products
// and expands them. An empty query clears the search and reloads categories.
func (a *Aggregator) Search(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		a.clearSearch(ctx)
		return
	}

	a.mu.Lock()
	a.invalidateLocked(kindCategories, kindProducts)
	req := a.beginLocked(ctx, kindSearch, false)
	online := a.online
	seen := slices.Clone(a.state.ProductsAll)
	a.mu.Unlock()

	var products []domain.Product
	var err error
	if online {
		products, err = a.client.SearchProducts(req.ctx, query)
	} else {
		products = matchProducts(seen, query)
	}

	var persisted []domain.Category
	if err == nil {
		var loadErr error
		persisted, loadErr = a.snapshots.LoadCategories(req.ctx)
		if loadErr != nil {
			log.Warnf("⚠️ Failed to read cached categories for search: %v", loadErr)
		}
	}

	a.mu.Lock()
	if !a.settleLocked(kindSearch, req, err) {
		a.mu.Unlock()
		return
	}
	base := persisted
	if len(base) == 0 {
		base = a.categoriesFetched
	}
	slugs := distinctCategories(products)
	a.state.SearchQuery = query
	a.searchSlugs = slugs
	a.state.Categories = restrictCategories(base, slugs)
	a.state.ExpandedSections = slugs
	a.state.Products = slices.Clone(products)
	var added int
	a.state.ProductsAll, added = mergeProducts(a.state.ProductsAll, products)
	a.mu.Unlock()

	log.Infof("🔍 Search %q matched %d products in %d categories", query, len(products), len(slugs))
	if added > 0 {
		a.persistProducts(ctx)
	}
	a.notify()
}

func (a *Aggregator) clearSearch(ctx context.Context) {
	a.debouncer.Stop()

	a.mu.Lock()
	a.invalidateLocked(kindSearch, kindProducts, kindCategories)
	a.state.SearchQuery = ""
	a.searchSlugs = nil
	a.state.ExpandedSections = nil
	a.state.Products = nil
	a.mu.Unlock()
	a.notify()

	a.LoadInitialCategories(ctx)
}

// ToggleFavorite flips the product's favorite membership and reports
// whether it is now a favorite
func (a *Aggregator) ToggleFavorite(ctx context.Context, product domain.Product) bool {
	added := a.favorites.Toggle(ctx, product)
	a.notify()
	return added
}

func (a *Aggregator) IsFavorite(id int) bool {
	return a.favorites.Contains(id)
}

func (a *Aggregator) Favorites() []domain.Product {
	return a.favorites.List()
}

// State returns a copy of the current state
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

func (a *Aggregator) Sections() []domain.Section {
	return DeriveSections(a.State())
}

// Loading reports whether a category or product fetch holds the loading gate
func (a *Aggregator) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate != nil
}

// Product looks a product up among everything seen this session
func (a *Aggregator) Product(id int) (domain.Product, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, list := range [][]domain.Product{a.state.ProductsAll, a.state.Products} {
		if idx := slices.IndexFunc(list, func(p domain.Product) bool { return p.ID == id }); idx >= 0 {
			return list[idx], true
		}
	}
	return domain.Product{}, false
}

// Close cancels pending searches and in-flight fetches
func (a *Aggregator) Close() {
	a.debouncer.Stop()

	a.mu.Lock()
	a.invalidateLocked(kindCategories, kindProducts, kindSearch)
	a.mu.Unlock()
}

func (a *Aggregator) begin(ctx context.Context, k kind, gated bool) (*request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gated && a.gate != nil {
		return nil, false
	}
	return a.beginLocked(ctx, k, gated), true
}

// beginLocked issues a new request of kind k, superseding the previous one.
// Gated callers must have checked the gate.
func (a *Aggregator) beginLocked(ctx context.Context, k kind, gated bool) *request {
	a.invalidateLocked(k)

	a.tokens[k]++
	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{ctx: reqCtx, cancel: cancel, token: a.tokens[k]}
	a.inflight[k] = req
	if gated {
		a.gate = req
	}
	return req
}

// invalidateLocked abandons the in-flight requests of the given kinds; their
// results will be discarded
func (a *Aggregator) invalidateLocked(kinds ...kind) {
	for _, k := range kinds {
		req := a.inflight[k]
		if req == nil {
			continue
		}
		req.cancel()
		a.inflight[k] = nil
		if a.gate == req {
			a.gate = nil
		}
	}
}

// settleLocked finishes req and reports whether its result should be
// applied: it must still be the latest request of its kind and have succeeded
func (a *Aggregator) settleLocked(k kind, req *request, err error) bool {
	req.cancel()
	if a.gate == req {
		a.gate = nil
	}

	if a.inflight[k] != req {
		log.Debugf("Discarding stale %s response (token %d, latest %d)", k, req.token, a.tokens[k])
		return false
	}
	a.inflight[k] = nil

	if err != nil {
		log.Warnf("⚠️ %s fetch failed, keeping previous state: %v", k, err)
		return false
	}
	return true
}

// applyCategoriesLocked shows categoriesFetched, restricted to the search
// result categories while a search is active
func (a *Aggregator) applyCategoriesLocked() {
	if a.state.SearchQuery != "" {
		a.state.Categories = restrictCategories(a.categoriesFetched, a.searchSlugs)
		return
	}
	a.state.Categories = slices.Clone(a.categoriesFetched)
}

func (a *Aggregator) persistCategories(ctx context.Context) {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	a.mu.Lock()
	categories := slices.Clone(a.categoriesFetched)
	a.mu.Unlock()

	if err := a.snapshots.SaveCategories(ctx, categories); err != nil {
		log.Errorf("❌ Failed to persist categories: %v", err)
	}
}

func (a *Aggregator) persistProducts(ctx context.Context) {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	a.mu.Lock()
	products := slices.Clone(a.state.ProductsAll)
	a.mu.Unlock()

	if err := a.snapshots.SaveProducts(ctx, products); err != nil {
		log.Errorf("❌ Failed to persist products: %v", err)
	}
}

func (a *Aggregator) notify() {
	if a.onChange != nil {
		a.onChange()
	}
}
