package aggregator

import (
	"slices"
	"strings"

	"catalog/browser/internal/domain"
)

// State is the screen-wide catalog state. It is mutated only through
// Aggregator operations; readers get deep copies.
type State struct {
	Categories       []domain.Category
	Products         []domain.Product // Products of the active category or search, replaced per fetch
	ProductsAll      []domain.Product // Every product seen this session, unique by id, append-only
	ExpandedSections []string         // Open slugs in visit order
	SearchQuery      string
	Page             int
	HasMore          bool
}

func (s State) clone() State {
	s.Categories = slices.Clone(s.Categories)
	s.Products = slices.Clone(s.Products)
	s.ProductsAll = slices.Clone(s.ProductsAll)
	s.ExpandedSections = slices.Clone(s.ExpandedSections)
	return s
}

// DeriveSections builds one section per category. Only expanded sections
// carry data: from ProductsAll while a search is active, from Products
// otherwise.
func DeriveSections(s State) []domain.Section {
	source := s.Products
	if s.SearchQuery != "" {
		source = s.ProductsAll
	}

	sections := make([]domain.Section, 0, len(s.Categories))
	for _, category := range s.Categories {
		data := []domain.Product{}
		if slices.Contains(s.ExpandedSections, category.Slug) {
			data = filterByCategory(source, category.Slug)
		}

		sections = append(sections, domain.Section{
			Title: category.Name,
			Slug:  category.Slug,
			Data:  data,
		})
	}

	return sections
}

func filterByCategory(products []domain.Product, slug string) []domain.Product {
	out := []domain.Product{}
	for _, p := range products {
		if p.Category == slug {
			out = append(out, p)
		}
	}
	return out
}

// mergeProducts appends incoming products whose id is not yet present and
// returns how many were added
func mergeProducts(existing, incoming []domain.Product) ([]domain.Product, int) {
	seen := make(map[int]struct{}, len(existing)+len(incoming))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
	}

	added := 0
	for _, p := range incoming {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		existing = append(existing, p)
		added++
	}

	return existing, added
}

// mergeCategories appends categories whose slug is not yet present
func mergeCategories(existing, incoming []domain.Category) ([]domain.Category, int) {
	added := 0
	for _, c := range incoming {
		if slices.ContainsFunc(existing, func(e domain.Category) bool { return e.Slug == c.Slug }) {
			continue
		}
		existing = append(existing, c)
		added++
	}
	return existing, added
}

// distinctCategories returns the category slugs of products in first-seen order
func distinctCategories(products []domain.Product) []string {
	var slugs []string
	for _, p := range products {
		if p.Category != "" && !slices.Contains(slugs, p.Category) {
			slugs = append(slugs, p.Category)
		}
	}
	return slugs
}

// restrictCategories keeps the categories of base whose slug is in slugs,
// in base order, then appends placeholders for slugs base does not know
func restrictCategories(base []domain.Category, slugs []string) []domain.Category {
	out := make([]domain.Category, 0, len(slugs))
	for _, c := range base {
		if slices.Contains(slugs, c.Slug) && !slices.ContainsFunc(out, func(o domain.Category) bool { return o.Slug == c.Slug }) {
			out = append(out, c)
		}
	}

	for _, slug := range slugs {
		if !slices.ContainsFunc(out, func(o domain.Category) bool { return o.Slug == slug }) {
			out = append(out, domain.CategoryFromSlug(slug))
		}
	}

	return out
}

// matchProducts is the offline search: case-insensitive substring match on
// title, brand, category and description
func matchProducts(products []domain.Product, query string) []domain.Product {
	q := strings.ToLower(query)
	var out []domain.Product
	for _, p := range products {
		for _, field := range []string{p.Title, p.Brand, p.Category, p.Description} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
