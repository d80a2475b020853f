package aggregator

import (
	"testing"

	"catalog/browser/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSections_OnlyExpandedCarryData(t *testing.T) {
	state := State{
		Categories:       []domain.Category{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}},
		Products:         []domain.Product{product(1, "a"), product(2, "b")},
		ExpandedSections: []string{"a"},
	}

	sections := DeriveSections(state)
	require.Len(t, sections, 2)

	assert.Equal(t, "A", sections[0].Title)
	assert.Equal(t, "a", sections[0].Slug)
	assert.Equal(t, []int{1}, productIDs(sections[0].Data))

	assert.Equal(t, "b", sections[1].Slug)
	assert.Empty(t, sections[1].Data)
	assert.NotNil(t, sections[1].Data)
}

func TestDeriveSections_SearchReadsProductsAll(t *testing.T) {
	state := State{
		Categories:       []domain.Category{{Slug: "a", Name: "A"}},
		Products:         []domain.Product{product(1, "a")},
		ProductsAll:      []domain.Product{product(1, "a"), product(3, "a"), product(4, "b")},
		ExpandedSections: []string{"a"},
		SearchQuery:      "prod",
	}

	sections := DeriveSections(state)
	require.Len(t, sections, 1)
	assert.Equal(t, []int{1, 3}, productIDs(sections[0].Data))

	state.SearchQuery = ""
	sections = DeriveSections(state)
	assert.Equal(t, []int{1}, productIDs(sections[0].Data))
}

func TestDeriveSections_Pure(t *testing.T) {
	state := State{
		Categories:       []domain.Category{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}},
		Products:         []domain.Product{product(1, "a"), product(2, "b")},
		ProductsAll:      []domain.Product{product(1, "a"), product(2, "b")},
		ExpandedSections: []string{"b", "a"},
	}
	snapshot := state.clone()

	first := DeriveSections(state)
	second := DeriveSections(state)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, state)

	// Mutating a derived section never leaks back into the state
	first[0].Data[0].Title = "changed"
	assert.Equal(t, second, DeriveSections(state))
}

func TestDeriveSections_Empty(t *testing.T) {
	assert.Empty(t, DeriveSections(State{}))
}

func TestMergeProducts(t *testing.T) {
	merged, added := mergeProducts(
		[]domain.Product{product(1, "a"), product(2, "a")},
		[]domain.Product{product(2, "a"), product(3, "b"), product(3, "b"), product(4, "b")},
	)

	assert.Equal(t, 2, added)
	assert.Equal(t, []int{1, 2, 3, 4}, productIDs(merged))
}

func TestRestrictCategories(t *testing.T) {
	base := []domain.Category{{Slug: "beauty", Name: "Beauty"}, {Slug: "laptops", Name: "Laptops"}, {Slug: "smartphones", Name: "Smartphones"}}

	got := restrictCategories(base, []string{"smartphones", "tablets", "beauty"})

	assert.Equal(t, []domain.Category{
		{Slug: "beauty", Name: "Beauty"},
		{Slug: "smartphones", Name: "Smartphones"},
		{Slug: "tablets", Name: "tablets"},
	}, got)
}

func TestDistinctCategories(t *testing.T) {
	got := distinctCategories([]domain.Product{product(1, "b"), product(2, "a"), product(3, "b"), product(4, "")})
	assert.Equal(t, []string{"b", "a"}, got)
	assert.Nil(t, distinctCategories(nil))
}

func TestMatchProducts(t *testing.T) {
	products := []domain.Product{
		{ID: 1, Title: "iPhone X", Category: "smartphones"},
		{ID: 2, Title: "Lipstick", Category: "beauty", Description: "Long lasting"},
		{ID: 3, Title: "Case", Brand: "PhoneGear", Category: "mobile-accessories"},
	}

	assert.Equal(t, []int{1, 3}, productIDs(matchProducts(products, "PHONE")))
	assert.Equal(t, []int{2}, productIDs(matchProducts(products, "lasting")))
	assert.Empty(t, matchProducts(products, "laptop"))
}
