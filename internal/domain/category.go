package domain

// Category is a named product grouping identified by its slug
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// CategoryFromSlug builds a placeholder category for a slug that has no known display name
func CategoryFromSlug(slug string) Category {
	return Category{Slug: slug, Name: slug}
}
