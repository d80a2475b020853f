package domain

// Section pairs a category with the products currently visible under it
type Section struct {
	Title string    `json:"title"`
	Slug  string    `json:"slug"`
	Data  []Product `json:"data"`
}

