package model

// Category and Language are flat, shared taxonomy entities. Name and slug are
// each globally unique. They carry no ownership: many snippets may reference
// one, and deleting one nulls the reference on dependent snippets instead of
// cascading.

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Language struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
