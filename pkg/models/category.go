package models

// Category is a curated category tile shown on the browse screen.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
	Icon  string `json:"icon"`
}

// Tag is a provider tag from its live vocabulary.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// ProviderCategory is a category as listed by a provider (NetTrom's
// /the-loai endpoint).
type ProviderCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
