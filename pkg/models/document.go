package models

// Access tiers a document can be read under.
const (
	AccessFree = "Free"
	AccessVIP  = "VIP"
)

// LibraryDocument is the normalized, provider-independent form of a
// catalog entry. Provider adapters build it once per raw item and never
// mutate it afterwards.
type LibraryDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Image         string    `json:"image"`
	CategoryID    string    `json:"categoryId"` // always one of the local category ids
	Access        string    `json:"access"`
	Content       string    `json:"content"`
	Chapters      []Chapter `json:"chapters,omitempty"`
	Tags          []string  `json:"tags"`
	Status        string    `json:"status"`
	Year          int       `json:"year,omitempty"`
	Rating        string    `json:"rating"`
	Language      string    `json:"language"`
	TotalChapters int       `json:"totalChapters"` // == len(Chapters)
	Source        string    `json:"source"`        // provider name, e.g. "mangadex"
}

type Chapter struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Chapter     string `json:"chapter"`
	Pages       int    `json:"pages"`
	PublishedAt string `json:"publishedAt"`
}
