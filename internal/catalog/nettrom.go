package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mangalib/pkg/models"
)

// NetTromUserAgent is sent on every NetTrom call; the API rejects bare
// client agents.
const NetTromUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// NetTromManga is one comic as returned by otruyenapi.
type NetTromManga struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	OriginName []string   `json:"origin_name"`
	Status     string     `json:"status"`
	ThumbURL   string     `json:"thumb_url"`
	Author     authorList `json:"author"`
	Category   []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"category"`
	Content        string               `json:"content"`
	UpdatedAt      string               `json:"updatedAt"`
	ChaptersLatest []NetTromLatestEntry `json:"chaptersLatest"`
}

type NetTromLatestEntry struct {
	Filename       string `json:"filename"`
	ChapterName    string `json:"chapter_name"`
	ChapterTitle   string `json:"chapter_title"`
	ChapterAPIData string `json:"chapter_api_data"`
}

type NetTromChapter struct {
	ID           string `json:"_id"`
	ComicName    string `json:"comic_name"`
	ChapterName  string `json:"chapter_name"`
	ChapterTitle string `json:"chapter_title"`
	ChapterPath  string `json:"chapter_path"`
	ChapterImage []struct {
		ImagePage int    `json:"image_page"`
		ImageFile string `json:"image_file"`
	} `json:"chapter_image"`
}

// authorList accepts either a single string or an array of names.
type authorList []string

func (a *authorList) UnmarshalJSON(b []byte) error {
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*a = many
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("nettrom author: %w", err)
	}
	if one == "" {
		*a = nil
	} else {
		*a = authorList{one}
	}
	return nil
}

type ntItems[T any] struct {
	Status string `json:"status"`
	Data   *struct {
		Items []T `json:"items"`
	} `json:"data"`
}

func (r ntItems[T]) items() []T {
	if r.Data == nil {
		return nil
	}
	return r.Data.Items
}

type ntItem[T any] struct {
	Status string `json:"status"`
	Data   *struct {
		Item *T `json:"item"`
	} `json:"data"`
}

func (r ntItem[T]) item() *T {
	if r.Data == nil {
		return nil
	}
	return r.Data.Item
}

type ntCategory struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// NetTrom adapts otruyenapi.com. Ids are comic slugs.
type NetTrom struct {
	api getter
	log zerolog.Logger
	now func() time.Time
}

// NewNetTrom expects an API client rooted at the NetTrom base URL that
// sends NetTromUserAgent.
func NewNetTrom(api getter, log zerolog.Logger) *NetTrom {
	return &NetTrom{api: api, log: log.With().Str("component", "nettrom").Logger(), now: time.Now}
}

func (n *NetTrom) Name() string { return SourceNetTrom }

func (n *NetTrom) listQuery(page, limit int) url.Values {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
}

func (n *NetTrom) Search(ctx context.Context, p SearchParams) ([]models.LibraryDocument, error) {
	q := n.listQuery(p.Page, p.Limit)
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if len(p.Status) > 0 && p.Status[0] != "" {
		q.Set("status", p.Status[0])
	}

	var resp ntItems[NetTromManga]
	if err := n.api.Get(ctx, "/truyen-tranh", q, &resp); err != nil {
		n.log.Error().Err(err).Str("query", p.Query).Msg("search failed")
		return nil, unavailable(ErrNetTromUnavailable, err)
	}
	return n.convertList(resp.items()), nil
}

// Popular lists completed comics.
func (n *NetTrom) Popular(ctx context.Context, page, limit int) ([]models.LibraryDocument, error) {
	q := n.listQuery(page, limit)
	q.Set("status", "completed")

	var resp ntItems[NetTromManga]
	if err := n.api.Get(ctx, "/truyen-tranh", q, &resp); err != nil {
		n.log.Error().Err(err).Msg("popular failed")
		return nil, unavailable(ErrPopularUnavailable, err)
	}
	return n.convertList(resp.items()), nil
}

func (n *NetTrom) ByCategory(ctx context.Context, slug string, page, limit int) ([]models.LibraryDocument, error) {
	var resp ntItems[NetTromManga]
	if err := n.api.Get(ctx, "/the-loai/"+url.PathEscape(slug), n.listQuery(page, limit), &resp); err != nil {
		n.log.Error().Err(err).Str("slug", slug).Msg("by category failed")
		return nil, unavailable(ErrByCategoryUnavailable, err)
	}
	return n.convertList(resp.items()), nil
}

// Details fetches a comic and its chapter list by slug.
func (n *NetTrom) Details(ctx context.Context, slug string) (*models.LibraryDocument, error) {
	path := "/truyen-tranh/" + url.PathEscape(slug)

	var manga ntItem[NetTromManga]
	if err := n.api.Get(ctx, path, nil, &manga); err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		n.log.Error().Err(err).Str("slug", slug).Msg("details failed")
		return nil, unavailable(ErrNetTromUnavailable, err)
	}
	raw := manga.item()
	if raw == nil {
		return nil, ErrNotFound
	}

	var chapters ntItems[NetTromChapter]
	if err := n.api.Get(ctx, path+"/chuong", nil, &chapters); err != nil {
		n.log.Error().Err(err).Str("slug", slug).Msg("chapters failed")
		return nil, unavailable(ErrNetTromUnavailable, err)
	}
	list := chapters.items()
	if list == nil {
		list = []NetTromChapter{}
	}

	doc := ConvertNetTrom(*raw, list, n.now())
	return &doc, nil
}

func (n *NetTrom) GetByID(ctx context.Context, slug string) (*models.LibraryDocument, error) {
	return n.Details(ctx, slug)
}

// ChapterImages resolves a chapter_api_data link into page image files in
// page order.
func (n *NetTrom) ChapterImages(ctx context.Context, apiData string) ([]string, error) {
	var resp ntItem[NetTromChapter]
	if err := n.api.Get(ctx, apiData, nil, &resp); err != nil {
		n.log.Error().Err(err).Str("chapter", apiData).Msg("chapter images failed")
		return nil, unavailable(ErrNetTromUnavailable, err)
	}
	ch := resp.item()
	if ch == nil {
		return []string{}, nil
	}
	pages := append(ch.ChapterImage[:0:0], ch.ChapterImage...)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].ImagePage < pages[j].ImagePage })

	files := make([]string, 0, len(pages))
	for _, p := range pages {
		files = append(files, p.ImageFile)
	}
	return files, nil
}

// Categories lists the provider's own genres.
func (n *NetTrom) Categories(ctx context.Context) ([]models.ProviderCategory, error) {
	var resp ntItems[ntCategory]
	if err := n.api.Get(ctx, "/the-loai", nil, &resp); err != nil {
		n.log.Error().Err(err).Msg("categories failed")
		return nil, unavailable(ErrNetTromUnavailable, err)
	}
	out := make([]models.ProviderCategory, 0, len(resp.items()))
	for _, c := range resp.items() {
		out = append(out, models.ProviderCategory{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	return out, nil
}

func (n *NetTrom) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := n.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		out = append(out, models.Category{
			ID:    c.Slug,
			Title: c.Name,
			Image: "https://placehold.co/300x300/3498db/ffffff?text=" + url.PathEscape(c.Name),
			Icon:  "📚",
		})
	}
	return out, nil
}

func (n *NetTrom) convertList(raw []NetTromManga) []models.LibraryDocument {
	now := n.now()
	docs := make([]models.LibraryDocument, 0, len(raw))
	for _, item := range raw {
		docs = append(docs, ConvertNetTrom(item, nil, now))
	}
	return docs
}

// ConvertNetTrom maps one raw comic into a LibraryDocument. A nil chapters
// slice falls back to the comic's chaptersLatest; now stamps chapters when
// the comic has no updatedAt.
func ConvertNetTrom(raw NetTromManga, chapters []NetTromChapter, now time.Time) models.LibraryDocument {
	image := raw.ThumbURL
	if image == "" {
		image = PlaceholderCover
	}
	author := strings.Join(raw.Author, ", ")
	if author == "" {
		author = UnknownAuthor
	}

	tags := make([]string, 0, len(raw.Category))
	for _, c := range raw.Category {
		tags = append(tags, c.Name)
	}

	published := raw.UpdatedAt
	if published == "" {
		published = now.UTC().Format(time.RFC3339)
	}

	var converted []models.Chapter
	if chapters != nil {
		converted = make([]models.Chapter, 0, len(chapters))
		for i, ch := range chapters {
			converted = append(converted, netTromChapter(i, ch.ID, ch.ChapterName, ch.ChapterTitle, published))
		}
	} else {
		converted = make([]models.Chapter, 0, len(raw.ChaptersLatest))
		for i, ch := range raw.ChaptersLatest {
			converted = append(converted, netTromChapter(i, ch.Filename, ch.ChapterName, ch.ChapterTitle, published))
		}
	}

	title := raw.Name
	if title == "" {
		title = UntitledManga
	}
	description := raw.Content
	if description == "" {
		description = NoDescription
	}
	status := raw.Status
	if status == "" {
		status = "unknown"
	}

	return models.LibraryDocument{
		ID:            raw.ID,
		Title:         title,
		Author:        author,
		Description:   description,
		Image:         image,
		CategoryID:    NetTromHeuristic.Determine(tags, ""),
		Access:        models.AccessFree,
		Content:       fmt.Sprintf("%s\n\nTruyện từ NetTrom với %d chương.", raw.Content, len(converted)),
		Chapters:      converted,
		Tags:          tags,
		Status:        status,
		Rating:        "safe",
		Language:      "vi",
		TotalChapters: len(converted),
		Source:        SourceNetTrom,
	}
}

func netTromChapter(i int, id, name, title, published string) models.Chapter {
	if id == "" {
		id = fmt.Sprintf("chapter-%d", i)
	}
	if title == "" {
		title = name
	}
	if title == "" {
		title = "Chương " + name
	}
	num := name
	if num == "" {
		num = strconv.Itoa(i + 1)
	}
	return models.Chapter{ID: id, Title: title, Chapter: num, PublishedAt: published}
}
