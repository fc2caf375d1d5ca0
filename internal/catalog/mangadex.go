package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"mangalib/pkg/models"
)

const mangadexCoverBase = "https://uploads.mangadex.org/covers"

// MangaDexManga is the subset of a MangaDex manga resource we read.
type MangaDexManga struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Title                  map[string]string `json:"title"`
		Description            map[string]string `json:"description"`
		Status                 string            `json:"status"`
		Year                   int               `json:"year"`
		ContentRating          string            `json:"contentRating"`
		PublicationDemographic string            `json:"publicationDemographic"`
		LastChapter            string            `json:"lastChapter"`
		Tags                   []MangaDexTag     `json:"tags"`
	} `json:"attributes"`
	Relationships []MangaDexRelationship `json:"relationships"`
}

type MangaDexTag struct {
	ID         string `json:"id"`
	Attributes struct {
		Name  map[string]string `json:"name"`
		Group string            `json:"group"`
	} `json:"attributes"`
}

type MangaDexRelationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes *struct {
		Name     string `json:"name"`     // author, artist
		FileName string `json:"fileName"` // cover_art
	} `json:"attributes"`
}

type MangaDexChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title              string `json:"title"`
		Chapter            string `json:"chapter"`
		Volume             string `json:"volume"`
		Pages              int    `json:"pages"`
		PublishAt          string `json:"publishAt"`
		TranslatedLanguage string `json:"translatedLanguage"`
	} `json:"attributes"`
}

type mdList[T any] struct {
	Result string `json:"result"`
	Data   []T    `json:"data"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Total  int    `json:"total"`
}

type mdEntity struct {
	Result string         `json:"result"`
	Data   *MangaDexManga `json:"data"`
}

// MangaDex adapts api.mangadex.org. Only Vietnamese-translated titles are
// listed.
type MangaDex struct {
	api getter
	log zerolog.Logger
}

// NewMangaDex expects an API client rooted at the MangaDex base URL.
func NewMangaDex(api getter, log zerolog.Logger) *MangaDex {
	return &MangaDex{api: api, log: log.With().Str("component", "mangadex").Logger()}
}

func (m *MangaDex) Name() string { return SourceMangaDex }

// Search lists manga with the Vietnamese defaults filled in. Any failure
// fails the whole call with ErrMangaDexUnavailable.
func (m *MangaDex) Search(ctx context.Context, p SearchParams) ([]models.LibraryDocument, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	q := url.Values{}
	q.Add("availableTranslatedLanguage[]", "vi")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("order[latestUploadedChapter]", "desc")
	q.Add("includes[]", "cover_art")
	q.Add("includes[]", "author")
	q.Add("includes[]", "artist")
	if p.Query != "" {
		q.Set("title", p.Query)
	}
	addAll(q, "status[]", p.Status, "ongoing", "completed")
	addAll(q, "contentRating[]", p.ContentRating, "safe", "suggestive")

	var resp mdList[MangaDexManga]
	if err := m.api.Get(ctx, "/manga", q, &resp); err != nil {
		m.log.Error().Err(err).Str("query", p.Query).Msg("search failed")
		return nil, unavailable(ErrMangaDexUnavailable, err)
	}
	return convertMangaDexList(resp.Data), nil
}

// Popular is Search with the default filters only.
func (m *MangaDex) Popular(ctx context.Context, limit int) ([]models.LibraryDocument, error) {
	return m.Search(ctx, SearchParams{
		Limit:         limit,
		Status:        []string{"ongoing", "completed"},
		ContentRating: []string{"safe", "suggestive"},
	})
}

// ByTag lists manga carrying every one of tagIDs.
func (m *MangaDex) ByTag(ctx context.Context, tagIDs []string, limit int) ([]models.LibraryDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Add("availableTranslatedLanguage[]", "vi")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order[latestUploadedChapter]", "desc")
	q.Add("includes[]", "cover_art")
	q.Add("includes[]", "author")
	for _, id := range tagIDs {
		q.Add("includedTags[]", id)
	}

	var resp mdList[MangaDexManga]
	if err := m.api.Get(ctx, "/manga", q, &resp); err != nil {
		m.log.Error().Err(err).Strs("tags", tagIDs).Msg("by tag failed")
		return nil, unavailable(ErrByCategoryUnavailable, err)
	}
	return convertMangaDexList(resp.Data), nil
}

// Details fetches one manga with its Vietnamese chapter feed.
func (m *MangaDex) Details(ctx context.Context, id string) (*models.LibraryDocument, error) {
	q := url.Values{"includes[]": {"cover_art", "author", "artist"}}

	var manga mdEntity
	if err := m.api.Get(ctx, "/manga/"+url.PathEscape(id), q, &manga); err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		m.log.Error().Err(err).Str("id", id).Msg("details failed")
		return nil, unavailable(ErrMangaDexUnavailable, err)
	}
	if manga.Data == nil {
		return nil, ErrNotFound
	}

	feed := url.Values{}
	feed.Add("translatedLanguage[]", "vi")
	feed.Set("limit", "100")
	feed.Set("offset", "0")
	feed.Set("order[chapter]", "asc")

	var chapters mdList[MangaDexChapter]
	if err := m.api.Get(ctx, fmt.Sprintf("/manga/%s/feed", url.PathEscape(id)), feed, &chapters); err != nil {
		m.log.Error().Err(err).Str("id", id).Msg("feed failed")
		return nil, unavailable(ErrMangaDexUnavailable, err)
	}
	if chapters.Data == nil {
		chapters.Data = []MangaDexChapter{}
	}

	doc := ConvertMangaDex(*manga.Data, chapters.Data)
	return &doc, nil
}

func (m *MangaDex) GetByID(ctx context.Context, id string) (*models.LibraryDocument, error) {
	return m.Details(ctx, id)
}

// Tags returns the live tag vocabulary.
func (m *MangaDex) Tags(ctx context.Context) ([]models.Tag, error) {
	var resp mdList[MangaDexTag]
	if err := m.api.Get(ctx, "/manga/tag", nil, &resp); err != nil {
		m.log.Error().Err(err).Msg("tags failed")
		return nil, unavailable(ErrMangaDexUnavailable, err)
	}
	tags := make([]models.Tag, 0, len(resp.Data))
	for _, t := range resp.Data {
		group := t.Attributes.Group
		if group == "" {
			group = "general"
		}
		tags = append(tags, models.Tag{ID: t.ID, Name: pickLocale(t.Attributes.Name), Group: group})
	}
	return tags, nil
}

type popularTag struct {
	name  string
	icon  string
	color string
}

var popularTags = []popularTag{
	{"romance", "💕", "e74c3c"},
	{"action", "⚔️", "3498db"},
	{"comedy", "😄", "f39c12"},
	{"drama", "🎭", "9b59b6"},
	{"fantasy", "🧙", "2ecc71"},
	{"slice of life", "🍃", "1abc9c"},
	{"supernatural", "👻", "8e44ad"},
	{"school life", "🏫", "e67e22"},
	{"shounen", "⚡", "c0392b"},
	{"shoujo", "🌸", "f1c40f"},
	{"horror", "😱", "34495e"},
	{"mystery", "🕵️", "7f8c8d"},
}

const (
	minCuratedCategories = 8
	maxCuratedCategories = 12
)

var (
	paddingCategories = []models.Category{
		{ID: "default-1", Title: "Manga Hot", Image: "https://placehold.co/300x300/e74c3c/ffffff?text=Hot", Icon: "🔥"},
		{ID: "default-2", Title: "Mới cập nhật", Image: "https://placehold.co/300x300/3498db/ffffff?text=New", Icon: "🆕"},
	}
	fallbackCategories = []models.Category{
		{ID: "fallback-1", Title: "Manga", Image: "https://placehold.co/300x300/3498db/ffffff?text=Manga", Icon: "📚"},
		{ID: "fallback-2", Title: "Truyện tranh", Image: "https://placehold.co/300x300/e74c3c/ffffff?text=Comic", Icon: "🎨"},
	}
)

// Categories builds the curated browse tiles from the live tags. It never
// fails: a tag fetch error yields the two fallback tiles.
func (m *MangaDex) Categories(ctx context.Context) []models.Category {
	tags, err := m.Tags(ctx)
	if err != nil {
		return append([]models.Category(nil), fallbackCategories...)
	}
	return curateCategories(tags)
}

func (m *MangaDex) ListCategories(ctx context.Context) ([]models.Category, error) {
	return m.Categories(ctx), nil
}

func curateCategories(tags []models.Tag) []models.Category {
	out := make([]models.Category, 0, maxCuratedCategories)
	for _, pt := range popularTags {
		for _, t := range tags {
			if !containsFold(t.Name, pt.name) {
				continue
			}
			out = append(out, models.Category{
				ID:    t.ID,
				Title: t.Name,
				Image: fmt.Sprintf("https://placehold.co/300x300/%s/ffffff?text=%s", pt.color, url.PathEscape(t.Name)),
				Icon:  pt.icon,
			})
			break
		}
	}
	if len(out) < minCuratedCategories {
		out = append(out, paddingCategories...)
	}
	if len(out) > maxCuratedCategories {
		out = out[:maxCuratedCategories]
	}
	return out
}

// ConvertMangaDex maps one raw manga (and optionally its chapters) into a
// LibraryDocument. It is pure.
func ConvertMangaDex(raw MangaDexManga, chapters []MangaDexChapter) models.LibraryDocument {
	title := pickLocale(raw.Attributes.Title)
	desc := pickLocale(raw.Attributes.Description)

	image := PlaceholderCover
	author := UnknownAuthor
	for _, rel := range raw.Relationships {
		if rel.Attributes == nil {
			continue
		}
		switch rel.Type {
		case "cover_art":
			if rel.Attributes.FileName != "" && image == PlaceholderCover {
				image = fmt.Sprintf("%s/%s/%s.512.jpg", mangadexCoverBase, raw.ID, rel.Attributes.FileName)
			}
		case "author":
			if rel.Attributes.Name != "" && author == UnknownAuthor {
				author = rel.Attributes.Name
			}
		}
	}

	tags := make([]string, 0, len(raw.Attributes.Tags))
	tagNames := make([]string, 0, len(raw.Attributes.Tags))
	for _, t := range raw.Attributes.Tags {
		name := pickLocale(t.Attributes.Name)
		tagNames = append(tagNames, name)
		if name == "" {
			name = "Unknown Tag"
		}
		tags = append(tags, name)
	}

	converted := make([]models.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		num := ch.Attributes.Chapter
		if num == "" {
			num = "??"
		}
		chTitle := ch.Attributes.Title
		if chTitle == "" {
			chTitle = "Chương " + num
		}
		converted = append(converted, models.Chapter{
			ID:          ch.ID,
			Title:       chTitle,
			Chapter:     num,
			Pages:       ch.Attributes.Pages,
			PublishedAt: ch.Attributes.PublishAt,
		})
	}

	if title == "" {
		title = UntitledManga
	}
	description := desc
	if description == "" {
		description = NoDescription
	}
	status := raw.Attributes.Status
	if status == "" {
		status = "unknown"
	}
	rating := raw.Attributes.ContentRating
	if rating == "" {
		rating = "safe"
	}

	return models.LibraryDocument{
		ID:            raw.ID,
		Title:         title,
		Author:        author,
		Description:   description,
		Image:         image,
		CategoryID:    MangaDexHeuristic.Determine(tagNames, raw.Attributes.PublicationDemographic),
		Access:        models.AccessFree,
		Content:       fmt.Sprintf("%s\n\nTruyện từ MangaDX với %d chương.", desc, len(converted)),
		Chapters:      converted,
		Tags:          tags,
		Status:        status,
		Year:          raw.Attributes.Year,
		Rating:        rating,
		Language:      "vi",
		TotalChapters: len(converted),
		Source:        SourceMangaDex,
	}
}

func convertMangaDexList(raw []MangaDexManga) []models.LibraryDocument {
	docs := make([]models.LibraryDocument, 0, len(raw))
	for _, item := range raw {
		docs = append(docs, ConvertMangaDex(item, nil))
	}
	return docs
}

// pickLocale prefers vi, then en, then the first locale in key order.
func pickLocale(m map[string]string) string {
	if v := m["vi"]; v != "" {
		return v
	}
	if v := m["en"]; v != "" {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m[k] != "" {
			return m[k]
		}
	}
	return ""
}

// addAll appends values under key, or defaults when values is empty.
func addAll(q url.Values, key string, values []string, defaults ...string) {
	if len(values) == 0 {
		values = defaults
	}
	for _, v := range values {
		q.Add(key, v)
	}
}
