package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"mangalib/internal/apierr"
	"mangalib/pkg/models"
)

// Provider names, also stored as LibraryDocument.Source.
const (
	SourceMangaDex = "mangadex"
	SourceNetTrom  = "nettrom"
)

const (
	PlaceholderCover = "https://placehold.co/400x600/3498db/ffffff?text=No+Cover"
	UnknownAuthor    = "Unknown Author"
	UntitledManga    = "Untitled Manga"
	NoDescription    = "Không có mô tả."
)

var ErrNotFound = errors.New("catalog: manga not found")

// Provider failures. Adapters return them as *apierr.DomainError so the
// underlying *apierr.Error stays reachable.
var (
	ErrMangaDexUnavailable   = errors.New("Không thể tải dữ liệu truyện từ MangaDx")
	ErrByCategoryUnavailable = errors.New("Không thể tải dữ liệu truyện theo thể loại")
	ErrNetTromUnavailable    = errors.New("Không thể tải dữ liệu truyện từ NetTrom")
	ErrPopularUnavailable    = errors.New("Không thể tải dữ liệu truyện phổ biến")
)

func unavailable(kind, err error) error {
	if err == nil {
		return nil
	}
	return &apierr.DomainError{Message: kind.Error(), Kind: kind, Err: err}
}

// SearchParams is the provider-neutral search request. Providers ignore
// fields they have no equivalent for.
type SearchParams struct {
	Query         string
	Limit         int
	Offset        int // MangaDex
	Page          int // NetTrom, 1-based
	Status        []string
	ContentRating []string
}

// CatalogProvider is one external manga catalog mapped into
// LibraryDocument form.
type CatalogProvider interface {
	Name() string
	Search(ctx context.Context, p SearchParams) ([]models.LibraryDocument, error)
	GetByID(ctx context.Context, id string) (*models.LibraryDocument, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// getter is the slice of *apiclient.Client the providers need.
type getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

func isNotFound(err error) bool {
	d := apierr.GetDetails(err)
	return d != nil && d.Status == 404
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
