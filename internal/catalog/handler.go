package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mangalib/internal/apierr"
	"mangalib/pkg/models"
)

type Handler struct {
	Agg  *Aggregator
	Repo *Repo // optional document cache
	log  zerolog.Logger
}

func NewHandler(agg *Aggregator, repo *Repo, log zerolog.Logger) *Handler {
	return &Handler{Agg: agg, Repo: repo, log: log.With().Str("component", "catalog_handler").Logger()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.search)         // GET /catalog/search
	rg.GET("/categories", h.categories) // GET /catalog/categories
	rg.GET("/documents", h.documents)   // GET /catalog/documents (cache)
	rg.GET("/:provider/:id", h.getByID) // GET /catalog/mangadex/<uuid>
}

func (h *Handler) search(c *gin.Context) {
	params := SearchParams{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
		Page:   parseInt(c.Query("page"), 1),
	}
	params.Status = splitMulti(c, "status")
	params.ContentRating = splitMulti(c, "contentRating")

	res := h.Agg.Search(c.Request.Context(), params)
	status := http.StatusOK
	if len(res.Documents) == 0 && len(res.Errors) > 0 && len(res.Errors) == len(h.Agg.Providers()) {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"total":     len(res.Documents),
		"documents": res.Documents,
		"errors":    res.ErrorMessages(),
	})
}

func (h *Handler) categories(c *gin.Context) {
	cats, errs := h.Agg.Categories(c.Request.Context())
	messages := make(map[string]string, len(errs))
	for name, err := range errs {
		messages[name] = apierr.FormatErrorMessage(err)
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats, "errors": messages})
}

func (h *Handler) documents(c *gin.Context) {
	if h.Repo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document cache disabled"})
		return
	}
	q := ListQuery{
		Q:          c.Query("q"),
		Source:     c.Query("source"),
		CategoryID: c.Query("categoryId"),
		Status:     c.Query("status"),
		Limit:      parseInt(c.Query("limit"), 20),
		Offset:     parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("count documents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("list documents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

// getByID asks the provider first and refreshes the cache; a cached copy
// is served when the provider is unreachable.
func (h *Handler) getByID(c *gin.Context) {
	provider, id := c.Param("provider"), c.Param("id")
	if _, ok := h.Agg.Provider(provider); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	ctx := c.Request.Context()

	doc, err := h.Agg.GetByID(ctx, provider, id)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		if h.Repo != nil {
			if cached, cerr := h.Repo.Get(ctx, provider, id); cerr == nil && cached != nil {
				c.Header("X-Cache", "stale")
				c.JSON(http.StatusOK, cached)
				return
			}
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": apierr.FormatErrorMessage(err)})
		return
	}

	if h.Repo != nil {
		if _, err := h.Repo.Upsert(ctx, []models.LibraryDocument{*doc}); err != nil {
			h.log.Warn().Err(err).Str("provider", provider).Str("id", id).Msg("cache document")
		}
	}
	c.JSON(http.StatusOK, doc)
}

// splitMulti reads key=a&key=b or key=a,b.
func splitMulti(c *gin.Context, key string) []string {
	vals := c.QueryArray(key)
	if len(vals) == 1 && strings.Contains(vals[0], ",") {
		vals = strings.Split(vals[0], ",")
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
