// Package scraper fills the document cache from the catalog providers.
package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mangalib/internal/apierr"
	"mangalib/internal/catalog"
	"mangalib/pkg/models"
)

type Options struct {
	Query string
	// Limit is the page size asked of every provider.
	Limit int
	// Pages to walk; walking stops early at the first empty page.
	Pages int
	// Details caps how many listed documents get a detail fetch, which
	// fills their chapters. Zero skips detail fetches.
	Details int
	// Concurrency of detail fetches.
	Concurrency int
}

type Report struct {
	Listed   map[string]int    `json:"listed"`
	Failures map[string]string `json:"failures"`
	Detailed int               `json:"detailed"`
	Stored   int               `json:"stored"`
}

type Scraper struct {
	Agg  *catalog.Aggregator
	Repo *catalog.Repo
	log  zerolog.Logger
}

func New(agg *catalog.Aggregator, repo *catalog.Repo, log zerolog.Logger) *Scraper {
	return &Scraper{Agg: agg, Repo: repo, log: log.With().Str("component", "scraper").Logger()}
}

// Run lists, optionally enriches, then upserts. A provider failing does
// not stop the others; only a storage error fails the run.
func (s *Scraper) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	rep := &Report{Listed: map[string]int{}, Failures: map[string]string{}}
	var docs []models.LibraryDocument

	for page := 1; page <= opts.Pages; page++ {
		res := s.Agg.Search(ctx, catalog.SearchParams{
			Query:  opts.Query,
			Limit:  opts.Limit,
			Offset: (page - 1) * opts.Limit,
			Page:   page,
		})
		for name, msg := range res.ErrorMessages() {
			rep.Failures[name] = msg
		}
		for _, d := range res.Documents {
			rep.Listed[d.Source]++
		}
		s.log.Info().Int("page", page).Int("documents", len(res.Documents)).Int("failed_providers", len(res.Errors)).Msg("listed")
		if len(res.Documents) == 0 {
			break
		}
		docs = append(docs, res.Documents...)
	}

	rep.Detailed = s.enrich(ctx, docs, opts)

	n, err := s.Repo.Upsert(ctx, docs)
	if err != nil {
		return rep, fmt.Errorf("store documents: %w", err)
	}
	rep.Stored = n
	s.log.Info().Int("stored", n).Int("detailed", rep.Detailed).Msg("scrape finished")
	return rep, nil
}

// enrich replaces up to opts.Details listing entries in place with their
// detail form. Failed fetches keep the listing copy.
func (s *Scraper) enrich(ctx context.Context, docs []models.LibraryDocument, opts Options) int {
	if opts.Details <= 0 {
		return 0
	}

	var (
		mu       sync.Mutex
		detailed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range docs {
		if i >= opts.Details {
			break
		}
		i := i
		g.Go(func() error {
			d, err := s.Agg.GetByID(gctx, docs[i].Source, docs[i].ID)
			if err != nil {
				s.log.Warn().Str("source", docs[i].Source).Str("id", docs[i].ID).
					Str("error", apierr.FormatErrorMessage(err)).Msg("detail fetch failed")
				return nil
			}
			docs[i] = *d
			mu.Lock()
			detailed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return detailed
}
