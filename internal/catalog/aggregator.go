package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mangalib/pkg/models"
)

// SearchResult holds every provider's documents in registration order plus
// the failures of the providers that did not answer.
type SearchResult struct {
	Documents []models.LibraryDocument `json:"documents"`
	Errors    map[string]error         `json:"-"`
}

// ErrorMessages renders Errors for JSON responses.
func (r SearchResult) ErrorMessages() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for name, err := range r.Errors {
		out[name] = err.Error()
	}
	return out
}

// Aggregator fans requests out to several providers. One broken provider
// never fails the whole request; documents are not de-duplicated across
// providers.
type Aggregator struct {
	providers []CatalogProvider
	log       zerolog.Logger
}

func NewAggregator(log zerolog.Logger, providers ...CatalogProvider) *Aggregator {
	return &Aggregator{providers: providers, log: log.With().Str("component", "aggregator").Logger()}
}

func (a *Aggregator) Providers() []CatalogProvider { return a.providers }

// Provider looks a provider up by name.
func (a *Aggregator) Provider(name string) (CatalogProvider, bool) {
	for _, p := range a.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (a *Aggregator) Search(ctx context.Context, params SearchParams) SearchResult {
	results := make([][]models.LibraryDocument, len(a.providers))
	errs := a.fanOut(ctx, func(ctx context.Context, i int, p CatalogProvider) error {
		docs, err := p.Search(ctx, params)
		results[i] = docs
		return err
	})

	out := SearchResult{Documents: []models.LibraryDocument{}, Errors: errs}
	for _, docs := range results {
		out.Documents = append(out.Documents, docs...)
	}
	return out
}

// Categories merges every provider's category tiles, keyed by provider.
func (a *Aggregator) Categories(ctx context.Context) (map[string][]models.Category, map[string]error) {
	results := make([][]models.Category, len(a.providers))
	errs := a.fanOut(ctx, func(ctx context.Context, i int, p CatalogProvider) error {
		cats, err := p.ListCategories(ctx)
		results[i] = cats
		return err
	})

	out := make(map[string][]models.Category, len(a.providers))
	for i, p := range a.providers {
		if _, failed := errs[p.Name()]; !failed {
			out[p.Name()] = results[i]
		}
	}
	return out, errs
}

// GetByID asks one named provider for a document.
func (a *Aggregator) GetByID(ctx context.Context, provider, id string) (*models.LibraryDocument, error) {
	p, ok := a.Provider(provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return p.GetByID(ctx, id)
}

// fanOut runs fn once per provider concurrently. Errors are collected per
// provider name rather than cancelling the siblings.
func (a *Aggregator) fanOut(ctx context.Context, fn func(context.Context, int, CatalogProvider) error) map[string]error {
	var (
		mu   sync.Mutex
		errs = map[string]error{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(a.providers) + 1)
	for i, p := range a.providers {
		i, p := i, p
		g.Go(func() error {
			if err := fn(gctx, i, p); err != nil {
				a.log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed")
				mu.Lock()
				errs[p.Name()] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
