package scraper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mangalib/internal/catalog"
	"mangalib/pkg/database"
	"mangalib/pkg/models"
)

type providerMock struct {
	mock.Mock
	name string
}

func (p *providerMock) Name() string { return p.name }

func (p *providerMock) Search(ctx context.Context, sp catalog.SearchParams) ([]models.LibraryDocument, error) {
	args := p.Called(sp.Page)
	docs, _ := args.Get(0).([]models.LibraryDocument)
	return docs, args.Error(1)
}

func (p *providerMock) GetByID(ctx context.Context, id string) (*models.LibraryDocument, error) {
	args := p.Called(id)
	doc, _ := args.Get(0).(*models.LibraryDocument)
	return doc, args.Error(1)
}

func (p *providerMock) ListCategories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

func newRepo(t *testing.T) *catalog.Repo {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "scrape.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return catalog.NewRepo(db)
}

func listing() []models.LibraryDocument {
	return []models.LibraryDocument{
		{ID: "m1", Source: catalog.SourceMangaDex, Title: "One", CategoryID: catalog.CatAction, Access: models.AccessFree},
		{ID: "m2", Source: catalog.SourceMangaDex, Title: "Two", CategoryID: catalog.CatComedy, Access: models.AccessFree},
	}
}

func TestRunListsEnrichesAndStores(t *testing.T) {
	md := &providerMock{name: catalog.SourceMangaDex}
	md.On("Search", 1).Return(listing(), nil)
	md.On("Search", 2).Return([]models.LibraryDocument(nil), nil)

	detailed := listing()[0]
	detailed.Chapters = []models.Chapter{{ID: "c1", Chapter: "1"}, {ID: "c2", Chapter: "2"}}
	detailed.TotalChapters = 2
	md.On("GetByID", "m1").Return(&detailed, nil)

	nt := &providerMock{name: catalog.SourceNetTrom}
	nt.On("Search", mock.Anything).Return(nil, catalog.ErrNetTromUnavailable)

	repo := newRepo(t)
	s := New(catalog.NewAggregator(zerolog.Nop(), md, nt), repo, zerolog.Nop())

	rep, err := s.Run(context.Background(), Options{Limit: 2, Pages: 3, Details: 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{catalog.SourceMangaDex: 2}, rep.Listed)
	assert.Contains(t, rep.Failures, catalog.SourceNetTrom)
	assert.Equal(t, 1, rep.Detailed)
	assert.Equal(t, 2, rep.Stored)

	got, err := repo.Get(context.Background(), catalog.SourceMangaDex, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Chapters, 2)

	md.AssertExpectations(t)
	md.AssertNotCalled(t, "Search", 3)
	md.AssertNotCalled(t, "GetByID", "m2")
}

func TestRunKeepsListingWhenDetailsFail(t *testing.T) {
	md := &providerMock{name: catalog.SourceMangaDex}
	md.On("Search", 1).Return(listing(), nil)
	md.On("GetByID", mock.Anything).Return(nil, errors.New("boom"))

	repo := newRepo(t)
	rep, err := New(catalog.NewAggregator(zerolog.Nop(), md), repo, zerolog.Nop()).
		Run(context.Background(), Options{Details: 10, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Detailed)
	assert.Equal(t, 2, rep.Stored)
	assert.Empty(t, rep.Failures)
	md.AssertNumberOfCalls(t, "GetByID", 2)
}
