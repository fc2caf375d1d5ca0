package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"mangalib/internal/validation"
	"mangalib/pkg/models"
)

var bookSorts = []string{"createdAt,desc", "createdAt,asc", "title,asc", "title,desc", "author,asc", "author,desc"}

type BookService struct {
	api API
	log zerolog.Logger
}

func NewBookService(api API, log zerolog.Logger) *BookService {
	return &BookService{api: api, log: log.With().Str("component", "book_service").Logger()}
}

func (s *BookService) List(ctx context.Context, page, size int, sort string) (*models.Page[models.Book], error) {
	if sort == "" {
		sort = DefaultSort
	}
	q, err := pageQuery(page, size, sort, bookSorts)
	if err != nil {
		return nil, err
	}

	var resp models.Envelope[models.Page[models.Book]]
	if err := s.api.Get(ctx, "/books/list", q, &resp); err != nil {
		logFailure(s.log, err, "BookService.List")
		return nil, err
	}
	return &resp.Data, nil
}

func (s *BookService) Search(ctx context.Context, keyword string, page, size int) (*models.Page[models.Book], error) {
	q, err := searchQuery(keyword, page, size)
	if err != nil {
		return nil, err
	}

	var resp models.Envelope[models.Page[models.Book]]
	if err := s.api.Get(ctx, "/books/search", q, &resp); err != nil {
		logFailure(s.log, err, "BookService.Search")
		return nil, err
	}
	return &resp.Data, nil
}

func (s *BookService) Info(ctx context.Context, id int64) (*models.Book, error) {
	var resp models.Envelope[models.Book]
	if err := s.api.Get(ctx, fmt.Sprintf("/books/%d/info", id), nil, &resp); err != nil {
		logFailure(s.log, err, "BookService.Info")
		return nil, err
	}
	return &resp.Data, nil
}

// Update sends only the non-blank fields, trimmed. Admin only.
func (s *BookService) Update(ctx context.Context, id int64, req models.UpdateBookRequest) (*models.Book, error) {
	if err := validation.Check(validation.EndpointUpdateBook, req); err != nil {
		return nil, err
	}

	clean := map[string]string{}
	if v := strings.TrimSpace(req.Title); v != "" {
		clean["title"] = v
	}
	if v := strings.TrimSpace(req.Author); v != "" {
		clean["author"] = v
	}
	if req.Description != "" {
		clean["description"] = strings.TrimSpace(req.Description)
	}

	var resp models.Envelope[models.Book]
	if err := s.api.Put(ctx, fmt.Sprintf("/books/%d/info", id), clean, &resp); err != nil {
		logFailure(s.log, err, "BookService.Update")
		return nil, relabel(err, map[int]string{404: "Book not found"})
	}
	return &resp.Data, nil
}

func (s *BookService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, fmt.Sprintf("/books/%d/delete", id), nil); err != nil {
		logFailure(s.log, err, "BookService.Delete")
		return relabel(err, map[int]string{403: "Chỉ Admin mới có thể xóa sách"})
	}
	return nil
}

func (s *BookService) Statistics(ctx context.Context, id int64) (*models.BookStatistics, error) {
	var resp models.Envelope[models.BookStatistics]
	if err := s.api.Get(ctx, fmt.Sprintf("/books/%d/statistics", id), nil, &resp); err != nil {
		logFailure(s.log, err, "BookService.Statistics")
		return nil, relabel(err, map[int]string{403: "Chỉ Admin mới có thể xem thống kê"})
	}
	return &resp.Data, nil
}
