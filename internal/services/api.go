// Package services holds the typed backend operations (auth, books,
// admin) built on the API client.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mangalib/internal/apierr"
)

// API is the subset of *apiclient.Client the services use.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

var (
	ErrInvalidPage     = errors.New("Page number must be 0 or greater")
	ErrInvalidSize     = errors.New("Page size must be between 1 and 100")
	ErrInvalidSort     = errors.New("Invalid sort parameter")
	ErrKeywordRequired = errors.New("Search keyword is required")
	ErrKeywordTooLong  = errors.New("Search keyword must not exceed 100 characters")
)

const (
	DefaultPageSize = 10
	DefaultSort     = "createdAt,desc"
	maxPageSize     = 100
	maxKeywordLen   = 100
)

func pageQuery(page, size int, sort string, allowedSorts []string) (url.Values, error) {
	if page < 0 {
		return nil, ErrInvalidPage
	}
	if size < 1 || size > maxPageSize {
		return nil, ErrInvalidSize
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}}
	if allowedSorts != nil {
		ok := false
		for _, s := range allowedSorts {
			if s == sort {
				ok = true
				break
			}
		}
		if !ok {
			return nil, ErrInvalidSort
		}
		q.Set("sort", sort)
	}
	return q, nil
}

func searchQuery(keyword string, page, size int) (url.Values, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, ErrKeywordRequired
	}
	if len([]rune(keyword)) > maxKeywordLen {
		return nil, ErrKeywordTooLong
	}
	q, err := pageQuery(page, size, "", nil)
	if err != nil {
		return nil, err
	}
	q.Set("keyword", strings.TrimSpace(keyword))
	return q, nil
}

// relabel replaces the message of an API failure by status. 403 always
// becomes apierr.ErrAdminRequired unless the table overrides it.
func relabel(err error, byStatus map[int]string) error {
	d := apierr.GetDetails(err)
	if d == nil {
		return err
	}
	if msg, ok := byStatus[d.Status]; ok {
		return apierr.Wrap(err, msg)
	}
	if d.Status == 403 {
		return apierr.AdminRequired(err)
	}
	return err
}

// backendRejection surfaces the server's own explanation of a 400: the
// "error" field, else the "details" object values joined.
func backendRejection(err error) error {
	d := apierr.GetDetails(err)
	if d == nil || d.Status != 400 {
		return nil
	}
	data, ok := d.Data.(map[string]any)
	if !ok {
		return nil
	}
	if msg, ok := data["error"].(string); ok && msg != "" {
		return apierr.Wrap(err, msg)
	}
	if details, ok := data["details"].(map[string]any); ok && len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprint(details[k]))
		}
		return apierr.Wrap(err, strings.Join(parts, ", "))
	}
	return nil
}

func logFailure(log zerolog.Logger, err error, op string) {
	apierr.LogDetails(log, err, op)
}
