package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mangalib/pkg/models"
)

// Repo caches converted documents in sqlite, keyed by (source, id).
type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q          string // keyword in title/author
	Source     string
	CategoryID string
	Status     string
	Limit      int
	Offset     int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const documentColumns = `source, id, title, author, description, image, category_id, access, content,
	tags, chapters, status, year, rating, language, total_chapters`

// Upsert stores docs in one transaction and returns how many were written.
func (r *Repo) Upsert(ctx context.Context, docs []models.LibraryDocument) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (`+documentColumns+`, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source, id) DO UPDATE SET
		  title = excluded.title,
		  author = excluded.author,
		  description = excluded.description,
		  image = excluded.image,
		  category_id = excluded.category_id,
		  access = excluded.access,
		  content = excluded.content,
		  tags = excluded.tags,
		  chapters = CASE WHEN excluded.total_chapters > 0 OR documents.total_chapters = 0
		                  THEN excluded.chapters ELSE documents.chapters END,
		  status = excluded.status,
		  year = excluded.year,
		  rating = excluded.rating,
		  language = excluded.language,
		  total_chapters = CASE WHEN excluded.total_chapters > 0 OR documents.total_chapters = 0
		                  THEN excluded.total_chapters ELSE documents.total_chapters END,
		  fetched_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, d := range docs {
		if d.ID == "" || d.Source == "" {
			continue
		}
		tagsJSON, err := json.Marshal(orEmpty(d.Tags))
		if err != nil {
			return n, fmt.Errorf("marshal tags for %s: %w", d.ID, err)
		}
		chaptersJSON, err := json.Marshal(orEmpty(d.Chapters))
		if err != nil {
			return n, fmt.Errorf("marshal chapters for %s: %w", d.ID, err)
		}

		var year sql.NullInt64
		if d.Year > 0 {
			year = sql.NullInt64{Int64: int64(d.Year), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			d.Source, d.ID, d.Title, d.Author, d.Description, d.Image, d.CategoryID, d.Access, d.Content,
			string(tagsJSON), string(chaptersJSON), d.Status, year, d.Rating, d.Language, len(d.Chapters),
		); err != nil {
			return n, fmt.Errorf("exec upsert for %s/%s: %w", d.Source, d.ID, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// Get returns nil, nil when the document is not cached.
func (r *Repo) Get(ctx context.Context, source, id string) (*models.LibraryDocument, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE source = ? AND id = ?`, source, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan get: %w", err)
	}
	return d, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// List returns documents without their chapter lists.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.LibraryDocument, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.LibraryDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		d.Chapters = nil
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.LibraryDocument, error) {
	var (
		d                          models.LibraryDocument
		author, description, image sql.NullString
		content, status, rating    sql.NullString
		language                   sql.NullString
		tagsJSON, chaptersJSON     string
		year                       sql.NullInt64
	)
	if err := s.Scan(
		&d.Source, &d.ID, &d.Title, &author, &description, &image, &d.CategoryID, &d.Access, &content,
		&tagsJSON, &chaptersJSON, &status, &year, &rating, &language, &d.TotalChapters,
	); err != nil {
		return nil, err
	}

	d.Author = author.String
	d.Description = description.String
	d.Image = image.String
	d.Content = content.String
	d.Status = status.String
	d.Rating = rating.String
	d.Language = language.String
	if year.Valid {
		d.Year = int(year.Int64)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &d.Tags)
	_ = json.Unmarshal([]byte(chaptersJSON), &d.Chapters)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	base := `SELECT ` + documentColumns + ` FROM documents`
	if countOnly {
		base = `SELECT COUNT(*) FROM documents`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		like := "%" + strings.ToLower(kw) + "%"
		args = append(args, like, like)
	}
	if s := strings.TrimSpace(q.Source); s != "" {
		where = append(where, "source = ?")
		args = append(args, s)
	}
	if c := strings.TrimSpace(q.CategoryID); c != "" {
		where = append(where, "category_id = ?")
		args = append(args, c)
	}
	if s := strings.TrimSpace(q.Status); s != "" {
		where = append(where, "LOWER(status) = ?")
		args = append(args, strings.ToLower(s))
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		limit := q.Limit
		if limit <= 0 || limit > maxListLimit {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " ORDER BY title ASC, source ASC LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return sqlStr, args
}

const maxListLimit = 100

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
