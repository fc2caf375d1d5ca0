package mockapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mangalib/pkg/models"
)

var ErrNotFound = errors.New("not found")

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	VIPExpiresAt sql.NullString
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) Profile() models.UserProfile {
	p := models.UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsVIP:     u.Role == models.RoleVIP,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.VIPExpiresAt.Valid {
		v := u.VIPExpiresAt.String
		p.VIPExpiresAt = &v
	}
	return p
}

// Paging is a validated page request; Sort is already mapped to SQL.
type Paging struct {
	Page    int
	Size    int
	OrderBy string
}

func (p Paging) offset() int { return p.Page * p.Size }

func pageOf[T any](items []T, total int, p Paging) models.Page[T] {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return models.Page[T]{
		Content:          items,
		TotalElements:    total,
		TotalPages:       pages,
		First:            p.Page == 0,
		Last:             p.Page >= pages-1,
		NumberOfElements: len(items),
		Number:           p.Page,
		Size:             p.Size,
	}
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const userColumns = `id, username, email, password_hash, full_name, role, is_active, vip_expires_at, token_version, created_at, updated_at`

func scanUser(s interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive,
		&u.VIPExpiresAt, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u User) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, full_name, role, is_active, vip_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, u.VIPExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repo) userWhere(ctx context.Context, where string, arg any) (*User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.userWhere(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.userWhere(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByLogin accepts either a username or an email.
func (r *Repo) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	if strings.Contains(login, "@") {
		return r.GetUserByEmail(ctx, login)
	}
	return r.GetUserByUsername(ctx, login)
}

func (r *Repo) GetTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (r *Repo) exec(ctx context.Context, what, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", what, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateProfile(ctx context.Context, id int64, fullName, email string) error {
	return r.exec(ctx, "update profile", `
		UPDATE users
		SET full_name = COALESCE(NULLIF(?, ''), full_name),
		    email = COALESCE(NULLIF(?, ''), email),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, fullName, email, id)
}

func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx, "update password", `
		UPDATE users
		SET password_hash = ?, token_version = token_version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, passwordHash, id)
}

func (r *Repo) UpdateRole(ctx context.Context, id int64, role string, vipExpiresAt sql.NullString) error {
	return r.exec(ctx, "update role", `
		UPDATE users
		SET role = ?, vip_expires_at = ?, token_version = token_version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, role, vipExpiresAt, id)
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, "set status", `
		UPDATE users
		SET is_active = ?, token_version = token_version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, active, id)
}

func (r *Repo) DeleteUser(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}

// BooksUploadedBy counts books referencing username; such users cannot
// be deleted.
func (r *Repo) BooksUploadedBy(ctx context.Context, username string) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE uploaded_by = ?`, username).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// ListUsers filters by keyword on username, email or full name when
// keyword is non-empty.
func (r *Repo) ListUsers(ctx context.Context, keyword string, p Paging) (models.Page[models.UserProfile], error) {
	where, args := "", []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		where = " WHERE LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?"
		args = append(args, like, like, like)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return models.Page[models.UserProfile]{}, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+where+` ORDER BY `+p.OrderBy+` LIMIT ? OFFSET ?`,
		append(args, p.Size, p.offset())...)
	if err != nil {
		return models.Page[models.UserProfile]{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]models.UserProfile, 0, p.Size)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return models.Page[models.UserProfile]{}, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u.Profile())
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.UserProfile]{}, fmt.Errorf("rows err: %w", err)
	}
	return pageOf(items, total, p), nil
}

const bookColumns = `id, title, author, description, original_filename, total_pages, file_size, uploaded_by, created_at, updated_at`

func scanBook(s interface{ Scan(...any) error }) (*models.Book, error) {
	var (
		b                    models.Book
		createdAt, updatedAt time.Time
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.OriginalFilename, &b.TotalPages,
		&b.FileSize, &b.UploadedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	b.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return &b, nil
}

func (r *Repo) CreateBook(ctx context.Context, b models.Book) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO books (title, author, description, original_filename, total_pages, file_size, uploaded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.Title, b.Author, b.Description, b.OriginalFilename, b.TotalPages, b.FileSize, b.UploadedBy)
	if err != nil {
		return 0, fmt.Errorf("create book: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repo) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *Repo) UpdateBook(ctx context.Context, id int64, req models.UpdateBookRequest) error {
	return r.exec(ctx, "update book", `
		UPDATE books
		SET title = COALESCE(NULLIF(?, ''), title),
		    author = COALESCE(NULLIF(?, ''), author),
		    description = COALESCE(NULLIF(?, ''), description),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, req.Title, req.Author, req.Description, id)
}

func (r *Repo) DeleteBook(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete book", `DELETE FROM books WHERE id = ?`, id)
}

func (r *Repo) ListBooks(ctx context.Context, keyword string, p Paging) (models.Page[models.Book], error) {
	where, args := "", []any{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		where = " WHERE LOWER(title) LIKE ? OR LOWER(author) LIKE ?"
		args = append(args, like, like)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return models.Page[models.Book]{}, fmt.Errorf("count books: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT `+bookColumns+` FROM books`+where+` ORDER BY `+p.OrderBy+` LIMIT ? OFFSET ?`,
		append(args, p.Size, p.offset())...)
	if err != nil {
		return models.Page[models.Book]{}, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	items := make([]models.Book, 0, p.Size)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return models.Page[models.Book]{}, fmt.Errorf("scan book: %w", err)
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Book]{}, fmt.Errorf("rows err: %w", err)
	}
	return pageOf(items, total, p), nil
}

// Counts backs /admin/statistics.
func (r *Repo) Counts(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	queries := map[string]string{
		"totalUsers":  `SELECT COUNT(*) FROM users`,
		"activeUsers": `SELECT COUNT(*) FROM users WHERE is_active = 1`,
		"vipUsers":    `SELECT COUNT(*) FROM users WHERE role = 'VIP'`,
		"adminUsers":  `SELECT COUNT(*) FROM users WHERE role = 'ADMIN'`,
		"totalBooks":  `SELECT COUNT(*) FROM books`,
	}
	for key, q := range queries {
		var n int
		if err := r.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = n
	}
	return out, nil
}
