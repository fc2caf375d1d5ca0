// Package mockapi is a local stand-in for the library backend: the auth,
// profile, book and user-management endpoints the services call, backed
// by sqlite.
package mockapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"mangalib/internal/validation"
	"mangalib/pkg/models"
)

var (
	userSorts = map[string]string{
		"createdAt,desc": "created_at DESC, id DESC",
		"createdAt,asc":  "created_at ASC, id ASC",
		"username,asc":   "username ASC",
		"username,desc":  "username DESC",
		"email,asc":      "email ASC",
		"email,desc":     "email DESC",
	}
	bookSorts = map[string]string{
		"createdAt,desc": "created_at DESC, id DESC",
		"createdAt,asc":  "created_at ASC, id ASC",
		"title,asc":      "title ASC, id ASC",
		"title,desc":     "title DESC, id DESC",
		"author,asc":     "author ASC, id ASC",
		"author,desc":    "author DESC, id DESC",
	}
)

const (
	defaultSort = "createdAt,desc"
	maxPageSize = 100
)

type Handler struct {
	Repo   *Repo
	Tokens TokenService
	log    zerolog.Logger
}

func NewHandler(repo *Repo, tokens TokenService, log zerolog.Logger) *Handler {
	return &Handler{Repo: repo, Tokens: tokens, log: log.With().Str("component", "mock_api").Logger()}
}

// RegisterRoutes mounts everything under rg, normally /api.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/register", h.register)

	authed := rg.Group("", Authenticate(h.Tokens, h.Repo))
	authed.GET("/users/profile", h.profile)
	authed.PUT("/users/profile", h.updateProfile)
	authed.POST("/users/change-password", h.changePassword)

	authed.GET("/books/list", h.listBooks)
	authed.GET("/books/search", h.searchBooks)
	authed.GET("/books/:id/info", h.bookInfo)

	admin := authed.Group("", RequireAdmin())
	admin.PUT("/books/:id/info", h.updateBook)
	admin.DELETE("/books/:id/delete", h.deleteBook)
	admin.GET("/books/:id/statistics", h.bookStatistics)

	admin.POST("/users/manage/create", h.createUser)
	admin.GET("/users/manage/list", h.listUsers)
	admin.GET("/users/manage/search", h.searchUsers)
	admin.GET("/users/manage/:id/info", h.userInfo)
	admin.POST("/users/manage/:id/role", h.updateRole)
	admin.POST("/users/manage/:id/status", h.setStatus)
	admin.DELETE("/users/manage/:id/delete", h.deleteUser)

	admin.GET("/admin/statistics", h.statistics)
}

func success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message, "error": message})
}

func serverError(c *gin.Context, log zerolog.Logger, err error, op string) {
	log.Error().Err(err).Str("op", op).Msg("request failed")
	fail(c, http.StatusInternalServerError, "Internal server error")
}

// bindValid decodes the body and runs the endpoint's rules; on failure it
// has already written the response.
func bindValid[T any](c *gin.Context, endpoint string) (T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return req, false
	}
	res := validation.Validate(endpoint, req)
	if res.Valid {
		return req, true
	}
	list := make([]gin.H, 0, len(res.Errors))
	for _, f := range res.Fields() {
		list = append(list, gin.H{"field": f, "message": res.Errors[f]})
	}
	// no message key: clients read it before validationErrors
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success":          false,
		"validationErrors": list,
	})
	return req, false
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func paging(c *gin.Context, sorts map[string]string) (Paging, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		fail(c, http.StatusBadRequest, "Page number must be 0 or greater")
		return Paging{}, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > maxPageSize {
		fail(c, http.StatusBadRequest, "Page size must be between 1 and 100")
		return Paging{}, false
	}
	order, found := sorts[c.DefaultQuery("sort", defaultSort)]
	if !found {
		fail(c, http.StatusBadRequest, "Invalid sort parameter")
		return Paging{}, false
	}
	return Paging{Page: page, Size: size, OrderBy: order}, true
}

func (h *Handler) session(u *User) (models.Session, error) {
	token, _, err := h.Tokens.Sign(u)
	if err != nil {
		return models.Session{}, err
	}
	p := u.Profile()
	return models.Session{
		Token:        token,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		IsVIP:        p.IsVIP,
		IsAdmin:      u.Role == models.RoleAdmin,
		VIPExpiresAt: p.VIPExpiresAt,
	}, nil
}

func (h *Handler) login(c *gin.Context) {
	req, valid := bindValid[models.LoginRequest](c, validation.EndpointLogin)
	if !valid {
		return
	}

	u, err := h.Repo.GetUserByLogin(c.Request.Context(), req.Username)
	if err != nil {
		serverError(c, h.log, err, "login")
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if !u.IsActive {
		fail(c, http.StatusForbidden, "Account is disabled")
		return
	}

	s, err := h.session(u)
	if err != nil {
		serverError(c, h.log, err, "login")
		return
	}
	success(c, http.StatusOK, "Login successful", s)
}

func (h *Handler) register(c *gin.Context) {
	req, valid := bindValid[models.RegisterRequest](c, validation.EndpointRegister)
	if !valid {
		return
	}
	u, status, msg := h.newUser(c, strings.TrimSpace(req.Username), req.Email, req.Password, req.FullName, models.RoleStandard, true, sql.NullString{})
	if u == nil {
		if status != 0 {
			fail(c, status, msg)
		}
		return
	}

	s, err := h.session(u)
	if err != nil {
		serverError(c, h.log, err, "register")
		return
	}
	success(c, http.StatusOK, "Registration successful", s)
}

// newUser enforces uniqueness, hashes and stores. A nil user with status
// 0 means the response was already written.
func (h *Handler) newUser(c *gin.Context, username, email, password, fullName, role string, active bool, vip sql.NullString) (*User, int, string) {
	ctx := c.Request.Context()
	email = strings.ToLower(strings.TrimSpace(email))

	if u, _ := h.Repo.GetUserByUsername(ctx, username); u != nil {
		return nil, http.StatusBadRequest, "Username already exists"
	}
	if u, _ := h.Repo.GetUserByEmail(ctx, email); u != nil {
		return nil, http.StatusBadRequest, "Email already exists"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		serverError(c, h.log, err, "hash password")
		return nil, 0, ""
	}
	id, err := h.Repo.CreateUser(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsActive:     active,
		VIPExpiresAt: vip,
	})
	if err != nil {
		serverError(c, h.log, err, "create user")
		return nil, 0, ""
	}
	u, err := h.Repo.GetUserByID(ctx, id)
	if err != nil || u == nil {
		serverError(c, h.log, errors.Join(err, ErrNotFound), "reload user")
		return nil, 0, ""
	}
	h.log.Info().Int64("user_id", id).Str("username", username).Str("role", role).Msg("user created")
	return u, 0, ""
}

func (h *Handler) currentUser(c *gin.Context) *User {
	claims := MustGetClaims(c)
	if claims == nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return nil
	}
	u, err := h.Repo.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		serverError(c, h.log, err, "current user")
		return nil
	}
	if u == nil {
		fail(c, http.StatusNotFound, "User not found")
		return nil
	}
	return u
}

func (h *Handler) profile(c *gin.Context) {
	if u := h.currentUser(c); u != nil {
		success(c, http.StatusOK, "", u.Profile())
	}
}

func (h *Handler) updateProfile(c *gin.Context) {
	req, valid := bindValid[models.UpdateProfileRequest](c, validation.EndpointUpdateProfile)
	if !valid {
		return
	}
	u := h.currentUser(c)
	if u == nil {
		return
	}
	ctx := c.Request.Context()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" && email != u.Email {
		if other, _ := h.Repo.GetUserByEmail(ctx, email); other != nil {
			fail(c, http.StatusBadRequest, "Email already exists")
			return
		}
	}
	if err := h.Repo.UpdateProfile(ctx, u.ID, strings.TrimSpace(req.FullName), email); err != nil {
		serverError(c, h.log, err, "update profile")
		return
	}
	if u = h.currentUser(c); u != nil {
		success(c, http.StatusOK, "Profile updated", u.Profile())
	}
}

func (h *Handler) changePassword(c *gin.Context) {
	req, valid := bindValid[models.ChangePasswordRequest](c, validation.EndpointChangePassword)
	if !valid {
		return
	}
	u := h.currentUser(c)
	if u == nil {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)) != nil {
		fail(c, http.StatusBadRequest, "Old password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		serverError(c, h.log, err, "hash password")
		return
	}
	// bumps token_version: every token issued so far stops working
	if err := h.Repo.UpdatePasswordAndBumpTokenVersion(c.Request.Context(), u.ID, string(hash)); err != nil {
		serverError(c, h.log, err, "change password")
		return
	}
	success(c, http.StatusOK, "Password changed", nil)
}

func (h *Handler) listBooks(c *gin.Context) {
	p, valid := paging(c, bookSorts)
	if !valid {
		return
	}
	page, err := h.Repo.ListBooks(c.Request.Context(), "", p)
	if err != nil {
		serverError(c, h.log, err, "list books")
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *Handler) searchBooks(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		fail(c, http.StatusBadRequest, "Search keyword is required")
		return
	}
	p, valid := paging(c, bookSorts)
	if !valid {
		return
	}
	page, err := h.Repo.ListBooks(c.Request.Context(), keyword, p)
	if err != nil {
		serverError(c, h.log, err, "search books")
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *Handler) loadBook(c *gin.Context) *models.Book {
	id, valid := paramID(c)
	if !valid {
		return nil
	}
	b, err := h.Repo.GetBook(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.log, err, "get book")
		return nil
	}
	if b == nil {
		fail(c, http.StatusNotFound, "Book not found")
		return nil
	}
	return b
}

func (h *Handler) bookInfo(c *gin.Context) {
	if b := h.loadBook(c); b != nil {
		success(c, http.StatusOK, "", b)
	}
}

func (h *Handler) updateBook(c *gin.Context) {
	req, valid := bindValid[models.UpdateBookRequest](c, validation.EndpointUpdateBook)
	if !valid {
		return
	}
	b := h.loadBook(c)
	if b == nil {
		return
	}
	if err := h.Repo.UpdateBook(c.Request.Context(), b.ID, req); err != nil {
		serverError(c, h.log, err, "update book")
		return
	}
	if b = h.loadBook(c); b != nil {
		success(c, http.StatusOK, "Book updated", b)
	}
}

func (h *Handler) deleteBook(c *gin.Context) {
	b := h.loadBook(c)
	if b == nil {
		return
	}
	if err := h.Repo.DeleteBook(c.Request.Context(), b.ID); err != nil {
		serverError(c, h.log, err, "delete book")
		return
	}
	h.log.Info().Int64("book_id", b.ID).Msg("book deleted")
	success(c, http.StatusOK, "Book deleted", nil)
}

// bookStatistics has no access log behind it; the counters stay at zero.
func (h *Handler) bookStatistics(c *gin.Context) {
	b := h.loadBook(c)
	if b == nil {
		return
	}
	success(c, http.StatusOK, "", models.BookStatistics{
		LastAccessedAt: b.UpdatedAt,
		PopularPages:   []int{},
	})
}

// vipExpiry returns the stored expiry for role; only VIP keeps one.
func vipExpiry(role, raw string) sql.NullString {
	if role != models.RoleVIP {
		return sql.NullString{}
	}
	t, parsed := validation.ParseDate(raw)
	if !parsed {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func (h *Handler) createUser(c *gin.Context) {
	req, valid := bindValid[models.CreateUserRequest](c, validation.EndpointCreateUser)
	if !valid {
		return
	}
	active := req.IsActive == nil || *req.IsActive
	u, status, msg := h.newUser(c, strings.TrimSpace(req.Username), req.Email, req.Password, req.FullName,
		req.Role, active, vipExpiry(req.Role, req.VIPExpiresAt))
	if u == nil {
		if status != 0 {
			fail(c, status, msg)
		}
		return
	}
	success(c, http.StatusCreated, "User created", u.Profile())
}

func (h *Handler) listUsers(c *gin.Context) {
	p, valid := paging(c, userSorts)
	if !valid {
		return
	}
	page, err := h.Repo.ListUsers(c.Request.Context(), "", p)
	if err != nil {
		serverError(c, h.log, err, "list users")
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *Handler) searchUsers(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		fail(c, http.StatusBadRequest, "Search keyword is required")
		return
	}
	p, valid := paging(c, userSorts)
	if !valid {
		return
	}
	page, err := h.Repo.ListUsers(c.Request.Context(), keyword, p)
	if err != nil {
		serverError(c, h.log, err, "search users")
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *Handler) loadUser(c *gin.Context) *User {
	id, valid := paramID(c)
	if !valid {
		return nil
	}
	u, err := h.Repo.GetUserByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.log, err, "get user")
		return nil
	}
	if u == nil {
		fail(c, http.StatusNotFound, "User not found")
		return nil
	}
	return u
}

func (h *Handler) reloadUser(c *gin.Context, id int64, message string) {
	u, err := h.Repo.GetUserByID(c.Request.Context(), id)
	if err != nil || u == nil {
		serverError(c, h.log, errors.Join(err, ErrNotFound), "reload user")
		return
	}
	success(c, http.StatusOK, message, u.Profile())
}

func (h *Handler) userInfo(c *gin.Context) {
	if u := h.loadUser(c); u != nil {
		success(c, http.StatusOK, "", u.Profile())
	}
}

func (h *Handler) updateRole(c *gin.Context) {
	req, valid := bindValid[models.UpdateRoleRequest](c, validation.EndpointUpdateRole)
	if !valid {
		return
	}
	u := h.loadUser(c)
	if u == nil {
		return
	}
	if err := h.Repo.UpdateRole(c.Request.Context(), u.ID, req.Role, vipExpiry(req.Role, req.VIPExpiresAt)); err != nil {
		serverError(c, h.log, err, "update role")
		return
	}
	h.log.Info().Int64("user_id", u.ID).Str("role", req.Role).Msg("role updated")
	h.reloadUser(c, u.ID, "Role updated")
}

type statusReq struct {
	IsActive *bool `json:"isActive"`
}

func (h *Handler) setStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		fail(c, http.StatusBadRequest, "isActive is required")
		return
	}
	u := h.loadUser(c)
	if u == nil {
		return
	}
	if claims := MustGetClaims(c); claims != nil && claims.UserID == u.ID && !*req.IsActive {
		fail(c, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}
	if err := h.Repo.SetActive(c.Request.Context(), u.ID, *req.IsActive); err != nil {
		serverError(c, h.log, err, "set status")
		return
	}
	h.reloadUser(c, u.ID, "Status updated")
}

func (h *Handler) deleteUser(c *gin.Context) {
	u := h.loadUser(c)
	if u == nil {
		return
	}
	ctx := c.Request.Context()
	if claims := MustGetClaims(c); claims != nil && claims.UserID == u.ID {
		fail(c, http.StatusBadRequest, "Cannot delete your own account")
		return
	}
	n, err := h.Repo.BooksUploadedBy(ctx, u.Username)
	if err != nil {
		serverError(c, h.log, err, "delete user")
		return
	}
	if n > 0 {
		fail(c, http.StatusConflict, "User has uploaded books")
		return
	}
	if err := h.Repo.DeleteUser(ctx, u.ID); err != nil {
		serverError(c, h.log, err, "delete user")
		return
	}
	h.log.Info().Int64("user_id", u.ID).Msg("user deleted")
	success(c, http.StatusOK, "User deleted", nil)
}

func (h *Handler) statistics(c *gin.Context) {
	counts, err := h.Repo.Counts(c.Request.Context())
	if err != nil {
		serverError(c, h.log, err, "statistics")
		return
	}
	success(c, http.StatusOK, "", counts)
}
