package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangalib/internal/apiclient"
	"mangalib/internal/apierr"
	"mangalib/internal/credstore"
	"mangalib/internal/validation"
	"mangalib/pkg/models"
	"mangalib/pkg/utils"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setup(t *testing.T, mux *http.ServeMux) (*apiclient.Client, credstore.Store) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	store := credstore.New(zerolog.Nop(), credstore.NewMemoryBackend())
	return apiclient.New(utils.APIProfile{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second}, apiclient.WithStore(store)), store
}

func futureToken(t *testing.T) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "reader",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestLoginStoresSession(t *testing.T) {
	token := futureToken(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "reader", req.Username)
		writeJSON(w, 200, models.AuthResponse{Success: true, Data: models.Session{
			Token: token, Username: "reader", Email: "r@example.com", Role: models.RoleStandard,
		}})
	})
	api, store := setup(t, mux)
	auth := NewAuthService(api, store, zerolog.Nop())
	ctx := context.Background()

	assert.False(t, auth.IsLoggedIn(ctx))
	resp, err := auth.Login(ctx, models.LoginRequest{Username: "reader", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	got, ok := auth.Token(ctx)
	require.True(t, ok)
	assert.Equal(t, token, got)
	assert.True(t, auth.IsLoggedIn(ctx))
	require.NotNil(t, auth.StoredProfile(ctx))
	assert.Equal(t, "reader", auth.StoredProfile(ctx).Username)

	auth.Logout(ctx)
	assert.False(t, auth.IsLoggedIn(ctx))
	assert.Nil(t, auth.StoredProfile(ctx))
}

func TestLoginValidationNeverCallsServer(t *testing.T) {
	called := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) { called = true })
	api, store := setup(t, mux)

	_, err := NewAuthService(api, store, zerolog.Nop()).Login(context.Background(), models.LoginRequest{})
	var vErr *validation.Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Username or email is required\nPassword is required", err.Error())
	assert.False(t, called)
}

func TestRegisterValidationFromServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 422, map[string]any{"validationErrors": []any{map[string]string{"field": "email", "message": "taken"}}})
	})
	api, store := setup(t, mux)

	_, err := NewAuthService(api, store, zerolog.Nop()).Register(context.Background(), models.RegisterRequest{
		Username: "reader", Email: "r@example.com", Password: "secret1", FullName: "R",
	})
	assert.True(t, apierr.IsValidationError(err))
	assert.Equal(t, apierr.MsgInvalidData, apierr.FormatErrorMessage(err))
}

func TestRefreshProfileRelabelsFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, map[string]string{"message": "db down"})
	})
	api, store := setup(t, mux)

	_, err := NewAuthService(api, store, zerolog.Nop()).RefreshProfile(context.Background())
	assert.Equal(t, "Không thể refresh profile", apierr.FormatErrorMessage(err))
	assert.True(t, apierr.IsServerError(err))
}

func TestBookListParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "createdAt,desc", r.URL.Query().Get("sort"))
		writeJSON(w, 200, models.Envelope[models.Page[models.Book]]{Success: true, Data: models.Page[models.Book]{
			Content: []models.Book{{ID: 1, Title: "A"}}, TotalElements: 1,
		}})
	})
	api, _ := setup(t, mux)
	books := NewBookService(api, zerolog.Nop())
	ctx := context.Background()

	page, err := books.List(ctx, 2, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "A", page.Content[0].Title)

	_, err = books.List(ctx, -1, 10, "")
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = books.List(ctx, 0, 101, "")
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = books.List(ctx, 0, 10, "rating,desc")
	assert.ErrorIs(t, err, ErrInvalidSort)
	_, err = books.Search(ctx, "   ", 0, 10)
	assert.ErrorIs(t, err, ErrKeywordRequired)
}

func TestBookAdminRelabels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books/7/delete", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]string{"error": "forbidden"})
	})
	mux.HandleFunc("/api/books/7/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]string{"error": "missing"})
	})
	api, _ := setup(t, mux)
	books := NewBookService(api, zerolog.Nop())
	ctx := context.Background()

	err := books.Delete(ctx, 7)
	assert.Equal(t, "Chỉ Admin mới có thể xóa sách", apierr.FormatErrorMessage(err))
	assert.Equal(t, 403, apierr.GetDetails(err).Status)

	_, err = books.Update(ctx, 7, models.UpdateBookRequest{Title: "  New  "})
	assert.Equal(t, "Book not found", apierr.FormatErrorMessage(err))
}

func TestAdminForbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/manage/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]string{"message": "nope"})
	})
	api, _ := setup(t, mux)

	_, err := NewAdminService(api, zerolog.Nop()).ListUsers(context.Background(), 0, 10, "")
	assert.ErrorIs(t, err, apierr.ErrAdminRequired)
	assert.Equal(t, "Admin access required", apierr.FormatErrorMessage(err))

	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "nope", apiErr.Details.Message)
}

func TestCreateUserCleansAndSurfacesBackendError(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/manage/create", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 400, map[string]any{"details": map[string]string{"email": "Email already used", "username": "Username taken"}})
	})
	api, _ := setup(t, mux)

	_, err := NewAdminService(api, zerolog.Nop()).CreateUser(context.Background(), models.CreateUserRequest{
		Username: "new_user", Email: "New@Example.COM", Password: "secret1", FullName: " New ", Role: models.RoleStandard,
	})
	assert.Equal(t, "Email already used, Username taken", apierr.FormatErrorMessage(err))
	assert.Equal(t, "new@example.com", got["email"])
	assert.Equal(t, "New", got["fullName"])
	assert.Equal(t, true, got["isActive"])
}

func TestDeleteUserConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/manage/3/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(409)
	})
	api, _ := setup(t, mux)

	err := NewAdminService(api, zerolog.Nop()).DeleteUser(context.Background(), 3)
	assert.Equal(t, "Cannot delete user with existing data", apierr.FormatErrorMessage(err))
}
