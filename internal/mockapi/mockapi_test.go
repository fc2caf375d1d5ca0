package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangalib/internal/apiclient"
	"mangalib/internal/apierr"
	"mangalib/internal/credstore"
	"mangalib/internal/services"
	"mangalib/pkg/database"
	"mangalib/pkg/models"
	"mangalib/pkg/utils"
)

const adminPassword = "admin123"

type testEnv struct {
	url  string
	repo *Repo
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "mock.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepo(db)
	require.NoError(t, Seed(context.Background(), repo, adminPassword, zerolog.Nop()))

	r := gin.New()
	NewHandler(repo, TokenService{Secret: []byte("test-secret"), Issuer: "mock", Duration: time.Hour}, zerolog.Nop()).
		RegisterRoutes(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{url: srv.URL + "/api", repo: repo}
}

// client returns an API client with its own credential store.
func (e *testEnv) client() (*apiclient.Client, credstore.Store) {
	store := credstore.New(zerolog.Nop(), credstore.NewMemoryBackend())
	return apiclient.New(utils.APIProfile{BaseURL: e.url, Timeout: 5 * time.Second}, apiclient.WithStore(store)), store
}

func (e *testEnv) login(t *testing.T, username, password string) *apiclient.Client {
	t.Helper()
	api, store := e.client()
	resp, err := services.NewAuthService(api, store, zerolog.Nop()).Login(context.Background(),
		models.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	require.True(t, resp.Success)
	return api
}

func TestLoginAndProfile(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	api, store := env.client()
	auth := services.NewAuthService(api, store, zerolog.Nop())

	resp, err := auth.Login(ctx, models.LoginRequest{Username: "admin", Password: adminPassword})
	require.NoError(t, err)
	assert.True(t, resp.Data.IsAdmin)
	assert.Equal(t, models.RoleAdmin, resp.Data.Role)
	assert.True(t, auth.IsLoggedIn(ctx))

	p, err := auth.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)
	assert.Equal(t, SeedAdminEmail, p.Email)
	assert.True(t, p.IsActive)

	// email works as the login name too
	env.login(t, SeedAdminEmail, adminPassword)
}

func TestLoginRejected(t *testing.T) {
	env := newEnv(t)
	api, store := env.client()

	_, err := services.NewAuthService(api, store, zerolog.Nop()).Login(context.Background(),
		models.LoginRequest{Username: "admin", Password: "wrong-password"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierr.GetDetails(err).Status)
	assert.Equal(t, "Invalid username or password", apierr.GetDetails(err).Message)
}

func TestServerSideValidation(t *testing.T) {
	env := newEnv(t)
	api, _ := env.client()

	// bypass the client-side checks to reach the server rules
	err := api.Post(context.Background(), "/auth/register", map[string]string{
		"username": "x", "email": "not-an-email", "password": "123", "fullName": "X",
	}, nil)
	require.Error(t, err)
	assert.True(t, apierr.IsValidationError(err))
	d := apierr.GetDetails(err)
	assert.Equal(t, http.StatusUnprocessableEntity, d.Status)
	assert.Len(t, d.ValidationErrors, 3)
}

func TestRegisterAndChangePassword(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	api, store := env.client()
	auth := services.NewAuthService(api, store, zerolog.Nop())

	reg := models.RegisterRequest{Username: "reader_1", Email: "Reader@Example.com", Password: "secret1", FullName: "Reader One"}
	resp, err := auth.Register(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStandard, resp.Data.Role)
	assert.Equal(t, "reader@example.com", resp.Data.Email)

	_, err = auth.Register(ctx, reg)
	require.Error(t, err)
	assert.Equal(t, "Username already exists", apierr.GetDetails(err).Message)

	_, err = auth.Login(ctx, models.LoginRequest{Username: "reader_1", Password: "secret1"})
	require.NoError(t, err)

	p, err := auth.UpdateProfile(ctx, models.UpdateProfileRequest{FullName: "Reader Uno"})
	require.NoError(t, err)
	assert.Equal(t, "Reader Uno", p.FullName)

	err = auth.ChangePassword(ctx, "bad-old", "secret2")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apierr.GetDetails(err).Status)

	require.NoError(t, auth.ChangePassword(ctx, "secret1", "secret2"))

	// the token issued before the change is dead and the client drops it
	_, err = auth.Profile(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierr.GetDetails(err).Status)
	assert.False(t, auth.IsLoggedIn(ctx))

	env.login(t, "reader_1", "secret2")
}

func TestNonAdminIsForbidden(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	api, store := env.client()
	_, err := services.NewAuthService(api, store, zerolog.Nop()).Register(ctx,
		models.RegisterRequest{Username: "plain", Email: "plain@example.com", Password: "secret1", FullName: "Plain"})
	require.NoError(t, err)
	api = env.login(t, "plain", "secret1")

	_, err = services.NewAdminService(api, zerolog.Nop()).ListUsers(ctx, 0, 10, "")
	assert.ErrorIs(t, err, apierr.ErrAdminRequired)

	err = services.NewBookService(api, zerolog.Nop()).Delete(ctx, 1)
	assert.Equal(t, "Chỉ Admin mới có thể xóa sách", apierr.FormatErrorMessage(err))

	// reading books is open to any signed-in user
	page, err := services.NewBookService(api, zerolog.Nop()).List(ctx, 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, len(seedBooks), page.TotalElements)
}

func TestUserManagement(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	admin := services.NewAdminService(env.login(t, "admin", adminPassword), zerolog.Nop())

	created, err := admin.CreateUser(ctx, models.CreateUserRequest{
		Username: "vip_user", Email: "vip@example.com", Password: "secret1", FullName: "Vip", Role: models.RoleStandard,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = admin.CreateUser(ctx, models.CreateUserRequest{
		Username: "other", Email: "vip@example.com", Password: "secret1", FullName: "Other", Role: models.RoleStandard,
	})
	assert.Equal(t, "Email already exists", apierr.FormatErrorMessage(err))

	page, err := admin.ListUsers(ctx, 0, 1, "username,asc")
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.First)
	assert.False(t, page.Last)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "admin", page.Content[0].Username)

	found, err := admin.SearchUsers(ctx, "VIP", 0, 10)
	require.NoError(t, err)
	require.Len(t, found.Content, 1)
	assert.Equal(t, created.ID, found.Content[0].ID)

	expires := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	upgraded, err := admin.UpdateRole(ctx, created.ID, models.UpdateRoleRequest{Role: models.RoleVIP, VIPExpiresAt: expires})
	require.NoError(t, err)
	assert.True(t, upgraded.IsVIP)
	require.NotNil(t, upgraded.VIPExpiresAt)

	disabled, err := admin.SetStatus(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	api, store := env.client()
	_, err = services.NewAuthService(api, store, zerolog.Nop()).Login(ctx, models.LoginRequest{Username: "vip_user", Password: "secret1"})
	assert.Equal(t, http.StatusForbidden, apierr.GetDetails(err).Status)

	_, err = admin.UserInfo(ctx, 999)
	assert.Equal(t, "User not found", apierr.FormatErrorMessage(err))

	require.NoError(t, admin.DeleteUser(ctx, created.ID))
	_, err = admin.UserInfo(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, apierr.GetDetails(err).Status)

	stats, err := admin.SystemStatistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats["totalUsers"])
	assert.EqualValues(t, len(seedBooks), stats["totalBooks"])
}

func TestDeleteUserWithBooksConflicts(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	admin := services.NewAdminService(env.login(t, "admin", adminPassword), zerolog.Nop())

	u, err := admin.CreateUser(ctx, models.CreateUserRequest{
		Username: "uploader", Email: "up@example.com", Password: "secret1", FullName: "Up", Role: models.RoleStandard,
	})
	require.NoError(t, err)
	_, err = env.repo.CreateBook(ctx, models.Book{Title: "Mine", Author: "Me", UploadedBy: "uploader"})
	require.NoError(t, err)

	err = admin.DeleteUser(ctx, u.ID)
	assert.Equal(t, "Cannot delete user with existing data", apierr.FormatErrorMessage(err))
}

func TestBooks(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	api := env.login(t, "admin", adminPassword)
	books := services.NewBookService(api, zerolog.Nop())

	page, err := books.List(ctx, 0, 2, "title,asc")
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Dế Mèn Phiêu Lưu Ký", page.Content[0].Title)
	assert.Equal(t, 2, page.TotalPages)

	found, err := books.Search(ctx, "oda", 0, 10)
	require.NoError(t, err)
	require.Len(t, found.Content, 1)
	id := found.Content[0].ID

	b, err := books.Info(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "One Piece Artbook", b.Title)

	b, err = books.Update(ctx, id, models.UpdateBookRequest{Title: "  Color Walk  "})
	require.NoError(t, err)
	assert.Equal(t, "Color Walk", b.Title)
	assert.Equal(t, "Eiichiro Oda", b.Author)

	stats, err := books.Statistics(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalViews)

	require.NoError(t, books.Delete(ctx, id))
	_, err = books.Info(ctx, id)
	assert.Equal(t, http.StatusNotFound, apierr.GetDetails(err).Status)

	_, err = books.Update(ctx, id, models.UpdateBookRequest{Title: "Gone"})
	assert.Equal(t, "Book not found", apierr.FormatErrorMessage(err))

	err = api.Get(ctx, "/books/list", url.Values{"sort": {"pages,asc"}}, nil)
	assert.Equal(t, "Invalid sort parameter", apierr.GetDetails(err).Message)
}
