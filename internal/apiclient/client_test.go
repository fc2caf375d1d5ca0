package apiclient

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mangalib/internal/apierr"
	"mangalib/internal/credstore"
	"mangalib/internal/monitor"
	"mangalib/pkg/utils"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) GetItem(ctx context.Context, key string) (string, bool) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1)
}

func (m *mockStore) SetItem(ctx context.Context, key, value string) { m.Called(ctx, key, value) }

func (m *mockStore) RemoveItem(ctx context.Context, key string) { m.Called(ctx, key) }

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *monitor.Monitor) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	mon := monitor.New(10)
	opts = append([]Option{WithMonitor(mon)}, opts...)
	return New(utils.APIProfile{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second}, opts...), mon
}

func TestSuccessAttachesTokenAndEndsCall(t *testing.T) {
	store := &mockStore{}
	store.On("GetItem", mock.Anything, credstore.KeyAuthToken).Return("abc", true)

	var gotAuth, gotAccept string
	var gotQuery url.Values
	c, mon := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query()
		assert.Equal(t, "/api/books/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"n":1}}`))
	}), WithStore(store))

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			N int `json:"n"`
		} `json:"data"`
	}
	err := c.Get(context.Background(), "/books/list", url.Values{"page": {"0"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "0", gotQuery.Get("page"))
	assert.Equal(t, 1, out.Data.N)

	logs := mon.Logs()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 200, *logs[0].Status)
	assert.Equal(t, len(`{"success":true,"data":{"n":1}}`), *logs[0].ResponseSize)
	store.AssertExpectations(t)
}

func TestNoTokenMeansNoHeader(t *testing.T) {
	var hadAuth bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}), WithStore(credstore.New(zerolog.Nop(), credstore.NewMemoryBackend())))

	require.NoError(t, c.Delete(context.Background(), "/x", nil))
	assert.False(t, hadAuth)
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	ctx := context.Background()
	mem := credstore.NewMemoryBackend()
	store := credstore.New(zerolog.Nop(), mem)
	store.SetItem(ctx, credstore.KeyAuthToken, "expired")
	store.SetItem(ctx, credstore.KeyUserProfile, `{"username":"a"}`)

	var notified *apierr.Details
	c, mon := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Token expired"}`))
	}), WithStore(store), WithNotifier(NotifierFunc(func(_ context.Context, d *apierr.Details) {
		notified = d
	})))

	err := c.Get(ctx, "/users/profile", nil, nil)
	require.Error(t, err)

	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindHTTP, apiErr.Kind)
	assert.Equal(t, 401, apiErr.Details.Status)
	assert.Equal(t, "Token expired", apiErr.Message)
	assert.True(t, apierr.IsAuthError(err))
	assert.Equal(t, "Bearer ***", apiErr.Details.Request.Headers["Authorization"])

	_, ok = store.GetItem(ctx, credstore.KeyAuthToken)
	assert.False(t, ok)
	_, ok = store.GetItem(ctx, credstore.KeyUserProfile)
	assert.False(t, ok)
	assert.Same(t, apiErr.Details, notified)

	e := mon.Logs()[0]
	assert.False(t, e.Success)
	assert.Same(t, apiErr.Details, e.Error)
	assert.Equal(t, "Monitor ID: "+e.ID, apiErr.Details.Context)
}

func TestNotifierPanicDoesNotMaskError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), WithNotifier(NotifierFunc(func(context.Context, *apierr.Details) { panic("boom") })))

	err := c.Get(context.Background(), "/x", nil, nil)
	assert.True(t, apierr.IsAuthError(err))
	assert.Equal(t, "Phiên đăng nhập đã hết hạn", apierr.FormatErrorMessage(err))
}

func TestValidationResponse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"validationErrors":[{"field":"email","message":"bad"}]}`))
	}))

	err := c.Post(context.Background(), "/auth/register", map[string]string{"email": "x"}, nil)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindValidation, apiErr.Kind)
	assert.Equal(t, apierr.MsgInvalidData, apiErr.Details.Message)
	assert.Equal(t, []any{map[string]any{"field": "email", "message": "bad"}}, apiErr.Details.ValidationErrors)
	assert.Equal(t, map[string]any{"email": "x"}, apiErr.Details.Request.Data)
	assert.Equal(t, "application/json", apiErr.Details.Response.Headers["Content-Type"])
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	mon := monitor.New(10)
	c := New(utils.APIProfile{BaseURL: "http://" + addr + "/api", Timeout: time.Second}, WithMonitor(mon))

	err = c.Get(context.Background(), "/books/list", nil, nil)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindTransport, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Details.Status)
	assert.Equal(t, apierr.CodeConnRefused, apiErr.Details.Code)
	assert.Equal(t, apierr.MsgConnRefused, apiErr.Message)
	assert.True(t, apierr.IsNetworkError(err))

	s := mon.Stats()
	assert.Equal(t, map[string]int{"network": 1}, s.ErrorsByType)
}

func TestTimeout(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/slow", nil, nil)
	assert.Equal(t, apierr.CodeTimeout, apierr.GetDetails(err).Code)
	assert.Equal(t, apierr.MsgTimeout, apierr.FormatErrorMessage(err))
}

func TestUndecodableSuccessBodyIsNormalized(t *testing.T) {
	c, mon := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))

	var out map[string]any
	err := c.Get(context.Background(), "/x", nil, &out)
	require.Error(t, err)

	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsAPIError())
	assert.Equal(t, apierr.KindHTTP, apiErr.Kind)
	assert.Equal(t, http.StatusOK, apiErr.Details.Status)
	assert.Equal(t, apierr.CodeBadResponse, apiErr.Details.Code)
	assert.Equal(t, apierr.MsgBadBody, apierr.FormatErrorMessage(err))
	assert.Equal(t, "<html>maintenance</html>", apiErr.Details.Data)

	stats := mon.Stats()
	assert.Equal(t, 1, stats.TotalCalls)
	assert.Equal(t, 0, stats.SuccessCalls)
	assert.Equal(t, 1, stats.ErrorCalls)
	logs := mon.Logs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	require.NotNil(t, logs[0].Error)
}

func TestBadRequestURL(t *testing.T) {
	c := New(utils.APIProfile{BaseURL: "http://[::1"})
	err := c.Get(context.Background(), "/x", nil, nil)
	d := apierr.GetDetails(err)
	require.NotNil(t, d)
	assert.Equal(t, 0, d.Status)
	assert.Equal(t, apierr.CodeUnknown, d.Code)
	assert.NotEmpty(t, d.Message)
}

func TestMonitorIDInContext(t *testing.T) {
	assert.Empty(t, MonitorID(context.Background()))

	c, mon := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1"})
	}))
	require.NoError(t, c.Get(context.Background(), "/x", nil, nil))
	assert.Regexp(t, `^api_\d+_`, mon.Logs()[0].ID)
}
