package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mangalib/internal/apierr"
	"mangalib/internal/credstore"
	"mangalib/internal/monitor"
	"mangalib/pkg/utils"
)

// SessionNotifier is told when the server rejects the stored token.
type SessionNotifier interface {
	SessionExpired(ctx context.Context, details *apierr.Details)
}

type NotifierFunc func(ctx context.Context, details *apierr.Details)

func (f NotifierFunc) SessionExpired(ctx context.Context, d *apierr.Details) { f(ctx, d) }

type monitorIDKey struct{}

// MonitorID returns the call monitor id carried by a request context.
func MonitorID(ctx context.Context) string {
	id, _ := ctx.Value(monitorIDKey{}).(string)
	return id
}

// Client is the single HTTP entry point for backend and provider calls.
// Every transport or HTTP failure it returns is an *apierr.Error.
type Client struct {
	baseURL  string
	http     *http.Client
	store    credstore.Store
	monitor  *monitor.Monitor
	notifier SessionNotifier
	limiter  *rate.Limiter
	headers  http.Header
	debug    utils.DebugConfig
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Client)

// WithStore enables bearer auth and 401 teardown.
func WithStore(s credstore.Store) Option { return func(c *Client) { c.store = s } }

func WithMonitor(m *monitor.Monitor) Option { return func(c *Client) { c.monitor = m } }

func WithNotifier(n SessionNotifier) Option { return func(c *Client) { c.notifier = n } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithRateLimit throttles outgoing calls to rps with a burst of one.
// Zero or negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHeader adds a fixed header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = http.Header{}
		}
		c.headers.Set(key, value)
	}
}

func WithDebug(d utils.DebugConfig) Option { return func(c *Client) { c.debug = d } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

func New(profile utils.APIProfile, opts ...Option) *Client {
	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(profile.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "apiclient").Logger()
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Monitor() *monitor.Monitor { return c.monitor }

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// call is the per-request state shared by the three phases.
type call struct {
	info      apierr.RequestInfo
	monitorID string
	headers   http.Header
	body      []byte
	query     url.Values
	started   time.Time
}

// Do performs one JSON call. A 2xx body is decoded into out when out is
// non-nil; everything else comes back normalized.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	cl := &call{
		info:    apierr.RequestInfo{URL: path, Method: method, BaseURL: c.baseURL},
		query:   query,
		headers: http.Header{},
		started: c.now(),
	}

	req, err := c.prepare(ctx, cl, body)
	if err != nil {
		return c.fail(ctx, cl, apierr.Failure{Err: err})
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return c.fail(ctx, cl, apierr.Failure{Sent: true, TransportCode: transportCode(err), Err: err})
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, cl, apierr.Failure{Sent: true, TransportCode: transportCode(err), Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(ctx, cl, apierr.Failure{Sent: true, TransportCode: transportCode(err), Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(ctx, cl, apierr.Failure{Sent: true, Response: resp, Body: data})
	}

	// decode before closing the entry: an undecodable 2xx is a failed call
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return c.fail(ctx, cl, apierr.Failure{Sent: true, Response: resp, Body: data,
				Err: fmt.Errorf("decode %s %s: %w", cl.info.Method, path, err)})
		}
	}
	c.succeed(cl, resp.StatusCode, data)
	return nil
}

// prepare is the request phase: build, attach the token, open a monitor
// entry.
func (c *Client) prepare(ctx context.Context, cl *call, body any) (*http.Request, error) {
	if c.monitor != nil {
		cl.monitorID = c.monitor.StartCall(cl.info.URL, cl.info.Method)
		ctx = context.WithValue(ctx, monitorIDKey{}, cl.monitorID)
	}

	// absolute URLs (provider-supplied links) bypass the base URL
	target := cl.info.URL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	if len(cl.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + cl.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		cl.body = b
		reader = bytes.NewReader(b)
		if c.monitor != nil {
			c.monitor.SetRequestSize(cl.monitorID, len(b))
		}
	}

	for k, vs := range c.headers {
		cl.headers[k] = append([]string(nil), vs...)
	}
	cl.headers.Set("Content-Type", "application/json")
	cl.headers.Set("Accept", "application/json")
	if c.store != nil {
		if token, ok := c.store.GetItem(ctx, credstore.KeyAuthToken); ok && token != "" {
			cl.headers.Set("Authorization", "Bearer "+token)
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.info.Method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header = cl.headers.Clone()

	if c.debug.ConsoleLogs {
		c.log.Debug().
			Str("monitor_id", cl.monitorID).
			Str("method", strings.ToUpper(cl.info.Method)).
			Str("url", target).
			Msg("request")
	}
	return req, nil
}

func (c *Client) succeed(cl *call, status int, data []byte) {
	if c.monitor != nil {
		c.monitor.EndCall(cl.monitorID, status, len(data))
	}
	if c.debug.ConsoleLogs {
		c.log.Debug().
			Str("monitor_id", cl.monitorID).
			Int("status", status).
			Dur("took", c.now().Sub(cl.started)).
			Msg("response")
	}
}

// fail is the error phase. It always returns an *apierr.Error.
func (c *Client) fail(ctx context.Context, cl *call, f apierr.Failure) error {
	f.Config = cl.info
	f.MonitorID = cl.monitorID
	f.Now = c.now()
	f.RequestBody = cl.body
	f.Params = cl.query
	if f.Sent {
		f.RequestHeaders = cl.headers
	}

	apiErr := apierr.Normalize(f)

	if apiErr.Details.Status == http.StatusUnauthorized {
		c.teardownSession(ctx, apiErr.Details)
	}
	if c.monitor != nil {
		c.monitor.EndCallWithError(cl.monitorID, apiErr.Details)
	}

	ev := c.log.Warn()
	if apiErr.Kind == apierr.KindTransport {
		ev = c.log.Error()
	}
	ev.Str("monitor_id", cl.monitorID).
		Str("kind", apiErr.Kind.String()).
		Int("status", apiErr.Details.Status).
		Str("code", apiErr.Details.Code).
		Str("method", apiErr.Details.Config.Method).
		Str("url", cl.info.URL).
		Msg(apiErr.Message)

	return apiErr
}

// teardownSession drops the stored credentials after a 401. It must not
// mask the original error, so panics from the notifier are swallowed.
func (c *Client) teardownSession(ctx context.Context, d *apierr.Details) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("session teardown")
		}
	}()

	if c.store != nil {
		c.store.RemoveItem(ctx, credstore.KeyAuthToken)
		c.store.RemoveItem(ctx, credstore.KeyUserProfile)
	}
	if c.notifier != nil {
		c.notifier.SessionExpired(ctx, d)
	}
}
