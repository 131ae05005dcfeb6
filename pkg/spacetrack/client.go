package spacetrack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"spacetrack/pkg/config"
	errs "spacetrack/pkg/errors"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/query"
	"spacetrack/pkg/ratelimit"
	"spacetrack/pkg/retry"
)

// DefaultBaseURL is the public catalog service.
const DefaultBaseURL = "https://www.space-track.org"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Identity   string
	Password   string
	LoginPath  string
	LogoutPath string
	UserAgent  string
	Timeout    time.Duration
}

// OptionsFromConfig maps the spacetrack config section onto Options.
func OptionsFromConfig(cfg config.SpaceTrackConfig) Options {
	return Options{
		BaseURL:    cfg.BaseURL,
		Identity:   cfg.Identity,
		Password:   cfg.Password,
		LoginPath:  cfg.LoginPath,
		LogoutPath: cfg.LogoutPath,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
	}
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.LoginPath == "" {
		o.LoginPath = "ajaxauth/login"
	}
	if o.LogoutPath == "" {
		o.LogoutPath = "ajaxauth/logout"
	}
	if o.UserAgent == "" {
		o.UserAgent = "spacetrack-go/1.0"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// Client talks to the catalog over one cookie session. Every request is
// admitted by the shared limiter; retries happen outside it so each attempt
// is admitted on its own.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    *url.URL
	opts       Options
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger

	mu       sync.Mutex
	loggedIn bool
	session  uint64 // bumped on every successful login
	loginMu  sync.Mutex
}

// NewClient creates a catalog client. limiter may be shared with other
// clients that must respect the same budget.
func NewClient(opts Options, limiter ratelimit.Limiter, log logger.Logger) (*Client, error) {
	opts.applyDefaults()
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		return nil, errors.New("spacetrack: limiter is required")
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("spacetrack: invalid base url %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("spacetrack: cookie jar: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = log

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent": opts.UserAgent,
			"Accept":     "application/json, text/plain, */*",
		},
		baseURL: base,
		opts:    opts,
		limiter: limiter,
		retry:   retryCfg,
		logger:  log.WithField("component", "spacetrack"),
	}, nil
}

// SetRetry replaces the retry policy. A nil config disables retries.
func (c *Client) SetRetry(cfg *retry.Config) {
	if cfg == nil {
		cfg = &retry.Config{MaxAttempts: 1, Backoff: &retry.ConstantBackoff{}}
	}
	c.retry = cfg
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// SetCredentials replaces the login identity and password.
func (c *Client) SetCredentials(identity, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Identity = identity
	c.opts.Password = password
}

// LoggedIn reports whether the session holds a login cookie.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) credentials() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Identity, c.opts.Password
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
	url    string
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	return u.String()
}

// send performs one request through the limiter with retries. form, when
// non-nil, is sent as an urlencoded POST body.
func (c *Client) send(ctx context.Context, method, path string, form url.Values) (*response, error) {
	target := c.resolve(path)

	attempt := func(ctx context.Context) (*response, error) {
		return ratelimit.Do(ctx, c.limiter, func(ctx context.Context) (*response, error) {
			var body io.Reader
			if form != nil {
				body = strings.NewReader(form.Encode())
			}
			req, err := http.NewRequestWithContext(ctx, method, target, body)
			if err != nil {
				return nil, errs.Wrap(err, errs.ErrorTypeUnknown, 0, "failed to create request")
			}
			if form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			resp, err := c.doRequest(req)
			if err != nil {
				return nil, err
			}
			if err := c.checkResponseStatus(resp); err != nil {
				return nil, err
			}
			return resp, nil
		})
	}

	return retry.DoWithResult(ctx, attempt, c.retry)
}

// doRequest performs an HTTP request with the configured headers and reads
// the whole body.
func (c *Client) doRequest(req *http.Request) (*response, error) {
	c.mu.Lock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.mu.Unlock()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, 0, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body")
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
		url:    req.URL.String(),
	}, nil
}

// checkResponseStatus maps the HTTP status onto a typed error
func (c *Client) checkResponseStatus(resp *response) error {
	fields := map[string]interface{}{
		"status": resp.status,
		"url":    resp.url,
	}

	switch {
	case resp.status < 400:
		return nil
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errs.ErrorTypeAuth, resp.status, "authentication required")
	case resp.status == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.New(errs.ErrorTypeNotFound, resp.status, "resource not found")
	case resp.status == http.StatusTooManyRequests:
		c.logger.WarnWithFields("upstream rate limit exceeded", fields)
		return errs.New(errs.ErrorTypeRateLimit, resp.status, "rate limit exceeded")
	case resp.status >= 500:
		c.logger.ErrorWithFields("server error", fields)
		return errs.New(errs.ErrorTypeServerError, resp.status, "server error")
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return errs.New(errs.ErrorTypeUnknown, resp.status, fmt.Sprintf("unexpected status code: %d: %s", resp.status, preview(resp.body)))
	}
}

var loginFailed = []byte(`"Login":"Failed"`)

// Login opens a session with the configured identity and password.
func (c *Client) Login(ctx context.Context) error {
	identity, password := c.credentials()
	if identity == "" || password == "" {
		return errs.New(errs.ErrorTypeAuth, 0, "identity and password are required")
	}

	resp, err := c.send(ctx, http.MethodPost, c.opts.LoginPath, url.Values{
		"identity": {identity},
		"password": {password},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if bytes.Contains(bytes.ReplaceAll(resp.body, []byte(" "), nil), loginFailed) {
		c.logger.WarnWithFields("login rejected", map[string]interface{}{"identity": identity})
		return errs.New(errs.ErrorTypeAuth, resp.status, "login rejected: check identity and password")
	}

	c.mu.Lock()
	c.loggedIn = true
	c.session++
	c.mu.Unlock()

	c.logger.InfoWithFields("Successfully logged in", map[string]interface{}{"identity": identity})
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, c.opts.LogoutPath, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()

	c.logger.InfoWithFields("Logged out", map[string]interface{}{
		"response": strings.TrimSpace(preview(resp.body)),
	})
	return nil
}

// Close logs out if a session is open.
func (c *Client) Close(ctx context.Context) error {
	if !c.LoggedIn() {
		return nil
	}
	return c.Logout(ctx)
}

// Query runs q and decodes the response according to its format. A client
// with credentials logs in on first use and once more if the session has
// expired.
func (c *Client) Query(ctx context.Context, q *query.Builder) (*Result, error) {
	if q == nil {
		q = query.New(query.EntityTLE)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	path := q.Path()
	seen := c.currentSession()
	resp, err := c.send(ctx, http.MethodGet, path, nil)

	var apiErr *errs.Error
	if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth && c.canLogin() {
		if loginErr := c.relogin(ctx, seen); loginErr != nil {
			return nil, loginErr
		}
		resp, err = c.send(ctx, http.MethodGet, path, nil)
	}
	if err != nil {
		logger.LogQuery(c.logger, q.Entity(), path, 0, err)
		return nil, err
	}

	result := c.decode(q, path, resp)
	logger.LogQuery(c.logger, q.Entity(), path, len(resp.body), nil)
	return result, nil
}

func (c *Client) canLogin() bool {
	identity, password := c.credentials()
	return identity != "" && password != ""
}

// ensureSession logs in once for all concurrent callers.
func (c *Client) ensureSession(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if c.LoggedIn() || !c.canLogin() {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) currentSession() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// relogin replaces the session seen by a caller whose query was rejected.
// When another caller already replaced it, the new session is reused.
func (c *Client) relogin(ctx context.Context, seen uint64) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.mu.Lock()
	if c.session != seen && c.loggedIn {
		c.mu.Unlock()
		return nil
	}
	c.loggedIn = false
	c.mu.Unlock()

	c.logger.Info("session rejected, logging in again")
	return c.Login(ctx)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
