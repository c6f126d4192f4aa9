// ABOUTME: REST client for the marketplace admin API
// ABOUTME: Handles auth, rate limiting, request ids and error decoding for every collection
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/harperreed/devicedrop/models"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultTimeout = 15 * time.Second
)

// ListResponse is the body of a collection GET.
type ListResponse struct {
	Items      []*models.Record `json:"items"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// ErrorBody is the error envelope every non-2xx response carries.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Token is a static bearer token. Ignored when client credentials are set.
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration

	// HTTPClient is the base transport; tests pass httptest clients here.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to {BaseURL}/api/v1.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New builds a client. Authentication uses the OAuth2 client credentials
// grant when a client id, secret and token URL are configured, else the
// static token, else none.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api url is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseHTTP := opts.HTTPClient
	if baseHTTP == nil {
		baseHTTP = &http.Client{Timeout: timeout}
	}

	httpClient := baseHTTP
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseHTTP)
	switch {
	case opts.ClientID != "" && opts.ClientSecret != "" && opts.TokenURL != "":
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		httpClient = oauth2.NewClient(ctx, cc.TokenSource(ctx))
		httpClient.Timeout = timeout
	case opts.Token != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
		httpClient.Timeout = timeout
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/") + "/api/v1",
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithPrefix("api"),
	}, nil
}

func (c *Client) collectionURL(kind models.Kind) string {
	return c.base + "/" + kind.Collection()
}

func (c *Client) recordURL(kind models.Kind, id string) string {
	return c.collectionURL(kind) + "/" + url.PathEscape(id)
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, spec models.QuerySpec) (models.ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(spec.Page))
	q.Set("page_size", strconv.Itoa(spec.PageSize))
	if spec.Search != "" {
		q.Set("search", spec.Search)
	}
	for k, v := range spec.Filters {
		q.Set(k, v)
	}

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, c.collectionURL(spec.Kind)+"?"+q.Encode(), nil, nil, &resp); err != nil {
		return models.ListResult{}, err
	}
	for i, rec := range resp.Items {
		if rec == nil {
			return models.ListResult{}, fmt.Errorf("api returned an empty item at index %d of %s", i, spec.Kind.Collection())
		}
		if rec.Kind != spec.Kind {
			return models.ListResult{}, fmt.Errorf("api returned a %s in the %s collection", rec.Kind, spec.Kind.Collection())
		}
	}
	return models.ListResult{Items: resp.Items, Total: resp.Total, TotalPages: resp.TotalPages}, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, kind models.Kind, id string) (*models.Record, error) {
	var rec models.Record
	if err := c.do(ctx, http.MethodGet, c.recordURL(kind, id), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateStatus posts a moderation action.
func (c *Client) UpdateStatus(ctx context.Context, kind models.Kind, id string, change models.StatusChange) (*models.Record, error) {
	var rec models.Record
	if err := c.do(ctx, http.MethodPost, c.recordURL(kind, id)+"/status", change, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update patches payload fields.
func (c *Client) Update(ctx context.Context, kind models.Kind, id string, patch map[string]any) (*models.Record, error) {
	var rec models.Record
	if err := c.do(ctx, http.MethodPatch, c.recordURL(kind, id), patch, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create posts a new record with token as the idempotency key.
func (c *Client) Create(ctx context.Context, kind models.Kind, token string, payload models.Payload) (*models.Record, error) {
	headers := map[string]string{}
	if token != "" {
		headers[HeaderIdempotencyKey] = token
	}
	var rec models.Record
	if err := c.do(ctx, http.MethodPost, c.collectionURL(kind), payload, headers, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, kind models.Kind, id string) error {
	return c.do(ctx, http.MethodDelete, c.recordURL(kind, id), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, body any, headers map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request", "method", method, "path", req.URL.Path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, requestID)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response, requestID string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && (body.Error.Code != "" || body.Error.Message != "") {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}
