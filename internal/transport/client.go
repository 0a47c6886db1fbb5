package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CredentialSource supplies the bearer credential for each request.
// An empty string means the request is sent unauthenticated.
type CredentialSource interface {
	Credential() string
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() string

// Credential calls f.
func (f CredentialFunc) Credential() string { return f() }

// Client is a thin HTTP client for the maintenance REST API.
// It injects the current bearer credential, marshals JSON bodies and
// normalizes failures into *Error. It never retries; callers decide.
type Client struct {
	baseURL    string
	creds      CredentialSource
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit paces outbound requests to perSec with a burst of one
// second's worth of requests. Zero or negative disables pacing.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new API client rooted at baseURL
// (e.g., https://fm.example.edu/api).
func NewClient(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET and returns the raw JSON response.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs an HTTP POST with a JSON body.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put performs an HTTP PUT with a JSON body.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Patch performs an HTTP PATCH with an optional JSON body.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	body interface{},
) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Do sends a request with an optional JSON body and returns the raw
// response. Non-2xx responses and network failures yield *Error.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.send(ctx, method, path, bodyReader, contentType)
}

// PostMultipart uploads a single file field as multipart/form-data.
func (c *Client) PostMultipart(
	ctx context.Context,
	path string,
	field string,
	filename string,
	content io.Reader,
) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	return c.send(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
}

// send builds the request, attaches the credential and normalizes
// the response.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	body io.Reader,
	contentType string,
) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Message: "request cancelled", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.credential(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return nil, &Error{
			Message: fmt.Sprintf("network error on %s %s", method, path),
			Err:     err,
		}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, &Error{
			Status:  resp.StatusCode,
			Message: "reading response body failed",
			Err:     readErr,
		}
	}

	log.WithField("status", resp.StatusCode).Debug("response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, respBody)
	}

	// No content to parse (e.g. 204).
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}

	return json.RawMessage(respBody), nil
}

func (c *Client) credential() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.Credential()
}
