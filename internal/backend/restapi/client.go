// Package restapi implements the service.Service interface over the task
// service's REST/JSON API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"taskdesk/internal/config"
	"taskdesk/internal/logging"
	"taskdesk/internal/service"
)

const (
	// APITimeout is the default timeout for API calls.
	APITimeout = config.DefaultAPITimeout

	// RequestIDHeader carries a fresh id per call for log correlation.
	RequestIDHeader = "X-Request-ID"

	// maxResponseBytes is the largest response body accepted.
	maxResponseBytes = 8 << 20
)

// Client implements service.Service over HTTP.
// It holds no state across calls beyond its fixed configuration.
type Client struct {
	baseURL   string
	http      *http.Client
	headers   http.Header
	timeout   time.Duration
	token     string
	log       *logrus.Entry
	requestID func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeader adds a default header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithToken attaches a static bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRequestIDs overrides the request id generator (for testing).
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// New creates a client from configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	base := []Option{
		WithTimeout(cfg.APITimeout()),
		WithToken(cfg.Settings.API.Token),
		WithLogger(cfg.Logger),
	}
	for k, v := range cfg.Settings.API.Headers {
		base = append(base, WithHeader(k, v))
	}
	return NewWithBaseURL(cfg.APIURL(), append(base, opts...)...)
}

// NewWithBaseURL creates a client for baseURL, e.g. "http://localhost:5000/api".
func NewWithBaseURL(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("restapi: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		http:      &http.Client{},
		headers:   make(http.Header),
		timeout:   APITimeout,
		log:       logging.Discard(),
		requestID: uuid.NewString,
	}
	c.headers.Set("Content-Type", "application/json")
	c.headers.Set("Accept", "application/json")
	c.headers.Set("User-Agent", config.AppName)
	for _, opt := range opts {
		opt(c)
	}
	if c.token != "" {
		hc := *c.http
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   hc.Transport,
		}
		c.http = &hc
	}
	return c, nil
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTasks returns tasks matching filters.
func (c *Client) ListTasks(ctx context.Context, filters service.TaskFilters) ([]service.Task, error) {
	query := url.Values{}
	if filters.Status != "" {
		query.Set("status", string(filters.Status))
	}
	if filters.Priority != "" {
		query.Set("priority", string(filters.Priority))
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		query.Set("search", s)
	}
	var tasks []service.Task
	if err := c.do(ctx, "restapi.ListTasks", http.MethodGet, "/tasks", query, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// GetTask returns a single task.
func (c *Client) GetTask(ctx context.Context, id string) (service.Task, error) {
	var task service.Task
	err := c.do(ctx, "restapi.GetTask", http.MethodGet, taskPath(id), nil, nil, &task)
	return task, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, input service.CreateTaskInput) (service.Task, error) {
	var task service.Task
	err := c.do(ctx, "restapi.CreateTask", http.MethodPost, "/tasks", nil, input, &task)
	return task, err
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, input service.UpdateTaskInput) (service.Task, error) {
	var task service.Task
	err := c.do(ctx, "restapi.UpdateTask", http.MethodPut, taskPath(id), nil, input, &task)
	return task, err
}

// DeleteTask deletes a task. Any 2xx response counts as success.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, "restapi.DeleteTask", http.MethodDelete, taskPath(id), nil, nil, nil)
}

// UpdateTaskStatus sets the status of a task.
func (c *Client) UpdateTaskStatus(ctx context.Context, id string, status service.TaskStatus) (service.Task, error) {
	var task service.Task
	body := map[string]service.TaskStatus{"status": status}
	err := c.do(ctx, "restapi.UpdateTaskStatus", http.MethodPatch, taskPath(id)+"/status", nil, body, &task)
	return task, err
}

// AssignUser assigns userID to a task.
func (c *Client) AssignUser(ctx context.Context, id, userID string) (service.Task, error) {
	var task service.Task
	body := map[string]string{"userId": userID}
	err := c.do(ctx, "restapi.AssignUser", http.MethodPatch, taskPath(id)+"/assign", nil, body, &task)
	return task, err
}

// ListUsers returns all assignable users.
func (c *Client) ListUsers(ctx context.Context) ([]service.User, error) {
	var users []service.User
	if err := c.do(ctx, "restapi.ListUsers", http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []service.User{}
	}
	return users, nil
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

// envelope is the success shape {success, message, data, pagination?}.
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       json.RawMessage     `json:"data"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
}

// do performs one round trip. Every failure is returned as *service.APIError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.log.WithField("operation", op)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &service.APIError{Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &service.APIError{Message: err.Error()}
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	requestID := c.requestID()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := transportError(ctx, err)
		log.WithError(err).WithField("request_id", requestID).Warn("request failed")
		return apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	log = log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start).String(),
	})
	if err != nil {
		log.WithError(err).Warn("read response")
		return &service.APIError{Message: fmt.Sprintf("read response: %v", err), StatusCode: resp.StatusCode}
	}
	if len(data) > maxResponseBytes {
		log.Warn("response too large")
		return &service.APIError{Message: "response too large", StatusCode: resp.StatusCode}
	}
	log.Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return malformed(resp.StatusCode, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return malformed(resp.StatusCode, errors.New("missing data"))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return malformed(resp.StatusCode, err)
	}
	if env.Pagination != nil {
		log.WithFields(logrus.Fields{
			"total": env.Pagination.Total,
			"page":  env.Pagination.Page,
			"pages": env.Pagination.Pages,
		}).Debug("pagination")
	}
	return nil
}

// transportError normalizes a failure where no response was received.
func transportError(ctx context.Context, err error) *service.APIError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &service.APIError{Message: "request timed out"}
	case errors.Is(ctx.Err(), context.Canceled):
		return &service.APIError{Message: "request cancelled"}
	}
	msg := err.Error()
	if msg == "" {
		msg = "an error occurred"
	}
	return &service.APIError{Message: msg}
}

// decodeError normalizes a non-2xx response carrying {message, errors?}.
func decodeError(status int, data []byte) *service.APIError {
	var body struct {
		Message string                    `json:"message"`
		Errors  []service.ValidationError `json:"errors"`
	}
	_ = json.Unmarshal(data, &body) // non-JSON error bodies fall back to the status line
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status code %d", status)
	}
	return &service.APIError{Message: msg, StatusCode: status, Errors: body.Errors}
}

func malformed(status int, err error) *service.APIError {
	return &service.APIError{
		Message:    fmt.Sprintf("malformed response: %v", err),
		StatusCode: status,
	}
}
