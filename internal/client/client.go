// Package client talks to the Task API over HTTP JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todoapp/internal/models"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token for each request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// APIError is a failed call. It unwraps to one of the models sentinels so
// callers can branch with errors.Is.
type APIError struct {
	StatusCode int // 0 for transport failures
	Message    string
	kind       error
	cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.kind, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// kindForStatus maps an HTTP status onto the error taxonomy.
func kindForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrUnauthorized
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return models.ErrValidation
	case http.StatusConflict:
		return models.ErrConflict
	default:
		return models.ErrTransient
	}
}

// Client is a Task API client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login signs in.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ValidateToken reports whether the current token is still accepted.
func (c *Client) ValidateToken(ctx context.Context) (bool, error) {
	var resp struct {
		IsValid bool `json:"is_valid"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/validate-token", nil, &resp)
	if errors.Is(err, models.ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resp.IsValid, nil
}

// ListTasks fetches the tasks matching filter.
func (c *Client) ListTasks(ctx context.Context, filter models.Filter) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := c.do(ctx, http.MethodGet, "/api/tasks?"+filter.Query().Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task and returns it with its server-assigned fields.
func (c *Client) CreateTask(ctx context.Context, input models.NewTask) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", input, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial update and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), patch, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// ToggleTask flips completion. The API answers with a message only.
func (c *Client) ToggleTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, taskPath(id)+"/toggle", nil, nil)
}

// GetStatistics fetches the server's statistics.
func (c *Client) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	if err := c.do(ctx, http.MethodGet, "/api/tasks/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func taskPath(id int64) string {
	return "/api/tasks/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: "request failed", kind: models.ErrTransient, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "invalid response body", kind: models.ErrTransient, cause: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message, kind: kindForStatus(resp.StatusCode)}
}
