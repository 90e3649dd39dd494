// Package client talks to the taskkeeper REST API.
//
// Every response is a JSON envelope {success, data, count, token, message}.
// Common failures surface as sentinel errors matched with errors.Is:
// ErrUnavailable, ErrUnauthorized and ErrNotFound. Other non-2xx replies are
// returned as *APIError.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx reply that has no sentinel of its own.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Count   int    `json:"count"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Client is safe for concurrent use once the token is set.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := do[struct{}](ctx, c, http.MethodGet, "/healthz", nil)
	return err
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*models.Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/register", body)
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.Session, error) {
	env, err := do[models.User](ctx, c, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return &models.Session{Token: env.Token, User: env.Data}, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	env, err := do[models.User](ctx, c, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) ListTasks(ctx context.Context, o models.ListOptions) ([]models.Task, error) {
	q := url.Values{}
	for k, v := range map[string]string{"status": o.Status, "priority": o.Priority, "search": o.Search, "sort": o.Sort} {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	env, err := do[[]models.Task](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return task(do[models.Task](ctx, c, http.MethodGet, taskPath(id), nil))
}

func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	return task(do[models.Task](ctx, c, http.MethodPost, "/api/tasks", in))
}

func (c *Client) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (*models.Task, error) {
	return task(do[models.Task](ctx, c, http.MethodPut, taskPath(id), u))
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, taskPath(id), nil)
	return err
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	env, err := do[models.Stats](ctx, c, http.MethodGet, "/api/tasks/stats", nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) Export(ctx context.Context) (*models.ExportLink, error) {
	env, err := do[models.ExportLink](ctx, c, http.MethodPost, "/api/tasks/export", nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func task(env *envelope[models.Task], err error) (*models.Task, error) {
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

// do sends one request and decodes the envelope, with data typed as T.
func do[T any](ctx context.Context, c *Client, method, path string, in any) (*envelope[T], error) {
	var body io.Reader
	if in != nil {
		raw, err := sonic.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", common.AuthorizationScheme+" "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	env := &envelope[T]{}
	var decodeErr error
	if len(raw) > 0 {
		decodeErr = sonic.Unmarshal(raw, env)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, env.Message)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, env.Message)
	case resp.StatusCode >= http.StatusBadGateway:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	case decodeErr != nil:
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return env, nil
}
