package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/colonyops/taskflow/internal/core/task"
)

// client carries the transport shared by the task and category clients.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) client {
	return client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends body (when non-nil) as JSON and decodes a successful response
// into out (when non-nil). Error statuses map onto the task sentinels.
func (c client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err := sonic.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", task.ErrInvalid, body.Message)
	case http.StatusNotFound:
		return task.ErrNotFound
	case http.StatusConflict:
		return task.ErrDuplicateCategory
	default:
		return fmt.Errorf("remote returned %s: %s", resp.Status, body.Message)
	}
}

// TaskClient implements task.Repository against a remote taskflow service.
type TaskClient struct {
	client
}

var _ task.Repository = (*TaskClient)(nil)

// NewTaskClient creates a client for the service at baseURL. A zero timeout
// means requests never time out.
func NewTaskClient(baseURL string, timeout time.Duration) *TaskClient {
	return &TaskClient{client: newClient(baseURL, timeout)}
}

// Ping checks that the service is up and can read its store.
func (c *TaskClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *TaskClient) List(ctx context.Context) ([]task.Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return resp.Tasks, nil
}

func (c *TaskClient) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	var created task.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", draft, &created); err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (c *TaskClient) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	var updated task.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch, &updated); err != nil {
		return task.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (c *TaskClient) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return true, nil
}

func (c *TaskClient) Reorder(ctx context.Context, ordered []task.Task) ([]task.Task, error) {
	req := reorderRequest{IDs: make([]string, len(ordered))}
	for i, t := range ordered {
		req.IDs[i] = t.ID
	}

	var resp tasksResponse
	if err := c.do(ctx, http.MethodPut, "/api/tasks/order", req, &resp); err != nil {
		return nil, fmt.Errorf("reorder tasks: %w", err)
	}
	return resp.Tasks, nil
}

// CategoryClient implements task.CategoryRepository against a remote
// taskflow service.
type CategoryClient struct {
	client
}

var _ task.CategoryRepository = (*CategoryClient)(nil)

// NewCategoryClient creates a client for the service at baseURL.
func NewCategoryClient(baseURL string, timeout time.Duration) *CategoryClient {
	return &CategoryClient{client: newClient(baseURL, timeout)}
}

func (c *CategoryClient) List(ctx context.Context) ([]task.Category, error) {
	var resp categoriesResponse
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, &resp); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return resp.Categories, nil
}

func (c *CategoryClient) Create(ctx context.Context, cat task.Category) (task.Category, error) {
	var created task.Category
	req := categoryRequest{Name: cat.Name, Color: cat.Color}
	if err := c.do(ctx, http.MethodPost, "/api/categories", req, &created); err != nil {
		return task.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (c *CategoryClient) Update(ctx context.Context, id string, patch task.CategoryPatch) (task.Category, error) {
	var updated task.Category
	if err := c.do(ctx, http.MethodPatch, "/api/categories/"+url.PathEscape(id), patch, &updated); err != nil {
		return task.Category{}, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (c *CategoryClient) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil); err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return true, nil
}
