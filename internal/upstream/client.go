package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Endpoints carries the base URLs of the sibling services. It is injected at
// construction; nothing in this package reads global state.
type Endpoints struct {
	UserService        string
	ProjectTaskService string
	CommentService     string
	AttachmentService  string
	ActivityLogService string
}

type Config struct {
	Endpoints  Endpoints
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client is the single typed client for all upstream services. Every call
// issues one bounded request and collapses any failure (non-2xx, network,
// timeout, bad JSON) into ok=false; nothing escapes this boundary.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		endpoints:  cfg.Endpoints,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// VerifyToken checks a bearer credential with the User service and returns the
// authenticated user on success.
func (c *Client) VerifyToken(ctx context.Context, token string) (*User, bool) {
	var response struct {
		Valid bool  `json:"valid"`
		User  *User `json:"user"`
	}
	body := map[string]string{"token": token}
	if !c.postJSON(ctx, c.endpoints.UserService, "/api/verify-token", body, &response) {
		return nil, false
	}
	if !response.Valid || response.User == nil {
		return nil, false
	}
	return response.User, true
}

func (c *Client) GetUser(ctx context.Context, userID int64) (*User, bool) {
	var response struct {
		User *User `json:"user"`
	}
	path := fmt.Sprintf("/api/users/%d", userID)
	if !c.getJSON(ctx, c.endpoints.UserService, path, "", &response) || response.User == nil {
		return nil, false
	}
	return response.User, true
}

func (c *Client) ListAllUsers(ctx context.Context, token string) ([]User, bool) {
	var response struct {
		Users []User `json:"users"`
	}
	if !c.getJSON(ctx, c.endpoints.UserService, "/api/admin/users", token, &response) {
		return nil, false
	}
	return response.Users, true
}

// GetProject returns the raw project document so report payloads carry it
// verbatim.
func (c *Client) GetProject(ctx context.Context, projectID int64, token string) (json.RawMessage, bool) {
	var response struct {
		Project json.RawMessage `json:"project"`
	}
	path := fmt.Sprintf("/api/projects/%d", projectID)
	if !c.getJSON(ctx, c.endpoints.ProjectTaskService, path, token, &response) || len(response.Project) == 0 {
		return nil, false
	}
	return response.Project, true
}

func (c *Client) ListProjects(ctx context.Context, token string) ([]Project, bool) {
	var response struct {
		Projects []Project `json:"projects"`
	}
	if !c.getJSON(ctx, c.endpoints.ProjectTaskService, "/api/projects", token, &response) {
		return nil, false
	}
	return response.Projects, true
}

func (c *Client) ListProjectTasks(ctx context.Context, projectID int64, token string) ([]Task, bool) {
	var response struct {
		Tasks []Task `json:"tasks"`
	}
	path := fmt.Sprintf("/api/projects/%d/tasks", projectID)
	if !c.getJSON(ctx, c.endpoints.ProjectTaskService, path, token, &response) {
		return nil, false
	}
	return response.Tasks, true
}

func (c *Client) CommentCount(ctx context.Context, taskID int64) (int, bool) {
	var response struct {
		CommentCount int `json:"comment_count"`
	}
	path := fmt.Sprintf("/api/comments/count/%d", taskID)
	if !c.getJSON(ctx, c.endpoints.CommentService, path, "", &response) {
		return 0, false
	}
	return response.CommentCount, true
}

func (c *Client) AttachmentCount(ctx context.Context, taskID int64) (int, bool) {
	var response struct {
		AttachmentCount int `json:"attachment_count"`
	}
	path := fmt.Sprintf("/api/attachments/count/%d", taskID)
	if !c.getJSON(ctx, c.endpoints.AttachmentService, path, "", &response) {
		return 0, false
	}
	return response.AttachmentCount, true
}

func (c *Client) AttachmentStats(ctx context.Context) (json.RawMessage, bool) {
	var response json.RawMessage
	if !c.getJSON(ctx, c.endpoints.AttachmentService, "/api/attachments/stats", "", &response) {
		return nil, false
	}
	return response, true
}

func (c *Client) ActivityStats(ctx context.Context, days int, token string) (json.RawMessage, bool) {
	var response json.RawMessage
	path := fmt.Sprintf("/api/activities/stats?days=%d", days)
	if !c.getJSON(ctx, c.endpoints.ActivityLogService, path, token, &response) {
		return nil, false
	}
	return response, true
}

func (c *Client) getJSON(ctx context.Context, baseURL, path, token string, out any) bool {
	return c.do(ctx, http.MethodGet, baseURL, path, token, nil, out)
}

func (c *Client) postJSON(ctx context.Context, baseURL, path string, body any, out any) bool {
	encoded, err := json.Marshal(body)
	if err != nil {
		return false
	}
	return c.do(ctx, http.MethodPost, baseURL, path, "", encoded, out)
}

func (c *Client) do(ctx context.Context, method, baseURL, path, token string, body []byte, out any) bool {
	if strings.TrimSpace(baseURL) == "" {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	url := strings.TrimSuffix(baseURL, "/") + path
	request, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		c.logf("upstream request build failed url=%s err=%v", url, err)
		return false
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logf("upstream call failed url=%s err=%v", url, err)
		return false
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		c.logf("upstream call failed url=%s status=%d", url, response.StatusCode)
		return false
	}

	if out == nil {
		return true
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		c.logf("upstream response decode failed url=%s err=%v", url, err)
		return false
	}
	return true
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
