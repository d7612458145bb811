// Package client talks to a running sparkcoach server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/sparkcoach/internal/engine"
)

// DefaultTimeout covers a full sweep, which waits on the LLM per resource.
const DefaultTimeout = 5 * time.Minute

// Client is an HTTP client for the /api/v1 routes.
type Client struct {
	http      *http.Client
	serverURL string
	token     string
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// New creates a client for serverURL. token is sent as a bearer token when
// non-empty.
func New(serverURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Code = e.Error, e.Code
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}

// StartQuiz opens a quiz session.
func (c *Client) StartQuiz(ctx context.Context, req engine.StartRequest) (*engine.StartResult, error) {
	var out engine.StartResult
	if err := c.do(ctx, http.MethodPost, "/quiz/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Answer submits one answer.
func (c *Client) Answer(ctx context.Context, req engine.AnswerRequest) (*engine.AnswerResult, error) {
	var out engine.AnswerResult
	if err := c.do(ctx, http.MethodPost, "/quiz/answer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session fetches a session's status.
func (c *Client) Session(ctx context.Context, id string) (*engine.SessionStatus, error) {
	var out engine.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/quiz/session/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nudge is a pending nudge as listed by the server.
type Nudge struct {
	ID           int64  `json:"id"`
	ResourcePath string `json:"resource_path"`
	NudgeType    string `json:"nudge_type"`
	Message      string `json:"message"`
	Fallback     bool   `json:"fallback"`
	CreatedAt    string `json:"created_at"`
}

// PendingNudges lists undelivered nudges, newest first.
func (c *Client) PendingNudges(ctx context.Context, limit int) ([]Nudge, error) {
	path := "/nudges"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Nudges []Nudge `json:"nudges"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Nudges, nil
}

// MarkDelivered flags nudges as delivered and returns how many changed.
func (c *Client) MarkDelivered(ctx context.Context, ids []int64) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	in := map[string][]int64{"nudge_ids": ids}
	if err := c.do(ctx, http.MethodPost, "/nudges/mark-delivered", in, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// RunCheck triggers a sweep on the server.
func (c *Client) RunCheck(ctx context.Context) (*engine.SweepResult, error) {
	var out engine.SweepResult
	if err := c.do(ctx, http.MethodPost, "/nudges/run-check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AtRisk lists resources at or above level. An empty level means medium.
func (c *Client) AtRisk(ctx context.Context, level string) ([]engine.ResourceSummary, error) {
	path := "/resources/at-risk"
	if level != "" {
		path += "?level=" + url.QueryEscape(level)
	}
	return c.resources(ctx, path)
}

// Due lists resources due for review on or before date (YYYY-MM-DD). An
// empty date means today.
func (c *Client) Due(ctx context.Context, date string) ([]engine.ResourceSummary, error) {
	path := "/resources/due"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	return c.resources(ctx, path)
}

func (c *Client) resources(ctx context.Context, path string) ([]engine.ResourceSummary, error) {
	var out struct {
		Resources []engine.ResourceSummary `json:"resources"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

func (c *Client) Streak(ctx context.Context) (*engine.Streak, error) {
	var out engine.Streak
	if err := c.do(ctx, http.MethodGet, "/stats/streak", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WeeklySummary(ctx context.Context) (*engine.WeeklySummary, error) {
	var out engine.WeeklySummary
	if err := c.do(ctx, http.MethodGet, "/stats/weekly-summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context) (*engine.Dashboard, error) {
	var out engine.Dashboard
	if err := c.do(ctx, http.MethodGet, "/stats/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
