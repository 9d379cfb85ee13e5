// Package executor is the HTTP client for the downstream task and
// workflow service.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/daybreak-labs/triggerd/internal/circuitbreaker"
)

const (
	taskEndpoint     = "/v1/tasks"
	workflowEndpoint = "/v1/workflows"

	defaultTimeout = 30 * time.Second
)

// Client talks to the executor over HTTP. Calls are guarded by a
// per-endpoint circuit breaker so a dead executor fails fast instead
// of holding every firing for the full timeout.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

func NewClient(baseURL string, breaker *circuitbreaker.CircuitBreaker) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		breaker: breaker,
		timeout: defaultTimeout,
	}
}

// WithTimeout overrides the per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithToken sets a bearer token sent on every call.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	AssignedBy  string `json:"assigned_by"`
	Priority    string `json:"priority"`
}

type createWorkflowRequest struct {
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type createResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateTask(ctx context.Context, title, description, assignedTo, assignedBy, priority string) (string, error) {
	req := createTaskRequest{
		Title:       title,
		Description: description,
		AssignedTo:  assignedTo,
		AssignedBy:  assignedBy,
		Priority:    priority,
	}
	return c.post(ctx, taskEndpoint, req)
}

func (c *Client) CreateWorkflow(ctx context.Context, description, createdBy string) (string, error) {
	req := createWorkflowRequest{
		Description: description,
		CreatedBy:   createdBy,
	}
	return c.post(ctx, workflowEndpoint, req)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (string, error) {
	if err := c.breaker.Allow(endpoint); err != nil {
		return "", fmt.Errorf("%s: %w", endpoint, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure(endpoint)
		return "", fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure(endpoint)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("post %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.breaker.RecordSuccess(endpoint)

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return created.ID, nil
}

// LogExecutor stands in when no downstream executor is configured.
// It logs each call and hands back a synthetic reference so triggers
// still complete locally.
type LogExecutor struct{}

func (LogExecutor) CreateTask(ctx context.Context, title, description, assignedTo, assignedBy, priority string) (string, error) {
	log.Printf("executor: (dry-run) task title=%q assigned_to=%s assigned_by=%s priority=%s", title, assignedTo, assignedBy, priority)
	return "dry-run-task", nil
}

func (LogExecutor) CreateWorkflow(ctx context.Context, description, createdBy string) (string, error) {
	log.Printf("executor: (dry-run) workflow created_by=%s", createdBy)
	return "dry-run-workflow", nil
}
