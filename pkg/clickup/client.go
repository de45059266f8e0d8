// Package clickup is a minimal ClickUp API v2 client covering the surface the
// publishing pipeline needs: list tasks, task creation and update, custom
// field and status discovery.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/ticket"
	"github.com/jStrider/grafana-publisher/internal/pkg/metrics"
	"github.com/jStrider/grafana-publisher/internal/publisher"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

// DefaultAPIURL is the public ClickUp endpoint
const DefaultAPIURL = "https://api.clickup.com"

// Severity names to ClickUp's numeric priority scale (1 is most urgent)
var priorityIDs = map[string]int{
	"critical": 1,
	"high":     2,
	"medium":   3,
	"low":      4,
}

var priorityNames = map[int]string{
	1: "critical",
	2: "high",
	3: "medium",
	4: "low",
}

// Client talks to the ClickUp API for one configured list
type Client struct {
	baseURL       string
	token         string
	listID        string
	checkSubtasks bool
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewClient builds a client from publisher configuration
func NewClient(cfg *config.ClickUpConfig, timeout time.Duration) *Client {
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 1.5
	}
	return &Client{
		baseURL:       baseURL,
		token:         cfg.Token,
		listID:        cfg.ListID,
		checkSubtasks: cfg.CheckSubtasks,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// APIError is a non-2xx response from ClickUp
type APIError struct {
	StatusCode int
	ECode      string `json:"ECODE"`
	Err        string `json:"err"`
}

func (e *APIError) Error() string {
	if e.Err != "" {
		return fmt.Sprintf("clickup API error (status %d, %s): %s", e.StatusCode, e.ECode, e.Err)
	}
	return fmt.Sprintf("clickup API error (status %d)", e.StatusCode)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordExternalCall("clickup", method+" "+path, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			return fmt.Errorf("clickup API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

type taskResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Status      struct {
		Status string `json:"status"`
	} `json:"status"`
	Priority *struct {
		ID string `json:"id"`
	} `json:"priority"`
}

func (t taskResponse) toTicket() ticket.Ticket {
	out := ticket.Ticket{
		ID:          t.ID,
		Title:       t.Name,
		Description: t.Description,
		Status:      t.Status.Status,
		URL:         t.URL,
	}
	if out.URL == "" {
		out.URL = "https://app.clickup.com/t/" + t.ID
	}
	if t.Priority != nil {
		var id int
		if _, err := fmt.Sscanf(t.Priority.ID, "%d", &id); err == nil {
			out.Priority = priorityNames[id]
		}
	}
	return out
}

// ListOpenTickets returns the list's unarchived tasks as tickets. ClickUp
// pages tasks 100 at a time; all pages are drained.
func (c *Client) ListOpenTickets(ctx context.Context) ([]ticket.Ticket, error) {
	var out []ticket.Ticket
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("archived", "false")
		q.Set("page", fmt.Sprintf("%d", page))
		if c.checkSubtasks {
			q.Set("subtasks", "true")
		}

		var result struct {
			Tasks    []taskResponse `json:"tasks"`
			LastPage bool           `json:"last_page"`
		}
		path := fmt.Sprintf("/api/v2/list/%s/task?%s", c.listID, q.Encode())
		if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}
		for _, t := range result.Tasks {
			out = append(out, t.toTicket())
		}
		if result.LastPage || len(result.Tasks) == 0 {
			break
		}
	}
	return out, nil
}

type createTaskRequest struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Status       string            `json:"status,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	CustomFields []customFieldItem `json:"custom_fields,omitempty"`
}

type customFieldItem struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// CreateTicket creates a task on the configured list
func (c *Client) CreateTicket(ctx context.Context, req publisher.CreateRequest) (*ticket.Ticket, error) {
	body := createTaskRequest{
		Name:        req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    priorityIDs[req.Priority],
	}
	for _, f := range req.CustomFields {
		body.CustomFields = append(body.CustomFields, customFieldItem{ID: f.FieldID, Value: f.Value})
	}

	var result taskResponse
	path := fmt.Sprintf("/api/v2/list/%s/task", c.listID)
	if err := c.doRequest(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	created := result.toTicket()
	return &created, nil
}

// UpdateTicket updates an existing task's priority and description
func (c *Client) UpdateTicket(ctx context.Context, id string, req publisher.UpdateRequest) error {
	body := map[string]interface{}{}
	if req.Priority != "" {
		body["priority"] = priorityIDs[req.Priority]
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	return c.doRequest(ctx, http.MethodPut, "/api/v2/task/"+id, body, nil)
}

type fieldResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	TypeConfig struct {
		Options []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Label string `json:"label"`
		} `json:"options"`
	} `json:"type_config"`
}

// ListCustomFields returns the list's custom field definitions
func (c *Client) ListCustomFields(ctx context.Context) ([]schema.FieldSchema, error) {
	var result struct {
		Fields []fieldResponse `json:"fields"`
	}
	path := fmt.Sprintf("/api/v2/list/%s/field", c.listID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	out := make([]schema.FieldSchema, 0, len(result.Fields))
	for _, f := range result.Fields {
		fs := schema.FieldSchema{ID: f.ID, Name: f.Name, Type: f.Type}
		for _, o := range f.TypeConfig.Options {
			// Dropdown options carry "name", label fields carry "label".
			label := o.Name
			if label == "" {
				label = o.Label
			}
			fs.Options = append(fs.Options, schema.Option{ID: o.ID, Label: label})
		}
		out = append(out, fs)
	}
	return out, nil
}

// ListStatuses returns the workflow statuses defined on the list
func (c *Client) ListStatuses(ctx context.Context) ([]publisher.Status, error) {
	var result struct {
		Statuses []publisher.Status `json:"statuses"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v2/list/"+c.listID, nil, &result); err != nil {
		return nil, err
	}
	return result.Statuses, nil
}

// Ping verifies the token by fetching the authorized user
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/api/v2/user", nil, nil)
}
