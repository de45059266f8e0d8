// Package grafana scrapes alerts from Grafana's built-in Alertmanager API.
package grafana

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/pkg/metrics"
)

const alertsEndpoint = "/api/alertmanager/grafana/api/v2/alerts/groups"

// Client fetches alerts for the configured sources
type Client struct {
	baseURL    string
	token      string
	sources    []config.GrafanaSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient builds a client from the alert source configuration
func NewClient(cfg *config.GrafanaConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout)
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.VerifySSL != nil && !*cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		sources:    cfg.Sources,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
		logger:     log,
	}
}

type alertGroup struct {
	Alerts []apiAlert `json:"alerts"`
}

type apiAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	Fingerprint string            `json:"fingerprint"`
	Status      struct {
		State string `json:"state"`
	} `json:"status"`
}

// ListAlerts fetches alert groups for every configured source and flattens
// them into domain alerts. A source that fails to fetch is logged and
// skipped; the run continues with the remaining sources.
func (c *Client) ListAlerts(ctx context.Context) ([]alert.Alert, error) {
	var all []alert.Alert
	var lastErr error

	for _, source := range c.sources {
		groups, err := c.fetchGroups(ctx)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"source": source.Name,
			}).Error("failed to fetch alerts from source")
			lastErr = err
			continue
		}
		all = append(all, c.parseGroups(groups, source)...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	c.logger.Infof("fetched %d alerts from grafana", len(all))
	return all, nil
}

func (c *Client) fetchGroups(ctx context.Context) ([]alertGroup, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+alertsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordExternalCall("grafana", "list_alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("grafana API error (status %d): %s", resp.StatusCode, string(body))
	}

	var groups []alertGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return groups, nil
}

func (c *Client) parseGroups(groups []alertGroup, source config.GrafanaSource) []alert.Alert {
	var out []alert.Alert
	for _, group := range groups {
		for _, a := range group.Alerts {
			if !matchesFilters(a.Labels, source.LabelsFilter) {
				continue
			}

			customerID := a.Labels["customer_id"]
			vm := a.Labels["vm"]
			instance := a.Labels["instance"]

			// Hostnames follow the vm.customer.domain convention, so the
			// instance label can stand in for missing labels.
			if (customerID == "" || vm == "") && strings.Contains(instance, ".") {
				parts := strings.Split(instance, ".")
				if vm == "" {
					vm = parts[0]
				}
				if customerID == "" && len(parts) > 1 {
					customerID = parts[1]
				}
			}
			if customerID == "" || vm == "" {
				c.logger.WithFields(map[string]interface{}{
					"labels":   a.Labels,
					"instance": instance,
				}).Debug("skipping alert without customer_id or vm")
				continue
			}

			description := a.Annotations["description"]
			if description == "" {
				description = "No description"
			}
			severity := a.Labels["severity"]
			if severity == "" {
				severity = alert.SeverityMedium
			}

			out = append(out, alert.Alert{
				ID:          a.Fingerprint,
				Name:        a.Labels["alertname"],
				State:       mapState(a.Status.State),
				CustomerID:  customerID,
				VM:          vm,
				Description: description,
				Severity:    severity,
				Instance:    instance,
				Labels:      a.Labels,
				Annotations: a.Annotations,
				StartsAt:    a.StartsAt,
				Source:      source.Name,
			})
		}
	}
	return out
}

func matchesFilters(labels, filter map[string]string) bool {
	for k, v := range filter {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// mapState translates Alertmanager state names to domain states
func mapState(state string) string {
	switch state {
	case "active":
		return alert.StateFiring
	case "unprocessed":
		return alert.StatePending
	default:
		return state
	}
}

// Ping checks connectivity and credentials against the health endpoint
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("grafana health check failed (status %d)", resp.StatusCode)
	}
	return nil
}
