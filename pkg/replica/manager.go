package replica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/runningman84/replica-monitor/pkg/config"
	"github.com/runningman84/replica-monitor/pkg/models"
	"github.com/runningman84/replica-monitor/pkg/parser"
	"k8s.io/klog/v2"
)

// ErrUnexpectedStatus is returned when the dashboard answers with a non-2xx status
var ErrUnexpectedStatus = errors.New("unexpected dashboard response status")

// ErrBodyTooLarge is returned when the dashboard page exceeds the configured size limit
var ErrBodyTooLarge = errors.New("dashboard response too large")

// Manager fetches replica dashboards
type Manager struct {
	config *config.Config
	client *http.Client
}

// NewManager creates a new replica manager
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
		client: &http.Client{},
	}
}

// logRequest logs the request being sent if debug mode is enabled
func (m *Manager) logRequest(url string) {
	if m.config.IsDebug() {
		klog.V(1).Infof(" Fetching dashboard: %s", url)
	}
}

// logResponse logs the response if debug mode is enabled
func (m *Manager) logResponse(url string, statusCode int, size int, elapsed time.Duration) {
	if m.config.IsDebug() {
		klog.V(1).Infof(" %s answered %d with %d bytes in %s", url, statusCode, size, elapsed)
	}
}

// FetchDashboard downloads the raw dashboard page
func (m *Manager) FetchDashboard(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	m.logRequest(url)
	start := time.Now()

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read one byte past the limit to tell a page of exactly MaxBodyBytes from a larger one
	body, err := io.ReadAll(io.LimitReader(resp.Body, m.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	m.logResponse(url, resp.StatusCode, len(body), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	if int64(len(body)) > m.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, m.config.MaxBodyBytes)
	}

	return body, nil
}

// GetSnapshot fetches and parses the dashboard at url
func (m *Manager) GetSnapshot(ctx context.Context, url string) (*models.ReplicaSnapshot, error) {
	body, err := m.FetchDashboard(ctx, url)
	if err != nil {
		return nil, err
	}

	snapshot, err := parser.ParseDashboard(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard: %w", err)
	}

	return snapshot, nil
}
