package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/pkg/retry"
)

var (
	// ErrUnavailable means the backend is unreachable or still waking up.
	// Callers retry with backoff; it is never written to a queue item as a
	// generation failure.
	ErrUnavailable = errors.New("generation backend unavailable")

	// ErrJobNotFound means the backend has no job with the given id.
	ErrJobNotFound = errors.New("generation job not found")
)

// Client reaches the async generation backend by job id.
type Client interface {
	GetJob(ctx context.Context, jobID string) (*JobStatus, error)
	Wake(ctx context.Context) error
}

// HTTPClient talks to the generation backend over HTTP.
type HTTPClient struct {
	config *config.GenerationConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTPClient(cfg *config.GenerationConfig, logger *zap.Logger) *HTTPClient {
	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// GetJob polls one job by id.
func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/v1/jobs/%s", c.config.BaseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway:
		return nil, fmt.Errorf("%w: backend returned status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// Wake pings the backend health endpoint with bounded backoff until it
// answers. Used before polling when the backend has scaled to zero.
func (c *HTTPClient) Wake(ctx context.Context) error {
	cfg := retry.Config{
		MaxAttempts:  c.config.WakeMaxAttempts,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}

	return retry.Do(ctx, cfg, func() error {
		url := c.config.BaseURL + "/health"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debug("Backend wake ping failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: health returned status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil
	})
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
