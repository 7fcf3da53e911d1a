package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/platform"
)

// Client publishes posts through the WordPress REST API using an
// application password. WordPress models draft/live as the post status
// field, so SetDraft/SetLive are status updates on the existing post.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *zap.Logger
}

func NewClient(cfg *config.WordPressConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.AppPassword,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (c *Client) Kind() models.PlatformKind {
	return models.PlatformWordPress
}

type postResponse struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

func (r *postResponse) toItem() *platform.Item {
	return &platform.Item{
		ID:      fmt.Sprintf("%d", r.ID),
		URL:     r.Link,
		IsDraft: r.Status != "publish",
	}
}

func (c *Client) CreateItem(ctx context.Context, target platform.Target, content platform.Content, asDraft bool) (*platform.Item, error) {
	status := "publish"
	if asDraft {
		status = "draft"
	}

	body := c.postBody(content)
	body["status"] = status

	var response postResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/wp-json/wp/v2/posts", body, &response, "create"); err != nil {
		return nil, err
	}
	return response.toItem(), nil
}

func (c *Client) UpdateItem(ctx context.Context, target platform.Target, itemID string, content platform.Content) (*platform.Item, error) {
	var response postResponse
	url := fmt.Sprintf("%s/wp-json/wp/v2/posts/%s", c.baseURL, itemID)
	if err := c.do(ctx, http.MethodPost, url, c.postBody(content), &response, "update"); err != nil {
		return nil, err
	}
	return response.toItem(), nil
}

func (c *Client) SetLive(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	return c.setStatus(ctx, itemID, "publish")
}

func (c *Client) SetDraft(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	return c.setStatus(ctx, itemID, "draft")
}

func (c *Client) setStatus(ctx context.Context, itemID, status string) (*platform.Item, error) {
	var response postResponse
	url := fmt.Sprintf("%s/wp-json/wp/v2/posts/%s", c.baseURL, itemID)
	body := map[string]interface{}{"status": status}
	operation := "publish"
	if status == "draft" {
		operation = "unpublish"
	}
	if err := c.do(ctx, http.MethodPost, url, body, &response, operation); err != nil {
		return nil, err
	}
	return response.toItem(), nil
}

func (c *Client) DeleteItem(ctx context.Context, target platform.Target, itemID string) error {
	url := fmt.Sprintf("%s/wp-json/wp/v2/posts/%s?force=true", c.baseURL, itemID)
	return c.do(ctx, http.MethodDelete, url, nil, nil, "delete")
}

func (c *Client) GetItem(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	var response postResponse
	url := fmt.Sprintf("%s/wp-json/wp/v2/posts/%s", c.baseURL, itemID)
	if err := c.do(ctx, http.MethodGet, url, nil, &response, "get"); err != nil {
		return nil, err
	}
	return response.toItem(), nil
}

func (c *Client) postBody(content platform.Content) map[string]interface{} {
	body := map[string]interface{}{
		"title":   content.Title,
		"slug":    content.Slug,
		"content": content.Content,
		"excerpt": content.Excerpt,
	}
	if content.SEOMetadata != nil {
		body["meta"] = content.SEOMetadata
	}
	return body
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, out interface{}, operation string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &platform.OperationError{
			Platform:   models.PlatformWordPress,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    string(raw),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
