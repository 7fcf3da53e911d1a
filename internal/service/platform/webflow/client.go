package webflow

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

// Client publishes collection items through the Webflow Data API. Items are
// created in draft mode and moved live via the collection publish endpoint;
// the isDraft flag on the item tracks draft/live mode independently of the
// local record status.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(cfg *config.WebflowConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) Kind() models.PlatformKind {
	return models.PlatformWebflow
}

type itemResponse struct {
	ID        string                 `json:"id"`
	IsDraft   bool                   `json:"isDraft"`
	FieldData map[string]interface{} `json:"fieldData"`
}

func (c *Client) CreateItem(ctx context.Context, target platform.Target, content platform.Content, asDraft bool) (*platform.Item, error) {
	url := fmt.Sprintf("%s/collections/%s/items", c.baseURL, target.CollectionID)
	body := map[string]interface{}{
		"isArchived": false,
		"isDraft":    asDraft,
		"fieldData":  c.fieldData(content),
	}

	var response itemResponse
	if err := c.do(ctx, http.MethodPost, url, body, &response, "create"); err != nil {
		return nil, err
	}

	item := &platform.Item{
		ID:      response.ID,
		URL:     c.itemURL(response.FieldData),
		IsDraft: response.IsDraft,
	}

	if !asDraft {
		return c.SetLive(ctx, target, response.ID)
	}
	return item, nil
}

func (c *Client) UpdateItem(ctx context.Context, target platform.Target, itemID string, content platform.Content) (*platform.Item, error) {
	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, target.CollectionID, itemID)
	body := map[string]interface{}{
		"fieldData": c.fieldData(content),
	}

	var response itemResponse
	if err := c.do(ctx, http.MethodPatch, url, body, &response, "update"); err != nil {
		return nil, err
	}

	return &platform.Item{
		ID:      response.ID,
		URL:     c.itemURL(response.FieldData),
		IsDraft: response.IsDraft,
	}, nil
}

func (c *Client) SetLive(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	url := fmt.Sprintf("%s/collections/%s/items/publish", c.baseURL, target.CollectionID)
	body := map[string]interface{}{
		"itemIds": []string{itemID},
	}

	if err := c.do(ctx, http.MethodPost, url, body, nil, "publish"); err != nil {
		return nil, err
	}

	return c.GetItem(ctx, target, itemID)
}

func (c *Client) SetDraft(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, target.CollectionID, itemID)
	body := map[string]interface{}{
		"isDraft": true,
	}

	var response itemResponse
	if err := c.do(ctx, http.MethodPatch, url, body, &response, "unpublish"); err != nil {
		return nil, err
	}

	return &platform.Item{
		ID:      response.ID,
		URL:     c.itemURL(response.FieldData),
		IsDraft: true,
	}, nil
}

func (c *Client) DeleteItem(ctx context.Context, target platform.Target, itemID string) error {
	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, target.CollectionID, itemID)
	return c.do(ctx, http.MethodDelete, url, nil, nil, "delete")
}

func (c *Client) GetItem(ctx context.Context, target platform.Target, itemID string) (*platform.Item, error) {
	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, target.CollectionID, itemID)

	var response itemResponse
	if err := c.do(ctx, http.MethodGet, url, nil, &response, "get"); err != nil {
		return nil, err
	}

	return &platform.Item{
		ID:      response.ID,
		URL:     c.itemURL(response.FieldData),
		IsDraft: response.IsDraft,
	}, nil
}

// fieldData maps draft fields onto the collection's field slugs using the
// resolved mapping, with sensible slugs when no mapping was stored.
func (c *Client) fieldData(content platform.Content) map[string]interface{} {
	mapping := content.FieldMappings
	if mapping == nil {
		mapping = map[string]interface{}{
			"title":          "name",
			"slug":           "slug",
			"content":        "post-body",
			"excerpt":        "post-summary",
			"featured_image": "main-image",
		}
	}

	data := map[string]interface{}{}
	set := func(blogField string, value interface{}) {
		if slug, ok := mapping[blogField].(string); ok && slug != "" {
			data[slug] = value
		}
	}

	set("title", content.Title)
	set("slug", content.Slug)
	set("content", content.Content)
	set("excerpt", content.Excerpt)
	if content.FeaturedImageURL != "" {
		set("featured_image", map[string]interface{}{"url": content.FeaturedImageURL})
	}
	return data
}

func (c *Client) itemURL(fieldData map[string]interface{}) string {
	if fieldData == nil {
		return ""
	}
	if slug, ok := fieldData["slug"].(string); ok {
		return slug
	}
	return ""
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
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &platform.OperationError{
			Platform:   models.PlatformWebflow,
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
