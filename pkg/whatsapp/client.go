package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wabroadcast/pkg/whatsapp/types"
)

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a gateway client. The api key is optional; when set
// it is sent as X-Api-Key on every request.
func NewClient(baseURL, apiKey string, timeout time.Duration) types.Client {
	return &client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) StartSession(ctx context.Context, deviceID string) error {
	return c.postNoBody(ctx, fmt.Sprintf("/api/sessions/%s/start", deviceID))
}

func (c *client) StopSession(ctx context.Context, deviceID string) error {
	return c.postNoBody(ctx, fmt.Sprintf("/api/sessions/%s/stop", deviceID))
}

func (c *client) DeleteSession(ctx context.Context, deviceID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+fmt.Sprintf("/api/sessions/%s", deviceID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doExpectOK(req)
}

func (c *client) GetSessionStatus(ctx context.Context, deviceID string) (*types.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf("/api/sessions/%s", deviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get session status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get session status, status: %d", resp.StatusCode)
	}

	var session types.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return &session, nil
}

func (c *client) SendBroadcast(ctx context.Context, broadcast types.BroadcastRequest) (*types.BroadcastResponse, error) {
	payload, err := json.Marshal(broadcast)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/broadcasts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send broadcast: %w", err)
	}
	defer resp.Body.Close()

	var result types.BroadcastResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode broadcast response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return &result, fmt.Errorf("broadcast rejected with status %d: %s", resp.StatusCode, result.Error)
	}

	return &result, nil
}

func (c *client) postNoBody(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doExpectOK(req)
}

func (c *client) doExpectOK(req *http.Request) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request to %s failed, status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}
	return nil
}

func (c *client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
