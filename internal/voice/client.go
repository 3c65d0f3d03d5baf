// Package voice initiates outbound AI voice calls through the Vapi API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harborhomes/leadrouter/pkg/logging"
)

const (
	defaultVapiBaseURL = "https://api.vapi.ai"
	callTimeout        = 15 * time.Second
)

// CallRequest contains the parameters for one outbound call.
type CallRequest struct {
	ContactID   string `json:"-"`
	Phone       string `json:"phone"`
	AssistantID string `json:"assistantId"`
	FirstLine   string `json:"firstMessage,omitempty"`
}

type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client triggers outbound calls via the Vapi REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures the outbound voice client.
type ClientConfig struct {
	APIKey string
	// BaseURL overrides the Vapi API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("voice: API key required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultVapiBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: callTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// StartCall triggers a single outbound call attempt and returns the
// provider call id. Retry policy belongs to the caller.
func (c *Client) StartCall(ctx context.Context, req CallRequest) (string, error) {
	if strings.TrimSpace(req.Phone) == "" {
		return "", fmt.Errorf("voice: phone number required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("voice: encode call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("voice: build call request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("voice: call request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("voice: call rejected with status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed callResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("voice: decode call response: %w", err)
	}

	c.logger.Info("outbound call created", "contact_id", req.ContactID, "call_id", parsed.ID, "status", parsed.Status)
	return parsed.ID, nil
}
