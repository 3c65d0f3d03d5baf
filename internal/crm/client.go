// Package crm wraps the GoHighLevel REST endpoints the router depends
// on: conversation messages, contact tags, custom fields, workflow
// enrollment and calendar slots.
package crm

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"
)

const (
	defaultBaseURL   = "https://services.leadconnectorhq.com"
	defaultUserAgent = "leadrouter/0.1"
	apiVersion       = "2021-07-28"
)

// Config controls how the GHL client behaves.
type Config struct {
	BaseURL       string
	APIKey        string
	LocationID    string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client talks to a single GHL location.
type Client struct {
	apiKey        string
	baseURL       string
	locationID    string
	webhookSecret string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("crm: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       baseURL,
		locationID:    strings.TrimSpace(cfg.LocationID),
		webhookSecret: cfg.WebhookSecret,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// SendMessage posts an outbound message into the contact's
// conversation. Channel is the GHL message type, e.g. "SMS".
func (c *Client) SendMessage(ctx context.Context, contactID, text, channel string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("crm: contact id required")
	}
	if text == "" {
		return errors.New("crm: message text required")
	}
	if channel == "" {
		channel = "SMS"
	}
	body, err := json.Marshal(struct {
		Type      string `json:"type"`
		ContactID string `json:"contactId"`
		Message   string `json:"message"`
	}{
		Type:      channel,
		ContactID: contactID,
		Message:   text,
	})
	if err != nil {
		return fmt.Errorf("crm: marshal message body: %w", err)
	}
	_, err = c.invoke(ctx, http.MethodPost, "/conversations/messages", nil, body)
	return err
}

// AddTags applies tags to a contact. Already-present tags are a no-op
// on the GHL side.
func (c *Client) AddTags(ctx context.Context, contactID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return c.mutateTags(ctx, http.MethodPost, contactID, tags)
}

// RemoveTags strips tags from a contact. Missing tags are ignored by
// the API.
func (c *Client) RemoveTags(ctx context.Context, contactID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return c.mutateTags(ctx, http.MethodDelete, contactID, tags)
}

func (c *Client) mutateTags(ctx context.Context, method, contactID string, tags []string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("crm: contact id required")
	}
	body, err := json.Marshal(struct {
		Tags []string `json:"tags"`
	}{Tags: tags})
	if err != nil {
		return fmt.Errorf("crm: marshal tags body: %w", err)
	}
	_, err = c.invoke(ctx, method, fmt.Sprintf("/contacts/%s/tags", contactID), nil, body)
	return err
}

// UpdateCustomField writes a single custom field value on the contact.
func (c *Client) UpdateCustomField(ctx context.Context, contactID, field, value string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("crm: contact id required")
	}
	if strings.TrimSpace(field) == "" {
		return errors.New("crm: field id required")
	}
	body, err := json.Marshal(struct {
		CustomFields []customFieldValue `json:"customFields"`
	}{
		CustomFields: []customFieldValue{{ID: field, Value: value}},
	})
	if err != nil {
		return fmt.Errorf("crm: marshal custom field body: %w", err)
	}
	_, err = c.invoke(ctx, http.MethodPut, fmt.Sprintf("/contacts/%s", contactID), nil, body)
	return err
}

// TriggerWorkflow enrolls the contact into a workflow.
func (c *Client) TriggerWorkflow(ctx context.Context, contactID, workflowID string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("crm: contact id required")
	}
	if strings.TrimSpace(workflowID) == "" {
		return errors.New("crm: workflow id required")
	}
	_, err := c.invoke(ctx, http.MethodPost, fmt.Sprintf("/contacts/%s/workflow/%s", contactID, workflowID), nil, []byte("{}"))
	return err
}

// GetFreeSlots returns open calendar slots between start and end.
func (c *Client) GetFreeSlots(ctx context.Context, calendarID string, start, end time.Time) ([]Slot, error) {
	if strings.TrimSpace(calendarID) == "" {
		return nil, errors.New("crm: calendar id required")
	}
	q := url.Values{}
	q.Set("startDate", fmt.Sprintf("%d", start.UnixMilli()))
	q.Set("endDate", fmt.Sprintf("%d", end.UnixMilli()))
	data, err := c.invoke(ctx, http.MethodGet, fmt.Sprintf("/calendars/%s/free-slots", calendarID), q, nil)
	if err != nil {
		return nil, err
	}
	return decodeSlots(data)
}

// CreateAppointment books a calendar slot for the contact.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.LocationID == "" {
		req.LocationID = c.locationID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("crm: marshal appointment body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/calendars/events/appointments", nil, body)
	if err != nil {
		return nil, err
	}
	var appt Appointment
	if err := json.Unmarshal(data, &appt); err != nil {
		return nil, fmt.Errorf("crm: decode appointment response: %w", err)
	}
	return &appt, nil
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw webhook
// body against the shared secret.
func (c *Client) VerifyWebhookSignature(signature string, payload []byte) error {
	if c.webhookSecret == "" {
		return errors.New("crm: webhook secret not configured")
	}
	actual := strings.ToLower(strings.TrimSpace(signature))
	if actual == "" {
		return errors.New("crm: missing signature header")
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return errors.New("crm: signature mismatch")
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.buildURL(path, query)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("crm: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Version", apiVersion)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("crm: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("crm: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("crm: request failed without response")
}

func (c *Client) buildURL(path string, query url.Values) string {
	trimmedPath := "/" + strings.TrimLeft(path, "/")
	full := c.baseURL + trimmedPath
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("ghl retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

type apiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	Err        string `json:"error,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm: %s (status=%d)", e.Message, e.StatusCode)
	}
	if e.Err != "" {
		return fmt.Sprintf("crm: %s (status=%d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("crm: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{StatusCode: status, Message: string(body)}
	}
	parsed.StatusCode = status
	return &parsed
}
