package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

// HTTPClient talks to the admin chat API. The session cookie set by Login is kept in a jar
// and replayed on every later request.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError carries the status and message of a non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.StatusCode, e.Message)
}

func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}, nil
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*models.AdminSummary, error) {
	var out struct {
		User models.AdminSummary `json:"user"`
	}
	body := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/admin/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *HTTPClient) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var out struct {
		Rooms []models.ChatRoom `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/chat/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (c *HTTPClient) FetchMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	var out struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/chat/messages/"+url.PathEscape(roomID), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, roomID string, req models.ChatMessageRequest) (*models.ChatMessage, error) {
	var out struct {
		Message models.ChatMessage `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/chat/messages/"+url.PathEscape(roomID), req, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr utils.APIResponse
		msg := http.StatusText(resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
