package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/you/kycstore/domain"
)

const networkMessage = "Network error. Please check your connection and try again."

// envelope is the response shape of every backend endpoint
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the storefront REST backend. Every failure leaving the
// client is a *domain.Error.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do performs one call. fallback is the per-action message used when the
// backend gives none.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewNetworkError(networkMessage, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(networkMessage, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		message := strings.TrimSpace(env.Message)
		if decodeErr != nil || message == "" {
			// A bare 5xx comes from the transport path, not from a decision
			if resp.StatusCode >= http.StatusInternalServerError {
				return domain.NewNetworkError(networkMessage,
					fmt.Errorf("%s answered %d without a message", path, resp.StatusCode))
			}
			message = fallback
		}
		return domain.NewBackendError(resp.StatusCode, message)
	}
	if decodeErr != nil {
		e := domain.NewBackendError(resp.StatusCode, fallback)
		e.Err = fmt.Errorf("decode %s response: %w", path, decodeErr)
		return e
	}
	if env.Success != nil && !*env.Success {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = fallback
		}
		return domain.NewBackendError(resp.StatusCode, message)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			e := domain.NewBackendError(resp.StatusCode, fallback)
			e.Err = fmt.Errorf("decode %s data: %w", path, err)
			return e
		}
	}
	return nil
}
