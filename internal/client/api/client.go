// Package api is the HTTP helper layer over the REST backend. Every call
// takes a context, attaches the current bearer token, and decodes the
// backend's {success, data, message} envelope into typed results.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies the current bearer token, or "" when logged out.
type TokenSource func() string

// Client calls the REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// New constructs a Client for the given base URL. token may be nil for a
// guest-only client.
func New(baseURL string, timeout time.Duration, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// envelope is the backend's response convention.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// do performs one request. body is JSON-encoded when non-nil; on success the
// envelope's data field is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		// non-JSON bodies still map to the status classes below
		env = envelope{}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict && env.Code == codeActiveSession:
		return ErrActiveSession
	case resp.StatusCode == http.StatusNotFound && env.Code == "":
		return ErrFeatureUnavailable
	case resp.StatusCode >= 400:
		return &StatusError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
