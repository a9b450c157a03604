// Package client is the HTTP client for the holdpoint API, used by CLI
// commands talking to a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/review"
)

// Client talks to a holdpoint server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL. The underlying HTTP client
// carries no timeout because Wait holds a connection open indefinitely;
// callers bound requests with contexts instead.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// CreateSessionRequest mirrors the create endpoint's body.
type CreateSessionRequest struct {
	Source      git.SourceSpec `json:"source"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
}

// CreateSessionResponse is the creation confirmation.
type CreateSessionResponse struct {
	SessionID  string `json:"session_id"`
	FilesCount int    `json:"files_count"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url"`
}

// CreateSession asks the server to extract files and open a review session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResponse, error) {
	var resp CreateSessionResponse
	err := c.do(ctx, http.MethodPost, "/api/sessions", req, &resp)
	return resp, err
}

// ListSessions returns summaries of all sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]review.Summary, error) {
	var resp struct {
		Sessions []review.Summary `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &resp)
	return resp.Sessions, err
}

// GetSession returns the full session snapshot.
func (c *Client) GetSession(ctx context.Context, id string) (review.SessionSnapshot, error) {
	var resp review.SessionSnapshot
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Wait polls or blocks on a session's outcome. With wait=true the call
// suspends until the review resolves or ctx is done.
func (c *Client) Wait(ctx context.Context, id string, wait bool) (review.WaitStatus, error) {
	var resp review.WaitStatus
	path := fmt.Sprintf("/api/sessions/%s/wait?wait=%s", url.PathEscape(id), strconv.FormatBool(wait))
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Cancel cancels a pending session.
func (c *Client) Cancel(ctx context.Context, id, reason string) error {
	body := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/cancel", body, nil)
}

// Complete records a decision on a pending session.
func (c *Client) Complete(ctx context.Context, id string, status review.Status, feedback string) (review.Result, error) {
	body := map[string]string{"status": string(status), "feedback": feedback}
	var resp review.Result
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/complete", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("holdpoint server unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
