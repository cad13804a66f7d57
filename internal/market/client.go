// Package market is a thin REST client for the UniSale marketplace
// backend. The chat layer uses it to look up peers and verify the backend
// is reachable; product and listing management stay on the backend side.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUserExists indicates a signup for an email that is already registered.
var ErrUserExists = errors.New("user already exists")

// User is a marketplace account as returned by the backend.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified int    `json:"verified"`
}

// Client talks to the marketplace REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a marketplace client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Users fetches all registered marketplace users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users", nil)
	if err != nil {
		return nil, fmt.Errorf("build users request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch users: %s", readError(resp.Body, resp.Status))
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// Signup registers a new user. The backend reports duplicate emails with a
// success=false payload rather than an error status.
func (c *Client) Signup(ctx context.Context, name, email string) error {
	body, err := json.Marshal(map[string]string{"name": name, "email": email})
	if err != nil {
		return fmt.Errorf("encode signup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/signup", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode signup response: %w", err)
	}
	if !result.Success {
		if strings.Contains(strings.ToLower(result.Message), "already exists") {
			return fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return fmt.Errorf("signup rejected: %s", result.Message)
	}

	c.logger.Debug("user signed up", "email", email)
	return nil
}

// Health checks that the backend answers on its root route.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marketplace unhealthy: %s", resp.Status)
	}
	return nil
}

// readError extracts the backend's error payload, falling back to the
// HTTP status line.
func readError(body io.Reader, status string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return status
}
