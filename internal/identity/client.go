package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls a hosted identity provider over HTTP.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient creates a provider client with a bounded timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type accountResponse struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAccount registers an account with the provider.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	var out accountResponse
	err := c.do(ctx, http.MethodPost, "/v1/accounts", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return Account{}, err
	}
	return Account{UID: out.UID, Email: out.Email, CreatedAt: out.CreatedAt}, nil
}

// VerifyCredentials exchanges email/password for the matching account.
func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (Account, error) {
	var out accountResponse
	err := c.do(ctx, http.MethodPost, "/v1/accounts/verify", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return Account{}, err
	}
	return Account{UID: out.UID, Email: out.Email, CreatedAt: out.CreatedAt}, nil
}

// DeleteAccount removes the account by uid. A provider 404 maps to
// ErrNotFound so callers can distinguish "already deleted".
func (c *Client) DeleteAccount(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("identity: uid required")
	}
	return c.do(ctx, http.MethodDelete, "/v1/accounts/"+uid, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrBadCredentials
	case resp.StatusCode == http.StatusConflict:
		return ErrEmailTaken
	case resp.StatusCode >= 300:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity service error %s: %s", resp.Status, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("identity: decode response failed: %w", err)
		}
	}
	return nil
}
