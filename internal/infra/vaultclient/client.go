package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when the KV path holds no secret.
var ErrNotFound = errors.New("vault secret not found")

// Client speaks the HashiCorp Vault KV v2 HTTP API with a static token.
type Client struct {
	addr       string
	token      string
	httpClient *http.Client
}

func New(addr, token string) *Client {
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ReadKV(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("vault read %s: %w", path, err)
	}
	if len(envelope.Data.Data) == 0 || string(envelope.Data.Data) == "null" {
		return ErrNotFound
	}
	return json.Unmarshal(envelope.Data.Data, out)
}

func (c *Client) WriteKV(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(map[string]any{"data": payload})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, path, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c == nil {
		return nil, errors.New("vault client is nil")
	}
	if c.addr == "" || c.token == "" {
		return nil, errors.New("vault addr or token missing")
	}
	if path == "" {
		return nil, errors.New("vault path is required")
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+"/v1/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent:
		return nil, fmt.Errorf("vault %s %s failed: status %d", strings.ToLower(method), path, resp.StatusCode)
	}
	return body, nil
}
