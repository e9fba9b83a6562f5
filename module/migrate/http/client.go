// Package http is a thin client for common HTTP operations against the
// registries, with request modifiers handling authentication.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http/modifier"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// Client is a util for common HTTP operations, such as Get, Post and Put.
// Use Do instead if those methods can not meet your requirement.
type Client struct {
	modifiers []modifier.Modifier
	client    *http.Client
}

// NewClient creates an instance of Client.
// Use net/http.Client with the shared transport if c is nil.
// Modifiers modify the request before sending it.
func NewClient(c *http.Client, modifiers ...modifier.Modifier) *Client {
	client := &Client{
		client: c,
	}
	if client.client == nil {
		client.client = &http.Client{
			Transport: GetHTTPTransport(),
		}
	}
	if len(modifiers) > 0 {
		client.modifiers = modifiers
	}
	return client
}

// GetClient returns the underlying http.Client.
func (c *Client) GetClient() *http.Client {
	return c.client
}

// Do applies all modifiers and sends the request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for _, m := range c.modifiers {
		if err := m.Modify(req); err != nil {
			return nil, err
		}
	}
	return c.client.Do(req)
}

// Get fetches url and optionally decodes the JSON response into v[0].
func (c *Client) Get(ctx context.Context, url string, v ...interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	data, err := c.do(req)
	if err != nil {
		return err
	}

	if len(v) == 0 {
		return nil
	}

	return json.Unmarshal(data, v[0])
}

// Post sends v[0] as a JSON body, or directly as the body if it is a reader.
func (c *Client) Post(ctx context.Context, url string, v ...interface{}) error {
	var reader io.Reader
	if len(v) > 0 {
		if r, ok := v[0].(io.Reader); ok {
			reader = r
		} else {
			data, err := json.Marshal(v[0])
			if err != nil {
				return err
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

// Put sends v[0] as a JSON body.
func (c *Client) Put(ctx context.Context, url string, v ...interface{}) error {
	var reader io.Reader
	if len(v) > 0 {
		data, err := json.Marshal(v[0])
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := types.ClassifyStatus(resp.StatusCode, truncateBody(data)); err != nil {
		return nil, err
	}

	return data, nil
}

func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return fmt.Sprintf("%s... (%d bytes)", data[:max], len(data))
	}
	return string(data)
}
