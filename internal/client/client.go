// Package client talks to a running modcfgd over its HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/micro-nova/modcfg/internal/api"
)

// Client is an HTTP client for one daemon.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a client for the daemon at baseURL, e.g. "http://module.local:8080".
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Config returns every configuration byte.
func (c *Client) Config(ctx context.Context) (api.ConfigView, error) {
	var v api.ConfigView
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &v)
	return v, err
}

// Get returns one configuration byte.
func (c *Client) Get(ctx context.Context, index int) (api.ByteView, error) {
	var v api.ByteView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/config/%d", index), nil, &v)
	return v, err
}

// Set writes one configuration byte. A rejected value comes back as an
// *api.AppError with status 422.
func (c *Client) Set(ctx context.Context, index, value int) (api.ByteView, error) {
	var v api.ByteView
	body := map[string]int{"value": value}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/config/%d", index), body, &v)
	return v, err
}

// Save writes the whole array to storage.
func (c *Client) Save(ctx context.Context) (api.ConfigView, error) { return c.action(ctx, "save") }

// Load replaces the array with what storage holds.
func (c *Client) Load(ctx context.Context) (api.ConfigView, error) { return c.action(ctx, "load") }

// Erase resets every byte to 0xFF in memory and storage.
func (c *Client) Erase(ctx context.Context) (api.ConfigView, error) { return c.action(ctx, "erase") }

func (c *Client) action(ctx context.Context, name string) (api.ConfigView, error) {
	var v api.ConfigView
	err := c.do(ctx, http.MethodPost, "/api/config/"+name, nil, &v)
	return v, err
}

// Interact submits one operator event. kind is "long", "short" or "poll".
func (c *Client) Interact(ctx context.Context, kind string, value int) (api.InteractResponse, error) {
	var v api.InteractResponse
	err := c.do(ctx, http.MethodPost, "/api/interact", api.InteractRequest{Kind: kind, Value: value}, &v)
	return v, err
}

// Pending reports the staged address, if any.
func (c *Client) Pending(ctx context.Context) (api.PendingView, error) {
	var v api.PendingView
	err := c.do(ctx, http.MethodGet, "/api/interact", nil, &v)
	return v, err
}

// Subscribe streams server-sent events, calling fn with the name and JSON
// payload of each, until ctx ends or the server closes the stream. The first
// event is api.EventSnapshot carrying an api.ConfigView; the rest carry an
// events.Notification and are named after its type.
func (c *Client) Subscribe(ctx context.Context, fn func(event string, data []byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/subscribe", nil)
	if err != nil {
		return err
	}
	// The stream is long-lived; the default client's timeout would cut it.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("client: subscribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	event := ""
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fn(event, []byte(data))
			continue
		}
		if line == "" {
			event = ""
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

// decodeError turns a non-200 response into an *api.AppError.
func decodeError(resp *http.Response) error {
	appErr := &api.AppError{Status: resp.StatusCode}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, appErr); err != nil || appErr.Code == "" {
		appErr.Code = http.StatusText(resp.StatusCode)
		appErr.Message = strings.TrimSpace(string(data))
	}
	return appErr
}
