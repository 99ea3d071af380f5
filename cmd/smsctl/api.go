package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/notify"
	"github.com/danmuck/smsctl/internal/server"
	"github.com/danmuck/smsctl/internal/store"
)

// adminClient talks to the daemon's admin API.
type adminClient struct {
	base string
	http *http.Client
}

func newAdminClient(base string) *adminClient {
	return &adminClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// apiError is a non-2xx admin response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("admin api: %d %s", e.Status, e.Message)
}

type commandResult struct {
	Command    string `json:"command"`
	Delivered  int    `json:"delivered"`
	Connector  string `json:"connector,omitempty"`
	Recipients int    `json:"recipients"`
	Deferred   bool   `json:"deferred"`
}

func (c *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *adminClient) Bootstrap(ctx context.Context) (commandResult, error) {
	var out commandResult
	err := c.do(ctx, http.MethodPost, "/commands/bootstrap", nil, &out)
	return out, err
}

func (c *adminClient) Update(ctx context.Context) (commandResult, error) {
	var out commandResult
	err := c.do(ctx, http.MethodPost, "/commands/update", nil, &out)
	return out, err
}

func (c *adminClient) Send(ctx context.Context, req compose.SendRequest) (commandResult, error) {
	var out commandResult
	err := c.do(ctx, http.MethodPost, "/commands/send", req, &out)
	return out, err
}

func (c *adminClient) Connectors(ctx context.Context) ([]server.ConnectorInfo, error) {
	var out struct {
		Connectors []server.ConnectorInfo `json:"connectors"`
	}
	err := c.do(ctx, http.MethodGet, "/connectors", nil, &out)
	return out.Connectors, err
}

func (c *adminClient) Connector(ctx context.Context, id string) (server.ConnectorInfo, error) {
	var out server.ConnectorInfo
	err := c.do(ctx, http.MethodGet, "/connectors/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *adminClient) Alerts(ctx context.Context) ([]notify.Alert, error) {
	var out struct {
		Alerts []notify.Alert `json:"alerts"`
	}
	err := c.do(ctx, http.MethodGet, "/alerts", nil, &out)
	return out.Alerts, err
}

func (c *adminClient) Messages(ctx context.Context, limit int) ([]store.Message, error) {
	var out struct {
		Messages []store.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/messages?limit=%d", limit), nil, &out)
	return out.Messages, err
}
