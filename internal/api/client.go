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

	"notifycenter/internal/center"
	"notifycenter/internal/storage"
)

// Client talks to a running notifycenter API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) SendNotification(ctx context.Context, n center.Notification) (center.Report, error) {
	var rep center.Report
	err := c.do(ctx, http.MethodPost, "/api/v1/notifications", n, &rep)
	return rep, err
}

func (c *Client) Alarm(ctx context.Context) (center.AlarmStatus, error) {
	var st center.AlarmStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/alarm", nil, &st)
	return st, err
}

func (c *Client) RepeatAlarm(ctx context.Context) (center.AlarmStatus, error) {
	var st center.AlarmStatus
	err := c.do(ctx, http.MethodPost, "/api/v1/alarm/repeat", nil, &st)
	return st, err
}

func (c *Client) ConfirmAlarm(ctx context.Context) (center.AlarmStatus, error) {
	var st center.AlarmStatus
	err := c.do(ctx, http.MethodPost, "/api/v1/alarm/confirm", nil, &st)
	return st, err
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var st StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &st)
	return st, err
}

func (c *Client) Deliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	var recs []storage.DeliveryRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/deliveries?limit=%d", limit), nil, &recs)
	return recs, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Status  string          `json:"status"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: %s: decode response: %w", method, path, resp.Status, err)
	}
	if env.Status != "success" {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
