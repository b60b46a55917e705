package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notifycenter/internal/center"
)

const nexxtMobileURL = "https://api.nexxtmobile.de/"

type NexxtMobileConfig struct {
	Token string
	// Originator is the sender phone number.
	Originator string
	Timeout    time.Duration
	RatePerSec float64
	// BaseURL overrides the API endpoint.
	BaseURL string
}

type NexxtMobile struct {
	cfg NexxtMobileConfig
	t   transport
}

func NewNexxtMobile(cfg NexxtMobileConfig) (*NexxtMobile, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.Originator) == "" {
		return nil, fmt.Errorf("%w: nexxtmobile needs token and originator", ErrMissingCredentials)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = nexxtMobileURL
	}
	return &NexxtMobile{cfg: cfg, t: newTransport(cfg.Timeout, cfg.RatePerSec)}, nil
}

// Send implements center.Sender.
func (n *NexxtMobile) Send(ctx context.Context, to center.Recipient, c center.Content) center.DeliveryResult {
	q := url.Values{}
	q.Set("mode", "user")
	q.Set("token", n.cfg.Token)
	q.Set("function", "sms")
	q.Set("originator", n.cfg.Originator)
	q.Set("recipient", strings.TrimSpace(to.Address))
	q.Set("text", c.Body)

	resp, cancel, err := n.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"?"+q.Encode(), nil)
	})
	defer cancel()
	if err != nil {
		return center.Failed("nexxtmobile: %v", redact(err, n.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return center.Failed("nexxtmobile: http %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return center.Failed("nexxtmobile: decode response: %v", err)
	}
	isErr, ok := out["isError"]
	if !ok {
		// Older API versions omit the flag on success.
		return center.Delivered()
	}
	if b, _ := isErr.(bool); b {
		return center.Failed("nexxtmobile: api error: %v", out)
	}
	return center.Delivered()
}

// redact keeps the token out of url.Error messages.
func redact(err error, secret string) string {
	s := err.Error()
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(secret), "***")
	return strings.ReplaceAll(s, secret, "***")
}
