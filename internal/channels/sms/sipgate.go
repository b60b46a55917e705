package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notifycenter/internal/center"
)

const sipgateURL = "https://api.sipgate.com/v2/sessions/sms"

type SipgateConfig struct {
	User     string
	Password string
	// SmsID is the sipgate SMS extension, "s0" by default.
	SmsID      string
	Timeout    time.Duration
	RatePerSec float64
	BaseURL    string
}

type Sipgate struct {
	cfg SipgateConfig
	t   transport
}

type sipgateRequest struct {
	SmsID     string `json:"smsId"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func NewSipgate(cfg SipgateConfig) (*Sipgate, error) {
	if strings.TrimSpace(cfg.User) == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: sipgate needs user and password", ErrMissingCredentials)
	}
	if cfg.SmsID == "" {
		cfg.SmsID = "s0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = sipgateURL
	}
	return &Sipgate{cfg: cfg, t: newTransport(cfg.Timeout, cfg.RatePerSec)}, nil
}

// Send implements center.Sender.
func (s *Sipgate) Send(ctx context.Context, to center.Recipient, c center.Content) center.DeliveryResult {
	body, err := json.Marshal(sipgateRequest{SmsID: s.cfg.SmsID, Recipient: strings.TrimSpace(to.Address), Message: c.Body})
	if err != nil {
		return center.Failed("sipgate: %v", err)
	}
	resp, cancel, err := s.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(s.cfg.User, s.cfg.Password)
		return req, nil
	})
	defer cancel()
	if err != nil {
		return center.Failed("sipgate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return center.Failed("sipgate: http %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	return center.Delivered()
}
