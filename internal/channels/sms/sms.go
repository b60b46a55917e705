// Package sms implements the SMS providers. Each provider is a center.Sender
// with its own timeout and send rate.
package sms

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderNexxtMobile = "nexxtmobile"
	ProviderSipgate     = "sipgate"

	DefaultTimeout    = 5 * time.Second
	DefaultRatePerSec = 1.0
)

var ErrMissingCredentials = errors.New("sms provider credentials missing")

// transport is the HTTP plumbing shared by all providers.
type transport struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

func newTransport(timeout time.Duration, ratePerSec float64) transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ratePerSec <= 0 {
		ratePerSec = DefaultRatePerSec
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return transport{
		client:  &http.Client{},
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// do waits for a rate token and runs req bounded by the provider timeout.
// The caller must close the response body.
func (t transport) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, context.CancelFunc, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, func() {}, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	req, err := build(ctx)
	if err != nil {
		cancel()
		return nil, func() {}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, func() {}, err
	}
	return resp, cancel, nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
