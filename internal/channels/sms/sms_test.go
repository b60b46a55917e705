package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notifycenter/internal/center"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNexxtMobileSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(`{"isError":false,"smsCount":1}`))
	}))
	defer srv.Close()

	n, err := NewNexxtMobile(NexxtMobileConfig{Token: "tok", Originator: "+4930123", BaseURL: srv.URL + "/", RatePerSec: 100})
	require.NoError(t, err)

	res := n.Send(context.Background(), center.Recipient{Address: " +49170111 "}, center.Content{Body: "Tür offen & Alarm"})
	require.True(t, res.OK, res.Diagnostic)
	assert.Equal(t, map[string]string{
		"mode":       "user",
		"token":      "tok",
		"function":   "sms",
		"originator": "+4930123",
		"recipient":  "+49170111",
		"text":       "Tür offen & Alarm",
	}, got)
}

func TestNexxtMobileAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"isError":true,"errorMsg":"invalid token"}`))
	}))
	defer srv.Close()

	n, err := NewNexxtMobile(NexxtMobileConfig{Token: "tok", Originator: "+4930123", BaseURL: srv.URL})
	require.NoError(t, err)
	res := n.Send(context.Background(), center.Recipient{Address: "+49170111"}, center.Content{Body: "x"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Diagnostic, "invalid token")
}

func TestNexxtMobileRequiresCredentials(t *testing.T) {
	_, err := NewNexxtMobile(NexxtMobileConfig{Token: "tok"})
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSipgateSend(t *testing.T) {
	var body sipgateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := NewSipgate(SipgateConfig{User: "user", Password: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	res := s.Send(context.Background(), center.Recipient{Address: "+49170111"}, center.Content{Body: "Alarm"})
	require.True(t, res.OK, res.Diagnostic)
	assert.Equal(t, sipgateRequest{SmsID: "s0", Recipient: "+49170111", Message: "Alarm"}, body)
}

func TestSipgateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, err := NewSipgate(SipgateConfig{User: "user", Password: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	res := s.Send(context.Background(), center.Recipient{Address: "+49170111"}, center.Content{Body: "x"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Diagnostic, "http 401")
}

func TestProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewSipgate(SipgateConfig{User: "u", Password: "p", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	start := time.Now()
	res := s.Send(context.Background(), center.Recipient{Address: "+49170111"}, center.Content{Body: "x"})
	assert.False(t, res.OK)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedactHidesToken(t *testing.T) {
	err := &testErr{"Get \"https://api/?token=s%2Bcret&x=1\": dial tcp: refused"}
	assert.NotContains(t, redact(err, "s+cret"), "cret")
}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }
