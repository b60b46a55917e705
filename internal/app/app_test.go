package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"notifycenter/internal/center"
	"notifycenter/internal/channels/sms"
	"notifycenter/internal/config"
	logx "notifycenter/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestMapSettingsDefaults(t *testing.T) {
	s, err := mapSettings(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, center.DefaultConfirmationPeriod, s.ConfirmationPeriod)
	assert.Equal(t, center.DefaultAlarmAttempts, s.AlarmAttempts)
	assert.Equal(t, center.DefaultSendTimeout, s.SendTimeout)

	s, err = mapSettings(&config.Config{
		MaintenanceMode: true,
		Alarm:           config.AlarmConfig{ConfirmationPeriod: "2m", Attempts: intPtr(0)},
		Push:            config.PushConfig{Enabled: true, SendTimeout: "3s"},
	})
	require.NoError(t, err)
	assert.True(t, s.MaintenanceMode)
	assert.True(t, s.PushEnabled)
	assert.Equal(t, 2*time.Minute, s.ConfirmationPeriod)
	assert.Equal(t, 0, s.AlarmAttempts)
	assert.Equal(t, 3*time.Second, s.SendTimeout)
}

func TestMapDirectory(t *testing.T) {
	cfg := &config.Config{
		Push: config.PushConfig{Targets: []config.PushTarget{{
			Name: "phone", Use: true, Ref: " 42/3 ", RequiresConfirmation: true,
			Types:  []string{"alert", "4"},
			Sounds: map[string]string{"alert": "siren", "battery": "silent"},
		}}},
		Email: config.EmailConfig{Recipients: []config.EmailRecipient{
			{Name: "ops", Use: true, Mailer: "main", Address: "ops@example.org", Types: []string{"notification"}},
		}},
		SMS: config.SMSConfig{
			NexxtMobile: config.NexxtMobileConfig{Recipients: []config.SMSRecipient{{Name: "ignored", Use: true, Phone: "+4911"}}},
			Sipgate: config.SipgateConfig{Enabled: true, Recipients: []config.SMSRecipient{
				{Name: "owner", Use: true, Phone: "+49170", Types: []string{"alert"}},
			}},
		},
	}
	d := mapDirectory(cfg)

	require.Len(t, d.Push, 1)
	p := d.Push[0]
	assert.Equal(t, "42/3", p.Ref)
	assert.True(t, p.Eligible(center.TypeAlert))
	assert.True(t, p.Eligible(center.TypeBattery))
	assert.False(t, p.Eligible(center.TypeNotification))
	assert.Equal(t, "siren", p.Sound(center.TypeAlert))
	assert.Equal(t, "silent", p.Sound(center.TypeBattery))
	assert.Equal(t, 1, d.ConfirmationTargets())

	require.Len(t, d.Email, 1)
	assert.Equal(t, "main", d.Email[0].Ref)

	require.Len(t, d.SMS, 1, "disabled providers contribute no route")
	assert.Equal(t, sms.ProviderSipgate, d.SMS[0].Provider)
	assert.True(t, d.SMS[0].Recipients[0].Eligible(center.TypeAlert))
}

func TestMapSMSProvidersSkipsIncomplete(t *testing.T) {
	cfg := &config.Config{SMS: config.SMSConfig{
		NexxtMobile: config.NexxtMobileConfig{Enabled: true},
		Sipgate:     config.SipgateConfig{Enabled: true, User: "u", Password: "p"},
	}}
	got := mapSMSProviders(cfg, logx.Nop())
	assert.NotContains(t, got, sms.ProviderNexxtMobile)
	assert.Contains(t, got, sms.ProviderSipgate)
}

func TestMapStorageConfig(t *testing.T) {
	sc, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "memory", sc.Driver)

	sc, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "3s"}})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 3*time.Second, sc.BusyTimeout)
}

type smsHook struct {
	mu   sync.Mutex
	msgs []string
}

func (h *smsHook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipient string `json:"recipient"`
		Message   string `json:"message"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.mu.Lock()
	h.msgs = append(h.msgs, body.Message)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *smsHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func writeConfig(t *testing.T, path string, maintenance bool, smsURL string) {
	t.Helper()
	cfg := map[string]any{
		"maintenance_mode": maintenance,
		"logging":          map[string]any{"level": "error"},
		"storage":          map[string]any{"driver": "sqlite", "path": filepath.Join(filepath.Dir(path), "nc.db")},
		"alarm":            map[string]any{"confirmation_period": "1m", "attempts": 2},
		"sms": map[string]any{
			"enabled": true,
			"sipgate": map[string]any{
				"enabled": true, "user": "u", "password": "p", "base_url": smsURL,
				"recipients": []any{map[string]any{"name": "owner", "use": true, "phone": "+491701234", "types": []string{"alert"}}},
			},
		},
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, b, 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestAppLifecycleAndReload(t *testing.T) {
	hook := &smsHook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "notifycenter.json")
	writeConfig(t, path, false, srv.URL)

	a, err := NewApp(path, "test")
	require.NoError(t, err)
	assert.Equal(t, config.StatusActive, a.Validation().Status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	rep := a.Center().SendNotification(ctx, center.Notification{SMSText: "intrusion", Type: center.TypeAlert})
	assert.Equal(t, 1, rep.SMS.Delivered)
	assert.True(t, rep.Push.Disabled)
	assert.Equal(t, 1, hook.count())

	// Give the watcher time to register before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, true, srv.URL)
	require.Eventually(t, a.Center().IsUnderMaintenance, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, config.StatusInactive, a.Validation().Status)

	rep = a.Center().SendNotification(ctx, center.Notification{SMSText: "again", Type: center.TypeAlert})
	assert.True(t, rep.Suppressed)
	assert.Equal(t, 1, hook.count())

	recs, err := a.Center().Deliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sipgate", recs[0].Provider)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alarm":{"confirmation_period":"fast"}}`), 0o600))
	_, err := NewApp(path, "test")
	require.ErrorIs(t, err, config.ErrInvalid)
}
