package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "notifycenter/pkg/logx"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state", "center.json")}, logx.Nop())
	require.NoError(t, err)
	sqliteStore, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "center.db"), BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	memStore, err := Open(Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)

	stores := map[string]Store{"file": fileStore, "sqlite": sqliteStore, "memory": memStore}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestAlarmRoundTrip(t *testing.T) {
	ctx := context.Background()
	armed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, st := range openAll(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			r, err := st.LoadAlarm(ctx)
			require.NoError(t, err)
			require.False(t, r.Pending())
			require.Zero(t, r.Attempt)

			want := AlarmRecord{Title: "Einbruch", Text: "Window opened", Attempt: 2, ArmedAt: armed, UpdatedAt: armed.Add(time.Minute)}
			require.NoError(t, st.SaveAlarm(ctx, want))

			got, err := st.LoadAlarm(ctx)
			require.NoError(t, err)
			require.True(t, got.Pending())
			require.Equal(t, want.Title, got.Title)
			require.Equal(t, want.Text, got.Text)
			require.Equal(t, want.Attempt, got.Attempt)
			require.True(t, want.ArmedAt.Equal(got.ArmedAt))

			require.NoError(t, st.SaveAlarm(ctx, AlarmRecord{}))
			got, err = st.LoadAlarm(ctx)
			require.NoError(t, err)
			require.False(t, got.Pending())
			require.Zero(t, got.Attempt)
		})
	}
}

func TestRecentDeliveriesNewestLast(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, st := range openAll(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			for i, rcpt := range []string{"a", "b", "c"} {
				require.NoError(t, st.AppendDelivery(ctx, DeliveryRecord{
					ID: rcpt, At: base.Add(time.Duration(i) * time.Second), Channel: "sms",
					Provider: "sipgate", Recipient: rcpt, MessageType: "alert", OK: i != 1,
				}))
			}
			got, err := st.RecentDeliveries(ctx, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, "b", got[0].Recipient)
			require.False(t, got[0].OK)
			require.Equal(t, "c", got[1].Recipient)
			require.Equal(t, "sipgate", got[1].Provider)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "center.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.SaveAlarm(ctx, AlarmRecord{Title: "t", Text: "x", Attempt: 1}))
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	got, err := st.LoadAlarm(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempt)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.ErrorIs(t, err, ErrUnknown)
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Close())
	require.ErrorIs(t, st.SaveAlarm(context.Background(), AlarmRecord{}), ErrClosed)
}
