package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWriterFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "center"))

	log.Debug("hidden")
	log.Warn("delivery failed", Int("attempt", 2), Duration("took", 1500*time.Millisecond), Err(errors.New("boom")))

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "delivery failed", rec["message"])
	assert.Equal(t, "center", rec["comp"])
	assert.EqualValues(t, 2, rec["attempt"])
	// New renames the error field globally; accept either spelling.
	errVal := rec["error"]
	if errVal == nil {
		errVal = rec["err"]
	}
	assert.Equal(t, "boom", errVal)
	assert.Contains(t, rec["caller"], "logging_test.go:")
}

func TestNopAndZero(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	assert.NotPanics(t, func() {
		zero.Info("ignored")
		Nop().Error("ignored", Err(nil))
	})
	assert.False(t, zero.With(String("k", "v")).IsZero())
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nc.log")
	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("dropped")
	log.Error("kept", Bool("armed", true))

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now visible")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, b)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, true, lines[0]["armed"])
	assert.Equal(t, "now visible", lines[1]["message"])
}
