package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"notifycenter/internal/center"
	"notifycenter/internal/config"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func init() { color.NoColor = true }

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, center.Report{
		Type:  center.TypeAlert,
		Armed: true,
		Push:  center.ChannelReport{Delivered: 2, Failed: 1},
		Email: center.ChannelReport{Disabled: true},
		SMS:   center.ChannelReport{Ineligible: 3},
	})
	out := buf.String()
	assert.Contains(t, out, "type: alert")
	assert.Contains(t, out, "push  delivered=2 failed=1 ineligible=0")
	assert.Contains(t, out, "email disabled")
	assert.Contains(t, out, "sms   delivered=0 failed=0 ineligible=3")
	assert.Contains(t, out, "ALARM ARMED")

	buf.Reset()
	printReport(&buf, center.Report{Suppressed: true})
	assert.Contains(t, buf.String(), "SUPPRESSED")
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	printValidation(&buf, config.Validation{Status: config.StatusError, Label: "error", Issues: []string{"push: telegram token missing"}})
	assert.Equal(t, "status: ERROR (200)\n  ! push: telegram token missing\n", buf.String())
}

func TestValidateCommandExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"maintenance_mode":true}`), 0o600))
	issues := filepath.Join(dir, "issues.json")
	require.NoError(t, os.WriteFile(issues, []byte(`{"push":{"enabled":true}}`), 0o600))

	cmd := newCommand("test")
	require.NoError(t, cmd.Run(context.Background(), []string{"notifycenter", "--config", good, "validate"}))

	cmd = newCommand("test")
	cmd.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := cmd.Run(context.Background(), []string{"notifycenter", "--config", issues, "validate"})
	require.Error(t, err)
}
