package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibmcp/internal/logging"
	"ibmcp/internal/version"
)

func TestLoadConfig_DebugFlagEnablesDebugLogging(t *testing.T) {
	t.Setenv("DEBUG", "")
	require.NoError(t, serveCmd.Flags().Set("debug", "true"))
	t.Cleanup(func() {
		serveCmd.Flags().Set("debug", "false")
		serveCmd.Flag("debug").Changed = false
		logging.Initialize(false)
	})

	cfg, err := loadConfig(serveCmd)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.True(t, logging.IsDebugEnabled())

	var buf bytes.Buffer
	logging.SetOutput(&buf)
	logging.Debug("session trace %d", 42)
	assert.Contains(t, buf.String(), "session trace 42")
}

func TestLoadConfig_DebugOffByDefault(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Cleanup(func() { logging.Initialize(false) })

	cfg, err := loadConfig(stdioCmd)
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.False(t, logging.IsDebugEnabled())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), version.GetVersionString())
}
