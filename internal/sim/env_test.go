// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IOSSIMCTL_DOTENV", filepath.Join(t.TempDir(), "empty.env"))
	require.NoError(t, os.WriteFile(os.Getenv("IOSSIMCTL_DOTENV"), nil, 0o644))

	env, err := Detect()
	require.NoError(t, err)
	assert.Equal(t, "xcrun", env.Xcrun)
	assert.Equal(t, "iPhone 6", env.DefaultDevice)
	assert.Equal(t, time.Second, env.BootSettle)
	assert.Equal(t, 500*time.Millisecond, env.LaunchSettle)
	assert.NotEmpty(t, env.LogsDir)
	assert.NotEmpty(t, env.DevicesDir)
	assert.NotNil(t, env.Context)
}

func TestDetectReadsEnvironmentAndDotEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), "sim.env")
	body := "IOSSIMCTL_DEFAULT_DEVICE=iPhone 15\nIOSSIMCTL_BOOT_SETTLE=2s\n"
	require.NoError(t, os.WriteFile(dotenv, []byte(body), 0o644))
	t.Setenv("IOSSIMCTL_DOTENV", dotenv)
	t.Setenv("IOSSIMCTL_LOGS_DIR", "/var/sim-logs")
	t.Setenv("IOSSIMCTL_CORRELATION_ID", "")
	t.Setenv("CREDIMI_CORRELATION_ID", "corr-789")
	// godotenv never overrides variables that are already set.
	t.Setenv("IOSSIMCTL_DEFAULT_DEVICE", "")
	require.NoError(t, os.Unsetenv("IOSSIMCTL_DEFAULT_DEVICE"))
	t.Setenv("IOSSIMCTL_BOOT_SETTLE", "")
	require.NoError(t, os.Unsetenv("IOSSIMCTL_BOOT_SETTLE"))

	env, err := Detect()
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", env.DefaultDevice)
	assert.Equal(t, 2*time.Second, env.BootSettle)
	assert.Equal(t, "/var/sim-logs", env.LogsDir)
	assert.Equal(t, "corr-789", env.CorrelationID)
}

func TestDetectRejectsInvalidDuration(t *testing.T) {
	t.Setenv("IOSSIMCTL_DOTENV", filepath.Join(t.TempDir(), "empty.env"))
	require.NoError(t, os.WriteFile(os.Getenv("IOSSIMCTL_DOTENV"), nil, 0o644))
	t.Setenv("IOSSIMCTL_LAUNCH_SETTLE", "soon")

	_, err := Detect()
	assert.Error(t, err)
}
