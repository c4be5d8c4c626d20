package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeAppliesDefaultsWithNoConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	require.NoError(t, Initialize())
	require.Equal(t, "development", GetString("environment"))
	require.Equal(t, 15, PoolSize())
	require.False(t, GetBool("use-braintrust-prompts"))
}

func TestInitializeReadsProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".dataplane"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dataplane", "dataplane.yaml"), []byte("environment: production\ndatabase:\n  pool-size: 25\n"), 0o644))
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)

	require.NoError(t, Initialize())
	require.Equal(t, "production", GetString("environment"))
	require.Equal(t, 25, PoolSize())
}

func TestEnvironmentVariableOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".dataplane"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dataplane", "dataplane.yaml"), []byte("environment: production\n"), 0o644))
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
	t.Setenv("DATAPLANE_ENVIRONMENT", "staging")

	require.NoError(t, Initialize())
	require.Equal(t, "staging", GetString("environment"))
}

func TestLoadTimeoutsFallsBackToSpecDefaultsWithoutInitialize(t *testing.T) {
	v = nil
	timeouts := LoadTimeouts()
	require.Equal(t, 100, timeouts.ProbeRowCap)
	require.EqualValues(t, 60_000_000_000, timeouts.LLMSoft) // 60s in nanoseconds
}

func TestSetOverridesWithoutInitialize(t *testing.T) {
	v = nil
	Set("environment", "test")
	require.Equal(t, "test", GetString("environment"))
}
