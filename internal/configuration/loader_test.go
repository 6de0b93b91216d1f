package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name+".yml")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err, "failed to write yaml %s", path)
}

func TestLoadDir_success(t *testing.T) {
	dir := t.TempDir()

	writeYAML(t, dir, "application", `
app:
  profile: "local"
  log-level: "info"
cluster:
  node-id: 3
  data-dir: "data/n3"
space:
  retry-backoff: 250
`)
	writeYAML(t, dir, "application-local", `
app:
  log-level: "debug"
cluster:
  bootstrap: true
`)

	cfg, err := LoadDir(dir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "local", cfg.App.Profile)
	assert.Equal(t, "debug", cfg.App.LogLevel, "profile overlay wins")
	assert.Equal(t, uint64(3), cfg.Cluster.NodeID)
	assert.True(t, cfg.Cluster.Bootstrap)
	assert.Equal(t, "data/n3", cfg.Cluster.DataDir)
}

func TestLoadDir_missingBaseFile(t *testing.T) {
	cfg, err := LoadDir(t.TempDir())

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "application.yml not found")
}

func TestLoadDir_missingProfile(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "application", "app:\n  log-level: info\n")

	cfg, err := LoadDir(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "profile")
}

func TestLoadDir_missingProfileFile(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "application", "app:\n  profile: \"test\"\n")

	cfg, err := LoadDir(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "application-test")
}

func TestLoadDir_envExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TS_DATA_DIR", "/var/lib/ts")

	writeYAML(t, dir, "application", `
app:
  profile: "local"
cluster:
  data-dir: "${TS_DATA_DIR}"
`)
	writeYAML(t, dir, "application-local", "")

	cfg, err := LoadDir(dir)

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ts", cfg.Cluster.DataDir)
}

func TestLoadDir_unsetEnvFails(t *testing.T) {
	dir := t.TempDir()

	writeYAML(t, dir, "application", `
app:
  profile: "local"
cluster:
  data-dir: "${TS_UNSET_DATA_DIR_FOR_TEST}"
`)
	writeYAML(t, dir, "application-local", "")

	cfg, err := LoadDir(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TS_UNSET_DATA_DIR_FOR_TEST")
}
