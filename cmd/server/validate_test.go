package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[server]
port = 9090
static_files_dir = "` + filepath.ToSlash(dir) + `"

[flights]
access_key = "secret"
poll_interval_seconds = 60
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	out, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Config is valid")
	assert.Contains(t, out, ":9090")
	assert.Contains(t, out, "Poll interval: 1m0s")
	assert.Contains(t, out, "Access key:    true")
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = -1\nstatic_files_dir = \""+filepath.ToSlash(dir)+"\"\n"), 0o644))

	_, err := execute(t, "validate", "-c", path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "flight-tracker dev\n", out)
}
