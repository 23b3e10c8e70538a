package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func minimal(t *testing.T) string {
	return `
[server]
static_files_dir = "` + filepath.ToSlash(t.TempDir()) + `"

[flights]
access_key = "secret"
`
}

func TestLoadAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal(t)))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "secret", cfg.Flights.AccessKey)
	assert.Equal(t, 5*time.Minute, cfg.Flights.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Flights.RequestTimeout())
	assert.Equal(t, time.Minute, cfg.Flights.BreakerTimeout())
	assert.Equal(t, 5, cfg.Flights.BreakerFailures)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Queue.Enabled)
}

func TestLoadAccessKeyFromEnv(t *testing.T) {
	t.Setenv(AccessKeyEnv, "from-env")

	cfg, err := Load(writeConfig(t, minimal(t)))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Flights.AccessKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestLoadBadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[server\nport = "))
	assert.ErrorContains(t, err, "failed to decode")
}

func TestLoadWithFallback(t *testing.T) {
	path := writeConfig(t, minimal(t))

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Flights.AccessKey)

	t.Chdir(t.TempDir())
	_, err = LoadWithFallback(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "expected locations")
}

func TestValidateRejects(t *testing.T) {
	static := filepath.ToSlash(t.TempDir())

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "port",
			body: `[server]
port = 70000
static_files_dir = "` + static + `"`,
			want: "invalid server port",
		},
		{
			name: "duplicate port",
			body: `[server]
port = 8080
additional_ports = [8080]
static_files_dir = "` + static + `"`,
			want: "duplicate port",
		},
		{
			name: "static dir",
			body: `[server]
static_files_dir = "/does/not/exist"`,
			want: "static files directory",
		},
		{
			name: "poll interval",
			body: `[server]
static_files_dir = "` + static + `"
[flights]
poll_interval_seconds = 1`,
			want: "poll_interval_seconds",
		},
		{
			name: "queue without url",
			body: `[server]
static_files_dir = "` + static + `"
[queue]
enabled = true
element_class = "wait"`,
			want: "queue url",
		},
		{
			name: "queue selector",
			body: `[server]
static_files_dir = "` + static + `"
[queue]
enabled = true
url = "https://example.com/queue"
element_class = ".wait time"`,
			want: "single class name",
		},
		{
			name: "weather types",
			body: `[server]
static_files_dir = "` + static + `"
[wx]
enabled = true`,
			want: "at least one weather type",
		},
		{
			name: "prefetch code",
			body: `[server]
static_files_dir = "` + static + `"
[wx]
enabled = true
fetch_metar = true
prefetch_airports = ["OSL"]`,
			want: "ICAO",
		},
		{
			name: "metrics path",
			body: `[server]
static_files_dir = "` + static + `"
[metrics]
path = "metrics"`,
			want: "metrics path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateQueueAndWeatherDefaults(t *testing.T) {
	body := minimal(t) + `
[queue]
enabled = true
url = "https://example.com/queue"
element_class = "wait-time"

[wx]
enabled = true
fetch_metar = true
prefetch_airports = [" engm "]

[photos]
enabled = true
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Queue.Interval())
	assert.Equal(t, 10, cfg.Queue.RequestTimeoutSeconds)
	assert.Equal(t, "https://aviationweather.gov/api/data", cfg.Weather.APIBaseURL)
	assert.Equal(t, []string{"ENGM"}, cfg.Weather.PrefetchAirports)
	assert.Equal(t, 15, cfg.Weather.CacheExpiryMinutes)
	assert.Equal(t, "https://api.planespotters.net/pub", cfg.Photos.APIBaseURL)
	assert.Equal(t, 1440, cfg.Photos.CacheTTLMinutes)
}

func TestSampleConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.toml"))
	require.NoError(t, err)

	cfg.Server.StaticFilesDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"ENGM"}, cfg.Weather.PrefetchAirports)
}
