package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ENV", "API_URL", "WS_URL", "TIMEOUT", "MAX_RETRIES", "BACKOFF", "CACHE_TTL", "DEBUG", "KEYRING_SERVICE", "TOKEN_FILE"} {
		name := EnvPrefix + "_" + key
		if old, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { _ = os.Setenv(name, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Dir: t.TempDir(), Origin: "https://school.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://school.example.com/api", cfg.APIURL)
	assert.Equal(t, "wss://school.example.com/ws", cfg.WSURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "exponential", cfg.Backoff)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "tutorapi", cfg.KeyringService)
}

func TestLoadDotEnvLayering(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, ".env", "TUTOR_API_URL=http://localhost:8000/api\nTUTOR_MAX_RETRIES=5\nOTHER=ignored\n")
	writeEnvFile(t, dir, ".env.staging", "TUTOR_API_URL=https://staging.example.com/api/\nTUTOR_DEBUG=true\n")

	cfg, err := Load(Options{Dir: dir, Env: "staging"})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "https://staging.example.com/api", cfg.APIURL)
	assert.Equal(t, "wss://staging.example.com/ws", cfg.WSURL)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.True(t, cfg.Debug)

	_, leaked := os.LookupEnv("TUTOR_DEBUG")
	assert.False(t, leaked, "dotenv values must not leak into the process environment")
}

func TestLoadEnvironmentWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, ".env", "TUTOR_API_URL=http://localhost:8000/api\nTUTOR_TIMEOUT=5s\n")
	t.Setenv("TUTOR_API_URL", "http://api.internal:9000/api")
	t.Setenv("TUTOR_BACKOFF", "decorrelated")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "http://api.internal:9000/api", cfg.APIURL)
	assert.Equal(t, "ws://api.internal:9000/ws", cfg.WSURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "decorrelated", cfg.Backoff)
}

func TestLoadExplicitWSURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_WS_URL", "wss://push.example.com/socket")

	cfg, err := Load(Options{Dir: t.TempDir(), Origin: "https://school.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com/socket", cfg.WSURL)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_MAX_RETRIES", "11")
	t.Setenv("TUTOR_BACKOFF", "linear")

	_, err := Load(Options{Dir: t.TempDir(), Origin: "https://school.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "backoff")
}

func TestLoadWithoutAPIURLOrOrigin(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		api     string
		ws      string
		wantErr bool
	}{
		{origin: "https://school.example.com", api: "https://school.example.com/api", ws: "wss://school.example.com/ws"},
		{origin: "http://localhost:3000/dashboard", api: "http://localhost:3000/api", ws: "ws://localhost:3000/ws"},
		{origin: "ftp://files.example.com", wantErr: true},
		{origin: "/relative", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			api, ws, err := SameOrigin(tt.origin)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.api, api)
			assert.Equal(t, tt.ws, ws)
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &Config{Timeout: time.Second, MaxRetries: 2, Backoff: "decorrelated", CacheTTL: time.Minute, Debug: true}
	assert.Len(t, cfg.ClientOptions(), 5)

	cfg.Backoff = "unknown"
	cfg.Debug = false
	assert.Len(t, cfg.ClientOptions(), 3)
}

func TestLoadAPIURLOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_API_URL", "http://ignored.example.com/api")

	cfg, err := Load(Options{Dir: t.TempDir(), APIURL: "http://127.0.0.1:8080/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/api", cfg.APIURL)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", cfg.WSURL)
}

func TestLoadEnvNamedInDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, ".env", "TUTOR_ENV=staging\nTUTOR_API_URL=http://localhost:8000/api\n")
	writeEnvFile(t, dir, ".env.staging", "TUTOR_API_URL=https://staging.example.com/api\n")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "https://staging.example.com/api", cfg.APIURL)
}
