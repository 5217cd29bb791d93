package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v, err := New()
	require.NoError(t, err)

	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":5001", s.HTTPAddr)
	assert.Equal(t, 50051, s.GRPCPort)
	assert.Equal(t, "gemini-2.0-flash", s.GeminiModel)
	assert.Equal(t, filepath.Join(Dir(), "policy.yaml"), s.PolicyPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INTENTGUARD_HTTP_ADDR", ":8080")
	t.Setenv("INTENTGUARD_GRPC_PORT", "6000")
	t.Setenv("GEMINI_API_KEY", "key-from-env")
	t.Setenv("INTENTGUARD_RATE_LIMIT_WINDOW", "30s")

	v, err := New()
	require.NoError(t, err)
	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.HTTPAddr)
	assert.Equal(t, 6000, s.GRPCPort)
	assert.Equal(t, "key-from-env", s.GeminiAPIKey)
	assert.Equal(t, 30*time.Second, s.RateLimitWindow)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("public_url: https://pay.example.com\npolicy: /etc/intentguard/policy.yaml\n"), 0o644))

	v, err := New()
	require.NoError(t, err)
	s, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com", s.PublicURL)
	assert.Equal(t, "/etc/intentguard/policy.yaml", s.PolicyPath)
}

func TestLoadMissingConfigFile(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	_, err = Load(v, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	v.Set(KeyGRPCPort, 70000)
	_, err = Load(v, "")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("INTENTGUARD_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("INTENTGUARD_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("INTENTGUARD_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("INTENTGUARD_TEST_DOTENV"))
}

func TestLoadDotEnvMissingIsNotError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
