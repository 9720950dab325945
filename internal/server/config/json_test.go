package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"database_dsn":                    "postgres://file",
		"secret_key":                      "file_secret",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"store_timeout":                   "2s",
		"max_active_sessions":             4,
		"require_refresh_secret":          true,
		"s3_bucket":                       "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://file", cfg.DatabaseDSN)
		assert.Equal(t, "file_secret", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
		assert.Equal(t, 4, cfg.MaxActiveSessions)
		assert.True(t, cfg.RequireRefreshSecret)
		assert.Equal(t, "bucket", cfg.S3Bucket)
	})

	t.Run("missing keys keep current values", func(t *testing.T) {
		cfg := &Config{S3Region: "eu-central-1", TokenIssuer: "chirp"}
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, "eu-central-1", cfg.S3Region)
		assert.Equal(t, "chirp", cfg.TokenIssuer)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrHTTP: "defaults:1234"}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", bad}))
	})
}
