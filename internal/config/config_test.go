// AngelaMos | 2026
// config_test.go

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseYAML = `
database:
  url: postgres://localhost/entitlements
redis:
  url: redis://localhost:6379/0
`

func TestLoad_Defaults(t *testing.T) {
	c, err := load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "academy-identity", c.JWT.Issuer)
	assert.Equal(t, "keys/public.pem", c.JWT.PublicKeyPath)
	assert.Equal(t, 3, c.Quota.RetryAttempts)
	assert.Equal(t, time.Minute, c.RateLimit.Window)
	assert.Equal(t, 30, c.RateLimit.DownloadRequests)
	assert.Equal(t, 120, c.RateLimit.CheckRequests)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, "/metrics", c.Metrics.Path)
	assert.True(t, c.IsDevelopment())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	c, err := load(writeConfig(t, baseYAML+`
server:
  port: 9090
quota:
  retry_attempts: 7
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 7, c.Quota.RetryAttempts)
	assert.Equal(t, "0.0.0.0:9090", c.Server.Address())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("QUOTA_RETRY_ATTEMPTS", "2")
	t.Setenv("UNMAPPED_VARIABLE", "ignored")

	c, err := load(writeConfig(t, baseYAML+`
server:
  port: 9090
`))
	require.NoError(t, err)

	assert.Equal(t, 7070, c.Server.Port)
	assert.Equal(t, 2, c.Quota.RetryAttempts)
	assert.True(t, c.IsProduction())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{
			name: "missing database url",
			yaml: "redis:\n  url: redis://localhost\n",
		},
		{
			name: "missing redis url",
			yaml: "database:\n  url: postgres://localhost/x\n",
		},
		{
			name: "wildcard origin with credentials",
			yaml: baseYAML + "cors:\n  allowed_origins: ['*']\n",
		},
		{
			name: "zero retry attempts",
			yaml: baseYAML,
			env:  map[string]string{"QUOTA_RETRY_ATTEMPTS": "0"},
		},
		{
			name: "metrics enabled without path",
			yaml: baseYAML,
			env:  map[string]string{"METRICS_PATH": ""},
		},
		{
			name: "insecure otel in production",
			yaml: baseYAML,
			env: map[string]string{
				"ENVIRONMENT":  "production",
				"OTEL_ENABLED": "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
