package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 8080
  host: "0.0.0.0"

database:
  enabled: true
  host: "localhost"
  port: 5432
  name: "testdb"
  user: "testuser"
  password: "testpass"
  ssl_mode: "disable"

logging:
  level: "debug"
  format: "json"

provider:
  url: "https://lk.example.org/api"
  username: "user@example.org"
  password: "secret"
  timeout: 10s

integration:
  dev_presentation: true
  default:
    meters:
      scan_interval: 30m
      name_format: "Meter {code}"
    invoices: false
  accounts:
    "100200300": false
    "400500600":
      invoices:
        scan_interval: 7200
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 9090, config.Server.MetricsPort)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, "testdb", config.Database.Name)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, 10*time.Second, config.Provider.Timeout)
	assert.Equal(t, 10*time.Minute, config.Provider.InvoiceCacheTTL)
	assert.Equal(t, "0 */6 * * *", config.Integration.RefreshSchedule)

	skipped := config.Integration.ForAccount("100200300")
	assert.True(t, skipped.Skip)

	defaulted := config.Integration.ForAccount("999")
	assert.False(t, defaulted.Skip)
	assert.True(t, defaulted.DevPresentation)
	meters, ok := defaulted.Class("meters")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, meters.ScanInterval)
	assert.Equal(t, "Meter {code}", meters.NameFormat)
	_, ok = defaulted.Class("invoices")
	assert.False(t, ok)

	overridden := config.Integration.ForAccount("400500600")
	invoices, ok := overridden.Class("invoices")
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, invoices.ScanInterval)
	meters, ok = overridden.Class("meters")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, meters.ScanInterval)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APP_DATABASE_HOST", "envhost")
	t.Setenv("APP_DATABASE_PORT", "5433")
	t.Setenv("ENERGOSYNC_PROVIDER_PASSWORD", "from-env")

	configPath := writeConfig(t, `
database:
  host: $APP_DATABASE_HOST
  port: $APP_DATABASE_PORT
  name: "testdb"
provider:
  url: "https://lk.example.org/api"
  username: "user"
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "envhost", config.Database.Host)
	assert.Equal(t, 5433, config.Database.Port)
	assert.Equal(t, "from-env", config.Provider.Password)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		errMessage string
	}{
		{
			name:       "missing provider url",
			content:    "provider:\n  username: user\n",
			errMessage: "provider.url is required",
		},
		{
			name:       "mqtt without broker",
			content:    "provider:\n  url: http://x\n  username: u\nmqtt:\n  enabled: true\n",
			errMessage: "mqtt.broker is required",
		},
		{
			name:       "invalid class settings",
			content:    "provider:\n  url: http://x\n  username: u\nintegration:\n  default:\n    meters: [1, 2]\n",
			errMessage: "invalid account configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMessage)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMixedCaseAccountCodes(t *testing.T) {
	configPath := writeConfig(t, `
provider:
  url: "https://lk.example.org/api"
  username: "user@example.org"

integration:
  accounts:
    "AB1234567": false
    "555": false
    "Cd7654321":
      meters: false
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.True(t, config.Integration.ForAccount("AB1234567").Skip)
	assert.True(t, config.Integration.ForAccount("555").Skip)

	mixed := config.Integration.ForAccount("Cd7654321")
	assert.False(t, mixed.Skip)
	_, ok := mixed.Class("meters")
	assert.False(t, ok)

	assert.False(t, config.Integration.ForAccount("XY0000000").Skip)
}
