package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountConfig(t *testing.T) {
	skip, err := ParseAccountConfig(false)
	require.NoError(t, err)
	assert.True(t, skip.Skip)

	empty, err := ParseAccountConfig(nil)
	require.NoError(t, err)
	assert.False(t, empty.Skip)
	cfg, ok := empty.Class("anything")
	assert.True(t, ok)
	assert.Equal(t, DefaultScanInterval, cfg.ScanInterval)

	parsed, err := ParseAccountConfig(map[string]interface{}{
		"meters":   map[string]interface{}{"scan_interval": "15m", "name_format": "{code}"},
		"invoices": false,
		"accounts": true,
	})
	require.NoError(t, err)

	meters, ok := parsed.Class("meters")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, meters.ScanInterval)
	assert.Equal(t, "{code}", meters.NameFormat)

	_, ok = parsed.Class("invoices")
	assert.False(t, ok)

	accounts, ok := parsed.Class("accounts")
	require.True(t, ok)
	assert.Equal(t, DefaultScanInterval, accounts.ScanInterval)
}

func TestParseAccountConfigErrors(t *testing.T) {
	_, err := ParseAccountConfig("nope")
	assert.ErrorIs(t, err, ErrInvalidAccountConfig)

	_, err = ParseAccountConfig(map[string]interface{}{
		"meters": map[string]interface{}{"scan_interval": "soon"},
	})
	assert.ErrorIs(t, err, ErrInvalidAccountConfig)
}

func TestMerge(t *testing.T) {
	var base AccountConfig
	base.SetClass("meters", ClassConfig{ScanInterval: time.Hour, NameFormat: "base"})
	base.DisableClass("invoices")

	var override AccountConfig
	override.SetClass("meters", ClassConfig{ScanInterval: time.Minute})
	override.SetClass("invoices", ClassConfig{})
	override.DisableClass("accounts")

	merged := Merge(base, override)

	meters, ok := merged.Class("meters")
	require.True(t, ok)
	assert.Equal(t, time.Minute, meters.ScanInterval)
	assert.Equal(t, "base", meters.NameFormat)

	_, ok = merged.Class("invoices")
	assert.True(t, ok)

	_, ok = merged.Class("accounts")
	assert.False(t, ok)

	// base untouched
	_, ok = base.Class("invoices")
	assert.False(t, ok)
}

func TestForAccount(t *testing.T) {
	integration := IntegrationConfig{
		Accounts: map[string]AccountConfig{"1": SkipAccount},
	}
	integration.Default.DisableClass("meters")

	assert.True(t, integration.ForAccount("1").Skip)

	resolved := integration.ForAccount("2")
	assert.False(t, resolved.Skip)
	_, ok := resolved.Class("meters")
	assert.False(t, ok)
}
