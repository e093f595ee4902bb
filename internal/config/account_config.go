package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// DefaultScanInterval applies to entity classes without an explicit scan_interval
const DefaultScanInterval = time.Hour

var ErrInvalidAccountConfig = errors.New("invalid account configuration")

// ClassConfig holds per entity-class settings
type ClassConfig struct {
	ScanInterval time.Duration
	NameFormat   string
}

// AccountConfig is the per-account configuration snapshot, keyed by entity class config key.
// A disabled class is stored as a nil entry; Skip marks the whole account as skipped.
type AccountConfig struct {
	Skip            bool
	DevPresentation bool
	classes         map[string]*ClassConfig
}

// SkipAccount is the sentinel configuration for an account that must not be refreshed.
var SkipAccount = AccountConfig{Skip: true}

// SetClass stores settings for a class key.
func (c *AccountConfig) SetClass(key string, cfg ClassConfig) {
	if c.classes == nil {
		c.classes = make(map[string]*ClassConfig)
	}
	c.classes[key] = &cfg
}

// DisableClass marks a class key as skipped for this account.
func (c *AccountConfig) DisableClass(key string) {
	if c.classes == nil {
		c.classes = make(map[string]*ClassConfig)
	}
	c.classes[key] = nil
}

// Class returns the settings for a class key; ok is false when the class is disabled.
func (c AccountConfig) Class(key string) (ClassConfig, bool) {
	cfg, present := c.classes[key]
	if !present {
		return ClassConfig{ScanInterval: DefaultScanInterval}, true
	}
	if cfg == nil {
		return ClassConfig{}, false
	}
	resolved := *cfg
	if resolved.ScanInterval <= 0 {
		resolved.ScanInterval = DefaultScanInterval
	}
	return resolved, true
}

// Merge overlays override's class settings on top of base.
func Merge(base, override AccountConfig) AccountConfig {
	merged := AccountConfig{
		Skip:            override.Skip,
		DevPresentation: base.DevPresentation || override.DevPresentation,
		classes:         make(map[string]*ClassConfig, len(base.classes)+len(override.classes)),
	}
	for key, cfg := range base.classes {
		merged.classes[key] = cfg
	}
	for key, cfg := range override.classes {
		baseCfg, ok := merged.classes[key]
		if cfg == nil || !ok || baseCfg == nil {
			merged.classes[key] = cfg
			continue
		}
		combined := *baseCfg
		if cfg.ScanInterval > 0 {
			combined.ScanInterval = cfg.ScanInterval
		}
		if cfg.NameFormat != "" {
			combined.NameFormat = cfg.NameFormat
		}
		merged.classes[key] = &combined
	}
	return merged
}

// ParseAccountConfig decodes a loosely typed account entry: `false` skips the account,
// a mapping holds per class settings where `false` disables the class.
func ParseAccountConfig(data interface{}) (AccountConfig, error) {
	switch value := data.(type) {
	case nil:
		return AccountConfig{}, nil
	case bool:
		if !value {
			return SkipAccount, nil
		}
		return AccountConfig{}, nil
	}

	raw, err := cast.ToStringMapE(data)
	if err != nil {
		return AccountConfig{}, fmt.Errorf("%w: %v", ErrInvalidAccountConfig, err)
	}

	var result AccountConfig
	for key, classData := range raw {
		if enabled, ok := classData.(bool); ok {
			if enabled {
				result.SetClass(key, ClassConfig{})
			} else {
				result.DisableClass(key)
			}
			continue
		}

		classCfg, err := parseClassConfig(classData)
		if err != nil {
			return AccountConfig{}, fmt.Errorf("%w: %s: %v", ErrInvalidAccountConfig, key, err)
		}
		result.SetClass(key, classCfg)
	}

	return result, nil
}

func parseClassConfig(data interface{}) (ClassConfig, error) {
	raw, err := cast.ToStringMapE(data)
	if err != nil {
		return ClassConfig{}, err
	}

	var cfg ClassConfig
	if interval, ok := raw["scan_interval"]; ok {
		if cfg.ScanInterval, err = parseInterval(interval); err != nil {
			return ClassConfig{}, fmt.Errorf("scan_interval: %w", err)
		}
	}
	if format, ok := raw["name_format"]; ok {
		if cfg.NameFormat, err = cast.ToStringE(format); err != nil {
			return ClassConfig{}, fmt.Errorf("name_format: %w", err)
		}
	}
	return cfg, nil
}

// parseInterval accepts duration strings ("30m") or plain numbers of seconds.
func parseInterval(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case int, int64, float64, uint64:
		seconds, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	interval, err := cast.ToDurationE(value)
	if err != nil {
		return 0, err
	}
	if interval < 0 {
		return 0, fmt.Errorf("negative interval %s", interval)
	}
	return interval, nil
}
