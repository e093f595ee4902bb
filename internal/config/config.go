package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variables overriding file settings
const EnvPrefix = "ENERGOSYNC"

// Config holds all configuration for our application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Integration IntegrationConfig `mapstructure:"integration"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Host           string  `mapstructure:"host"`
	MetricsPort    int     `mapstructure:"metrics_port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// ConnectionString builds a lib/pq keyword/value connection string.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig configures access to the utility provider's account API
type ProviderConfig struct {
	URL             string        `mapstructure:"url"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	Timeout         time.Duration `mapstructure:"timeout"`
	InvoiceCacheTTL time.Duration `mapstructure:"invoice_cache_ttl"`
}

type MQTTConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Broker          string `mapstructure:"broker"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	StatePrefix     string `mapstructure:"state_prefix"`
	QoS             int    `mapstructure:"qos"`
}

type KafkaConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	BatchSize int      `mapstructure:"batch_size"`
	Balancer  string   `mapstructure:"balancer"`
}

// IntegrationConfig is the final configuration snapshot consumed by the refresh orchestrator
type IntegrationConfig struct {
	DevPresentation    bool                     `mapstructure:"dev_presentation"`
	RefreshSchedule    string                   `mapstructure:"refresh_schedule"`
	MaxConcurrentTasks int                      `mapstructure:"max_concurrent_tasks"`
	Default            AccountConfig            `mapstructure:"default"`
	Accounts           map[string]AccountConfig `mapstructure:"accounts"`
}

// ForAccount resolves the effective configuration of one account: the explicit
// override merged over the shared default, or the default when no override exists.
func (c IntegrationConfig) ForAccount(code string) AccountConfig {
	resolved := c.Default
	if override, ok := c.override(code); ok {
		if override.Skip {
			return override
		}
		resolved = Merge(c.Default, override)
	}
	resolved.DevPresentation = c.DevPresentation
	return resolved
}

// override finds the account entry for code. Keys read through viper are
// lowercased, so an exact miss falls back to a case-insensitive match.
func (c IntegrationConfig) override(code string) (AccountConfig, bool) {
	if override, ok := c.Accounts[code]; ok {
		return override, true
	}
	for key, override := range c.Accounts {
		if strings.EqualFold(key, code) {
			return override, true
		}
	}
	return AccountConfig{}, false
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(strings.NewReader(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings the daemon cannot run without
func (c *Config) Validate() error {
	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}
	if c.Provider.Username == "" {
		return fmt.Errorf("provider.username is required")
	}
	if c.Integration.MaxConcurrentTasks < 0 {
		return fmt.Errorf("integration.max_concurrent_tasks must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	accountConfigType := reflect.TypeOf(AccountConfig{})

	return mapstructure.ComposeDecodeHookFunc(
		func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
			if to != accountConfigType {
				return data, nil
			}
			return ParseAccountConfig(data)
		},
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "energosync")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provider.url", "")
	v.SetDefault("provider.username", "")
	v.SetDefault("provider.password", "")
	v.SetDefault("provider.rate_limit", 2.0)
	v.SetDefault("provider.rate_limit_burst", 4)
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.invoice_cache_ttl", "10m")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.state_prefix", "energosync")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "energosync.entity-states")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.balancer", "hash")

	v.SetDefault("integration.dev_presentation", false)
	v.SetDefault("integration.refresh_schedule", "0 */6 * * *")
	v.SetDefault("integration.max_concurrent_tasks", 0)
}
