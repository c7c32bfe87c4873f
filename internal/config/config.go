// Package config binds the environment-variable configuration surface into
// a single immutable Config, loaded once at process start.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of environment-derived settings. It is loaded once
// in cmd/equicloud and handed (as a pointer, or field by field) to every
// component that needs it;
// nothing downstream reads os.Getenv directly.
type Config struct {
	ScyllaURI               string `env:"SCYLLA_URI"`
	ScyllaUsername          string `env:"SCYLLA_USERNAME"`
	ScyllaPassword          string `env:"SCYLLA_PASSWORD"`
	ScyllaPoolSize          int    `env:"SCYLLA_POOL_SIZE" envDefault:"4"`
	ScyllaConnTimeoutMS     int    `env:"SCYLLA_CONNECTION_TIMEOUT_MS" envDefault:"5000"`

	ServerHost string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	ServerFQDN string `env:"SERVER_FQDN"`

	MaxBackupSizeBytes      int64 `env:"MAX_BACKUP_SIZE_BYTES" envDefault:"62914560"`
	MaxKeySizeBytes         int64 `env:"MAX_KEY_SIZE_BYTES" envDefault:"1048576"`
	MaxDatastoreKeySizeBytes int64 `env:"MAX_DATASTORE_KEY_SIZE_BYTES" envDefault:"1048576"`

	CompressionEnabled bool `env:"COMPRESSION_ENABLED" envDefault:"true"`
	CompressionLevel   int  `env:"COMPRESSION_LEVEL" envDefault:"3"`

	DatastoreEnabled bool `env:"DATASTORE_ENABLED" envDefault:"false"`

	DiscordClientID         string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret     string `env:"DISCORD_CLIENT_SECRET"`
	DiscordAllowedUserIDs   string `env:"DISCORD_ALLOWED_USER_IDS"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	RateLimitEnabled  bool    `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"50"`
	RateLimitBurst    int     `env:"RATE_LIMIT_BURST" envDefault:"150"`

	MetricsEnabled    bool   `env:"METRICS_ENABLED" envDefault:"false"`
	APIRootRedirectURL string `env:"API_ROOT_REDIRECT_URL"`
}

// Load reads the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// RedirectURI builds the OAuth callback redirect target from ServerFQDN.
func (c *Config) RedirectURI() string {
	return "https://" + c.ServerFQDN + "/v1/oauth/callback"
}
