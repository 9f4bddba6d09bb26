package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	WordPress WordPressConfig `mapstructure:"wordpress"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Dev       DevConfig       `mapstructure:"dev"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds settings for the HTTP surface consumed by the
// embedded WordPress page.
type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
}

// BackendConfig holds settings for the festival REST backend.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// WordPressConfig holds settings for the production admin-ajax.php bridge.
// When enabled, subscription mutations go through WordPress instead of
// the REST backend.
type WordPressConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	AjaxURL string `mapstructure:"ajax_url"`
	Nonce   string `mapstructure:"nonce"`
}

// CacheConfig holds settings for the data-provider cache.
type CacheConfig struct {
	TTL     int    `mapstructure:"ttl"`     // milliseconds, freshness window
	Backend string `mapstructure:"backend"` // "memory" or "redis"
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DevConfig holds development-mode overrides: a simulated logged-in user
// and pre-assigned wizard labels, so the full pipeline can be exercised
// without a live WordPress session.
type DevConfig struct {
	Debug      bool     `mapstructure:"debug"`
	Username   string   `mapstructure:"username"`
	UserLabels []string `mapstructure:"user_labels"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// BaseURLWithPath returns the backend base URL joined with a path suffix.
func (b BackendConfig) BaseURLWithPath(path string) string {
	return fmt.Sprintf("%s%s", b.BaseURL, path)
}
