package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like FESTIVAL_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so the gateway
// behaves the same when started from the repo root or a subdirectory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies direct environment overrides when values are
// still empty after expansion. These mirror the dev-mode variables the
// embedded page historically recognized.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Backend.APIKey == "" {
		if val := os.Getenv("FESTIVAL_API_KEY"); val != "" {
			cfg.Backend.APIKey = val
		}
	}
	if cfg.Backend.BaseURL == "" {
		if val := os.Getenv("FESTIVAL_API_BASE_URL"); val != "" {
			cfg.Backend.BaseURL = val
		}
	}
	if val := os.Getenv("FESTIVAL_DEBUG"); val == "true" || val == "1" {
		cfg.Dev.Debug = true
	}
	if cfg.Dev.Username == "" {
		if val := os.Getenv("FESTIVAL_DEV_USERNAME"); val != "" {
			cfg.Dev.Username = val
		}
	}
	if len(cfg.Dev.UserLabels) == 0 {
		if val := os.Getenv("FESTIVAL_DEV_USER_LABELS"); val != "" {
			cfg.Dev.UserLabels = strings.Split(val, ",")
		}
	}
	if cfg.WordPress.Nonce == "" {
		if val := os.Getenv("FESTIVAL_WP_NONCE"); val != "" {
			cfg.WordPress.Nonce = val
		}
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "signup-gateway"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8085"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	// The page is served from WordPress; local dev origin as a fallback.
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30000
	}

	// Freshness window for the data-provider cache, 5 minutes.
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 300000
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key is required")
	}

	if cfg.WordPress.Enabled && cfg.WordPress.AjaxURL == "" {
		return fmt.Errorf("wordpress.ajax_url is required when wordpress.enabled is true")
	}

	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be %q or %q", "memory", "redis")
	}
	if cfg.Cache.Backend == "redis" && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when cache.backend is redis")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
