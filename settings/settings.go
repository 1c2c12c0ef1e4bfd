package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"comfynodes/logger"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultMaxFetchSize = 20 * 1024 * 1024
)

// Default returns a configuration that works without any config file.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory:     "output",
			CompressLevel: 4,
		},
		Fetch: FetchConfig{
			MaxBytes:       DefaultMaxFetchSize,
			TimeoutSeconds: 10,
			UserAgent:      "comfynodes/1.0",
		},
		WebUI: WebUIConfig{
			TimeoutSeconds: 120,
		},
		Store: StoreConfig{
			ArchivePath:  "nodes.db",
			MaxValueSize: 10 * 1024 * 1024,
		},
		Logging: logger.Config{
			Level:  logger.LevelInfo,
			Format: "text",
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}

func (c *FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *WebUIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration from configPath on top of Default() and
// then applies any service config files found next to it.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	// Get absolute path for better error messages
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		absPath = configPath // fallback to relative path
	}

	_, err = toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", absPath, err)
	}

	if err := loadServiceConfigs(filepath.Dir(configPath), config); err != nil {
		return nil, fmt.Errorf("error loading service configs: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadServiceConfigs loads the optional per-service configuration files
func loadServiceConfigs(baseDir string, config *Config) error {
	serviceConfigs := map[string]interface{}{
		"settings/fetch.toml":   &config.Fetch,
		"settings/webui.toml":   &config.WebUI,
		"settings/store.toml":   &config.Store,
		"settings/logging.toml": &config.Logging,
	}

	for name, configStruct := range serviceConfigs {
		configPath := filepath.Join(baseDir, name)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// This is not a fatal error
			continue
		}

		_, err := toml.DecodeFile(configPath, configStruct)
		if err != nil {
			return fmt.Errorf("error parsing service config file %s: %w", configPath, err)
		}
	}

	return nil
}
