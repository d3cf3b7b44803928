package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	Provider        string `json:"provider"`
	MaxUploadBytes  int64  `json:"max_upload_bytes"`
	MaxConcurrentAI int64  `json:"max_concurrent_ai"`
}

const (
	DefaultMaxUploadBytes  = 10 << 20
	DefaultMaxConcurrentAI = 4
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.Provider == "" {
		return nil, fmt.Errorf("provider must be configured")
	}
	prov, ok := cfg.Providers[cfg.BasicConfig.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", cfg.BasicConfig.Provider)
	}
	if prov.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api_key", cfg.BasicConfig.Provider)
	}

	if cfg.BasicConfig.MaxUploadBytes <= 0 {
		cfg.BasicConfig.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.BasicConfig.MaxConcurrentAI <= 0 {
		cfg.BasicConfig.MaxConcurrentAI = DefaultMaxConcurrentAI
	}

	return &cfg, nil
}
