// Package config provides YAML-based configuration for the data-port service.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Import  ImportConfig  `yaml:"import"`
	Auth    AuthConfig    `yaml:"auth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	BindAddress  string   `yaml:"bind_address"`
	ReadTimeout  int      `yaml:"read_timeout_seconds"`
	WriteTimeout int      `yaml:"write_timeout_seconds"`
	IdleTimeout  int      `yaml:"idle_timeout_seconds"`
	BodyLimit    string   `yaml:"body_limit"`
	EnableCORS   bool     `yaml:"enable_cors"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// StorageConfig contains file and database storage settings.
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	UploadsDirectory string `yaml:"uploads_directory"`
	DatabasePath     string `yaml:"database_path"`
}

// ImportConfig describes the file keys a job accepts and their allow-lists.
type ImportConfig struct {
	FileKeys map[string]FileKeyConfig `yaml:"file_keys"`
}

// FileKeyConfig is the upload allow-list for one file key.
type FileKeyConfig struct {
	Extensions   []string `yaml:"extensions"`
	ContentTypes []string `yaml:"content_types"`
}

// AuthConfig maps bearer tokens to users. Intended for the internal
// deployments this service targets; a real identity system can be wired
// in through the auth.Provider interface instead.
type AuthConfig struct {
	Tokens map[string]TokenUser `yaml:"tokens"`
}

// TokenUser is the identity a token resolves to.
type TokenUser struct {
	UserID string `yaml:"user_id"`
	Admin  bool   `yaml:"admin"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
			EnableCORS:   false,
			AllowOrigins: nil,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			DatabasePath:     "./data/dataport.db",
		},
		Import: ImportConfig{
			FileKeys: map[string]FileKeyConfig{
				"questions": DefaultCSVRule(),
				"courses":   DefaultCSVRule(),
				"lessons":   DefaultCSVRule(),
			},
		},
		Auth: AuthConfig{
			Tokens: map[string]TokenUser{},
		},
	}
}

// DefaultCSVRule is the allow-list applied to CSV upload slots.
// text/plain is included because content sniffing cannot distinguish CSV
// from any other plain text.
func DefaultCSVRule() FileKeyConfig {
	return FileKeyConfig{
		Extensions:   []string{".csv"},
		ContentTypes: []string{"text/csv", "text/plain", "application/csv", "application/vnd.ms-excel"},
	}
}

// LoadConfig reads configuration from a YAML file, filling unset sections
// with defaults. A missing file is an error; callers that want pure
// defaults should use DefaultConfig directly.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Import.FileKeys) == 0 {
		cfg.Import.FileKeys = DefaultConfig().Import.FileKeys
	}
	if cfg.Storage.UploadsDirectory == "" {
		cfg.Storage.UploadsDirectory = filepath.Join(cfg.Storage.DataDirectory, "uploads")
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.DataDirectory, "dataport.db")
	}

	return cfg, nil
}

// EnsureDirectories creates all configured data directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		filepath.Dir(c.Storage.DatabasePath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetServerAddr returns the host:port the server binds to.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
