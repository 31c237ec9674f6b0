package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the llvm-flow configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig selects the backend the migrations run against.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite database file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns a Config with sensible defaults: a project-local SQLite
// database under .llvmflow/.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(".llvmflow", "flow.db"),
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for llvmflow.yaml in the current
// directory. A .env file is loaded if present, and LLVMFLOW_DB_DRIVER,
// LLVMFLOW_DB_PATH and LLVMFLOW_DB_DSN override the file values.
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = "llvmflow.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file, use defaults
			defaults.applyEnv()
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	defaults.Merge(&fileCfg)
	defaults.applyEnv()
	return defaults, nil
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
}

// applyEnv overlays environment variables on top of the loaded values.
func (c *Config) applyEnv() {
	// A missing .env is fine; only explicit variables matter.
	_ = godotenv.Load()

	if v := os.Getenv("LLVMFLOW_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("LLVMFLOW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LLVMFLOW_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
}
