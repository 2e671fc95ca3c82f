package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. APICHECK_BASEURL.
const EnvPrefix = "APICHECK"

// ErrConfigNotFound is returned when no configuration file exists.
var ErrConfigNotFound = errors.New("configuration file not found")

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"config.properties",
	"apicheck.yaml",
	"apicheck.yml",
	"apicheck.json",
}

// Config represents the apicheck configuration
type Config struct {
	BaseURL         string            `mapstructure:"baseurl"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	RateLimit       float64           `mapstructure:"ratelimit"`
	Headers         map[string]string `mapstructure:"headers"`
	ReportFile      string            `mapstructure:"reportfile"`
	HistoryFile     string            `mapstructure:"historyfile"`
	LogLevel        string            `mapstructure:"loglevel"`
	Parallel        bool              `mapstructure:"parallel"`
	Concurrency     int               `mapstructure:"concurrency"`
	Bail            bool              `mapstructure:"bail"`
	FollowRedirects bool              `mapstructure:"followredirects"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`

	v *viper.Viper
}

// Property returns a raw configuration value by key, case-insensitively.
func (c *Config) Property(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// Load reads configuration from the given file, or from the first of
// ConfigFilenames found in the working directory when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	// .env values never override variables already set in the environment
	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Path = path
	cfg.v = v

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find returns the first of ConfigFilenames present in dir.
func Find(dir string) (string, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s in %s", ErrConfigNotFound, strings.Join(ConfigFilenames, ", "), dir)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "properties"
	}
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if err := http.ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("invalid BaseURL: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid Timeout %s (must be positive)", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid RateLimit %v (must not be negative)", c.RateLimit)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid Concurrency %d (must be positive)", c.Concurrency)
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultCfg  *Config
	defaultErr  error
)

// GetProperty looks up key in the default configuration file. The file is
// loaded once per process; a load failure is reported by Err and every
// lookup then returns an empty string.
func GetProperty(key string) string {
	defaultOnce.Do(func() {
		defaultCfg, defaultErr = Load("")
	})
	if defaultErr != nil {
		return ""
	}
	return defaultCfg.Property(key)
}

// Err returns the error from loading the default configuration, if any.
func Err() error {
	GetProperty("")
	return defaultErr
}
