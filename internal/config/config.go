// Package config loads the covidash configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/covidash/pkg/adapters/csv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a configuration file.
const DefaultPath = "covidash.yaml"

// Config is the whole configuration file.
type Config struct {
	Data     DataConfig     `yaml:"data" json:"data"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// DataConfig locates the two input tables. Each one is a path or an
// http(s) URL.
type DataConfig struct {
	Series     string        `yaml:"series" json:"series"`
	Population string        `yaml:"population" json:"population"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures `covidash serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	CORS bool   `yaml:"cors" json:"cors"`
}

// RedisConfig enables the redis selection store and locker when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// SessionsConfig configures the file selection store used without redis.
type SessionsConfig struct {
	Dir     string        `yaml:"dir" json:"dir"`
	LockTTL time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// LogConfig selects the log level and format (text or json).
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Data: DataConfig{
			Series:     csv.DefaultSeriesURL,
			Population: filepath.Join("data", "population.csv"),
			Timeout:    30 * time.Second,
		},
		Server:   ServerConfig{Addr: ":8080"},
		Sessions: SessionsConfig{Dir: filepath.Join(".covidash", "sessions"), LockTTL: 30 * time.Second},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file (YAML or JSON) on top of Default. A
// missing file is not an error: it means defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	if c.Data.Series == "" {
		return fmt.Errorf("config: data.series is required")
	}
	if c.Data.Population == "" {
		return fmt.Errorf("config: data.population is required")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
