// Package config loads the eavctl YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/all"
	"github.com/ruslano69/eavsql/pkg/events"
	"github.com/ruslano69/eavsql/pkg/export"
	"github.com/ruslano69/eavsql/pkg/resilience"
	"github.com/ruslano69/eavsql/pkg/retry"
)

// Config - конфигурация eavctl
type Config struct {
	Database   DatabaseConfig `yaml:"database"`
	Collection string         `yaml:"collection"`
	Log        LogConfig      `yaml:"log,omitempty"`
	Retry      retry.Config   `yaml:"retry,omitempty"`
	Cache      CacheConfig    `yaml:"cache,omitempty"`
	Events     events.Config  `yaml:"events,omitempty"`
	Export     ExportConfig   `yaml:"export,omitempty"`
	Server     ServerConfig   `yaml:"server,omitempty"`
}

// DatabaseConfig - подключение к БД
// URL имеет приоритет; без него адрес собирается из Host и Port
type DatabaseConfig struct {
	Type     string            `yaml:"type"`               // sqlite, mysql, mssql, oracle, postgres
	URL      string            `yaml:"url,omitempty"`      // адрес, файл SQLite или ODBC строка
	Host     string            `yaml:"host,omitempty"`     // для сетевых СУБД
	Port     int               `yaml:"port,omitempty"`     // порт СУБД
	Database string            `yaml:"database,omitempty"` // имя базы; для SQLite - путь к файлу
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Extra    map[string]string `yaml:"extra,omitempty"` // параметры драйвера
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"`            // trace, debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console (по умолчанию) или json
}

// CacheConfig - кэш объектов в Redis
type CacheConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Addr     string            `yaml:"addr,omitempty"`
	Password string            `yaml:"password,omitempty"`
	DB       int               `yaml:"db,omitempty"`
	Prefix   string            `yaml:"prefix,omitempty"`
	TTL      time.Duration     `yaml:"ttl,omitempty"`
	Breaker  resilience.Config `yaml:"circuit_breaker,omitempty"`
}

// ExportConfig - снимки коллекции
type ExportConfig struct {
	Compress      bool            `yaml:"compress"`       // zstd по умолчанию
	CompressLevel int             `yaml:"compress_level"` // 1-22 (по умолчанию 3)
	S3            export.S3Config `yaml:"s3,omitempty"`
}

// ServerConfig - HTTP API и метрики
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty"`
	MetricsAddr    string        `yaml:"metrics_addr,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

// Load читает конфигурацию из YAML файла
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return config, nil
}

// Save записывает конфигурацию в YAML файл
func Save(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Default возвращает конфигурацию по умолчанию: SQLite файл, без кэша и событий
func Default() *Config {
	return &Config{
		Database:   DatabaseConfig{Type: "sqlite", Database: "eav.db"},
		Collection: "objects",
		Log:        LogConfig{Level: "info", Format: "console"},
		Retry:      retry.DefaultConfig(),
		Cache: CacheConfig{
			Addr:    "localhost:6379",
			TTL:     10 * time.Minute,
			Breaker: resilience.DefaultConfig("redis-cache"),
		},
		Events: events.Config{Type: events.TypeNone},
		Export: ExportConfig{Compress: true, CompressLevel: export.DefaultCompressLevel},
		Server: ServerConfig{Addr: ":8080", RequestTimeout: 30 * time.Second},
	}
}

// Sample создает пример конфигурации для типа СУБД
func Sample(dbType string) *Config {
	config := Default()
	config.Database = DatabaseConfig{Type: dbType}
	config.Retry = retry.EnableRetry(5, time.Second)

	switch dbType {
	case "postgres", "postgresql":
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "eav"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Extra = map[string]string{"sslmode": "disable"}

	case "mssql", "sqlserver":
		config.Database.Host = "localhost"
		config.Database.Port = 1433
		config.Database.Database = "eav"
		config.Database.User = "sa"
		config.Database.Password = "YourPassword123"

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "eav"
		config.Database.User = "root"
		config.Database.Password = "password"

	case "oracle":
		config.Database.URL = "DSN=ORCL"
		config.Database.User = "eav"
		config.Database.Password = "password"

	default:
		config.Database.Type = "sqlite"
		config.Database.Database = "eav.db"
		config.Retry = retry.DefaultConfig()
	}
	return config
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if !all.Factory().IsRegistered(c.Database.Type) {
		return fmt.Errorf("unsupported database type %q (available types: %v)",
			c.Database.Type, all.Factory().GetRegisteredTypes())
	}
	if c.Database.URL == "" && c.Database.Host == "" && c.Database.Database == "" {
		return fmt.Errorf("database url, host or database is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}
	if c.Retry.Enabled {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache addr is required when cache is enabled")
		}
		if err := c.Cache.Breaker.Validate(); err != nil {
			return fmt.Errorf("cache circuit_breaker: %w", err)
		}
	}
	if c.Export.CompressLevel < 0 || c.Export.CompressLevel > 22 {
		return fmt.Errorf("export compress_level must be 1-22, got %d", c.Export.CompressLevel)
	}
	return nil
}

// AdapterConfig переводит настройки в adapters.Config
func (d DatabaseConfig) AdapterConfig() adapters.Config {
	cfg := adapters.Config{
		Type:     d.Type,
		URL:      d.URL,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
		Extra:    d.Extra,
	}
	if cfg.URL == "" {
		switch {
		case d.Host != "" && d.Port != 0:
			cfg.URL = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		case d.Host != "":
			cfg.URL = d.Host
		case d.Type == "sqlite":
			cfg.URL = d.Database
		}
	}
	return cfg
}
