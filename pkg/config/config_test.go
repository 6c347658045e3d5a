package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eav.yaml")

	sample := Sample("postgres")
	sample.Collection = "people"
	sample.Cache.Enabled = true
	require.NoError(t, Save(path, sample))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", loaded.Database.Type)
	assert.Equal(t, 5432, loaded.Database.Port)
	assert.Equal(t, "people", loaded.Collection)
	assert.Equal(t, 10*time.Minute, loaded.Cache.TTL)
	assert.Equal(t, uint32(5), loaded.Cache.Breaker.MaxFailures)
	assert.True(t, loaded.Retry.Enabled)
	assert.Equal(t, time.Second, loaded.Retry.InitialDelay)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eav.yaml")
	data := `
database:
  type: sqlite
  database: /tmp/test.db
collection: people
cache:
  ttl: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Retry.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [1, 2"), 0600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown type", func(c *Config) { c.Database.Type = "db2" }, "unsupported database type"},
		{"no target", func(c *Config) { c.Database = DatabaseConfig{Type: "mysql"} }, "url, host or database"},
		{"no collection", func(c *Config) { c.Collection = "" }, "collection is required"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"cache without addr", func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }, "cache addr"},
		{"compress level", func(c *Config) { c.Export.CompressLevel = 30 }, "compress_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestAdapterConfig(t *testing.T) {
	tests := []struct {
		name string
		db   DatabaseConfig
		url  string
	}{
		{"host and port", DatabaseConfig{Type: "mysql", Host: "db", Port: 3306}, "db:3306"},
		{"host only", DatabaseConfig{Type: "mssql", Host: "db"}, "db"},
		{"explicit url", DatabaseConfig{Type: "oracle", URL: "DSN=ORCL", Host: "ignored"}, "DSN=ORCL"},
		{"sqlite file", DatabaseConfig{Type: "sqlite", Database: "eav.db"}, "eav.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.db.AdapterConfig()
			assert.Equal(t, tt.url, cfg.URL)
			assert.Equal(t, tt.db.Type, cfg.Type)
		})
	}
}

func TestSample_AllTypesValid(t *testing.T) {
	for _, typ := range []string{"sqlite", "mysql", "mssql", "oracle", "postgres"} {
		t.Run(typ, func(t *testing.T) {
			assert.NoError(t, Sample(typ).Validate())
		})
	}
}
