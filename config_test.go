package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memcrud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3000", cfg.Addr)

	require.Len(t, cfg.Endpoints, 3)
	quotes := cfg.Endpoints[0]
	assert.Equal(t, "/quotes", quotes.Prefix)
	assert.True(t, quotes.Auth)
	assert.Equal(t, "date", quotes.Policy().CreatedField)
	require.Len(t, quotes.Seed, 1)
	assert.Equal(t, int64(0), quotes.Seed[0].ID())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
addr: ":8080"
realm: "Quotes"
read_timeout: 2s
endpoints:
  - prefix: /books
    required: [title]
    defaults:
      genre: unknown
    created_field: added
    auth: true
    seed:
      - id: 4
        title: Dune
        meta:
          pages: 412
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "Quotes", cfg.Realm)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout, "unset keys keep built-in values")
	assert.Equal(t, "user", cfg.Username)

	require.Len(t, cfg.Endpoints, 1)
	books := cfg.Endpoints[0]
	assert.Equal(t, Policy{Required: []string{"title"}, Defaults: map[string]any{"genre": "unknown"}, CreatedField: "added"}, books.Policy())
	require.Len(t, books.Seed, 1)
	assert.Equal(t, int64(4), books.Seed[0].ID())

	c := NewCollection(books.Seed...)
	assert.Equal(t, int64(5), c.NextID())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "adress: typo\n"))
	assert.Error(t, err, "unknown keys are rejected")

	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err, "empty file keeps defaults")
	assert.Len(t, cfg.Endpoints, 3)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{"PORT": "8080", "MEMCRUD_USERNAME": "admin"}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "pass", cfg.Password)

	env["HTTP_ADDR"] = "127.0.0.1:9000"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"no endpoints", func(c *Config) { c.Endpoints = nil }},
		{"root prefix", func(c *Config) { c.Endpoints[1].Prefix = "/" }},
		{"missing slash", func(c *Config) { c.Endpoints[1].Prefix = "resources" }},
		{"nested prefix", func(c *Config) { c.Endpoints[1].Prefix = "/api/resources" }},
		{"static collision", func(c *Config) { c.Endpoints[1].Prefix = "/about" }},
		{"duplicate prefix", func(c *Config) { c.Endpoints[1].Prefix = "/quotes" }},
		{"auth without password", func(c *Config) { c.Password = "" }},
		{"negative seed id", func(c *Config) { c.Endpoints[1].Seed = []Record{{"id": -1}} }},
		{"string seed id", func(c *Config) { c.Endpoints[1].Seed = []Record{{"id": "one"}} }},
		{"duplicate seed id", func(c *Config) { c.Endpoints[1].Seed = []Record{{"id": 1}, {"id": 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
