package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds server settings and the endpoints to expose.
type Config struct {
	Addr         string           `yaml:"addr"`
	StaticDir    string           `yaml:"static_dir"`
	Username     string           `yaml:"username"`
	Password     string           `yaml:"password"`
	Realm        string           `yaml:"realm"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration    `yaml:"read_timeout"`
	WriteTimeout time.Duration    `yaml:"write_timeout"`
	IdleTimeout  time.Duration    `yaml:"idle_timeout"`
	Endpoints    []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig describes one resource prefix and its field policy.
type EndpointConfig struct {
	Prefix       string         `yaml:"prefix"`
	Required     []string       `yaml:"required"`
	Defaults     map[string]any `yaml:"defaults"`
	CreatedField string         `yaml:"created_field"`
	Auth         bool           `yaml:"auth"`
	Seed         []Record       `yaml:"seed"`
}

// Policy returns the field rules for the endpoint.
func (ec EndpointConfig) Policy() Policy {
	return Policy{
		Required:     ec.Required,
		Defaults:     ec.Defaults,
		CreatedField: ec.CreatedField,
	}
}

// DefaultConfig returns the built-in quotes, resources and todos endpoints.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":3000",
		StaticDir:    "./public",
		Username:     "user",
		Password:     "pass",
		Realm:        "Access to the API",
		MaxBodyBytes: defaultMaxBodyBytes,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		Endpoints: []EndpointConfig{
			{
				Prefix:       "/quotes",
				Required:     []string{"quote", "author"},
				Defaults:     map[string]any{"category": "general"},
				CreatedField: "date",
				Auth:         true,
				Seed: []Record{{
					"id":       0,
					"quote":    "El éxito es la suma de pequeños esfuerzos repetidos día tras día.",
					"author":   "Desconocido",
					"date":     time.Now().UTC().Format(timestampLayout),
					"category": "éxito",
				}},
			},
			{Prefix: "/resources"},
			{
				Prefix:   "/todos",
				Required: []string{"title"},
				Defaults: map[string]any{"completed": false},
			},
		},
	}
}

// LoadConfig returns the built-in config overlaid with the YAML file at path.
// An empty path skips the file. Endpoints listed in the file replace the built-ins.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. HTTP_ADDR wins over PORT.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	if addr := getenv("HTTP_ADDR"); addr != "" {
		c.Addr = addr
	}
	if user := getenv("MEMCRUD_USERNAME"); user != "" {
		c.Username = user
	}
	if pass := getenv("MEMCRUD_PASSWORD"); pass != "" {
		c.Password = pass
	}
}

// Validate checks the endpoint table for prefixes that would clash at routing time.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	if len(c.Endpoints) == 0 {
		return errors.New("no endpoints configured")
	}
	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ec := range c.Endpoints {
		p := ec.Prefix
		if !strings.HasPrefix(p, "/") || len(p) < 2 || strings.Contains(p[1:], "/") {
			return errors.Errorf("endpoint %d: prefix %q must be a single path segment like /quotes", i, p)
		}
		if _, ok := defaultPages[p]; ok {
			return errors.Errorf("endpoint %d: prefix %q collides with a static page", i, p)
		}
		if _, ok := seen[p]; ok {
			return errors.Errorf("endpoint %d: duplicate prefix %q", i, p)
		}
		seen[p] = struct{}{}
		if ec.Auth && (c.Username == "" || c.Password == "") {
			return errors.Errorf("endpoint %s: auth enabled without credentials", p)
		}
		if err := validateSeed(ec.Seed); err != nil {
			return errors.Wrapf(err, "endpoint %s", p)
		}
	}
	return nil
}

func validateSeed(seed []Record) error {
	ids := make(map[int64]struct{}, len(seed))
	for i, rec := range seed {
		v, ok := rec[idField]
		if !ok {
			continue
		}
		id, ok := recordID(v)
		if !ok || id < 0 {
			return errors.Errorf("seed %d: id %v is not a non-negative integer", i, v)
		}
		if _, dup := ids[id]; dup {
			return errors.Errorf("seed %d: duplicate id %d", i, id)
		}
		ids[id] = struct{}{}
	}
	return nil
}
