package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/clinscore/internal/model"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverREST     = "rest"
	DriverFixture  = "fixture"
)

// Server transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all runtime configuration for a clinscore process.
type Config struct {
	Driver      string
	DSN         string
	RestURL     string
	RestKey     string
	FixturePath string
	LogFormat   string // "text" or "json"
	LogLevel    string

	// Tables maps kind name to backing table; unset kinds use model defaults.
	Tables         map[string]string
	SubstanceTable string
	PatientColumn  string
	DateColumn     string

	// AnsweredPolicy is "nonzero" (default) or "nonnull".
	AnsweredPolicy string

	Cache  CacheConfig
	Store  StoreConfig
	Server ServerConfig
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	MaxSize    int           `yaml:"max_size"`
	TTL        time.Duration `yaml:"ttl"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

// StoreConfig tunes access to the backing store.
type StoreConfig struct {
	QPS              float64       `yaml:"qps"`
	Burst            int           `yaml:"burst"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	MaxConns         int32         `yaml:"max_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig selects the tool-server transport.
type ServerConfig struct {
	Transport   string   `yaml:"transport"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr is the HTTP listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		Driver:         DriverPostgres,
		LogFormat:      "text",
		LogLevel:       "info",
		Tables:         map[string]string{},
		SubstanceTable: model.SubstanceTable,
		PatientColumn:  model.DefaultPatientColumn,
		DateColumn:     model.DefaultDateColumn,
		AnsweredPolicy: "nonzero",
		Cache: CacheConfig{
			MaxSize:    1000,
			TTL:        5 * time.Minute,
			SummaryTTL: 30 * time.Minute,
		},
		Store: StoreConfig{
			Timeout:          30 * time.Second,
			Retries:          2,
			StatementTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "127.0.0.1",
			Port:      8000,
		},
	}
}

// Table returns the backing table for kind.
func (c *Config) Table(kind model.Kind) string {
	if t, ok := c.Tables[string(kind)]; ok && t != "" {
		return t
	}
	return model.MustKind(kind).Table
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Driver         string            `yaml:"driver"`
	FixturePath    string            `yaml:"fixture_path"`
	LogFormat      string            `yaml:"log_format"`
	LogLevel       string            `yaml:"log_level"`
	Tables         map[string]string `yaml:"tables"`
	SubstanceTable string            `yaml:"substance_table"`
	PatientColumn  string            `yaml:"patient_column"`
	DateColumn     string            `yaml:"date_column"`
	AnsweredPolicy string            `yaml:"answered_policy"`
	Cache          CacheConfig       `yaml:"cache"`
	Store          StoreConfig       `yaml:"store"`
	Server         ServerConfig      `yaml:"server"`
}

// LoadFromFile reads a YAML config file and merges its non-empty values
// into Config. Secrets are never read from the file.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Driver, yc.Driver)
	setString(&c.FixturePath, yc.FixturePath)
	setString(&c.LogFormat, yc.LogFormat)
	setString(&c.LogLevel, yc.LogLevel)
	setString(&c.SubstanceTable, yc.SubstanceTable)
	setString(&c.PatientColumn, yc.PatientColumn)
	setString(&c.DateColumn, yc.DateColumn)
	setString(&c.AnsweredPolicy, yc.AnsweredPolicy)
	if c.Tables == nil {
		c.Tables = map[string]string{}
	}
	for k, v := range yc.Tables {
		c.Tables[strings.ToLower(strings.TrimSpace(k))] = v
	}

	if yc.Cache.MaxSize > 0 {
		c.Cache.MaxSize = yc.Cache.MaxSize
	}
	if yc.Cache.TTL > 0 {
		c.Cache.TTL = yc.Cache.TTL
	}
	if yc.Cache.SummaryTTL > 0 {
		c.Cache.SummaryTTL = yc.Cache.SummaryTTL
	}

	if yc.Store.QPS > 0 {
		c.Store.QPS = yc.Store.QPS
	}
	if yc.Store.Burst > 0 {
		c.Store.Burst = yc.Store.Burst
	}
	if yc.Store.Timeout > 0 {
		c.Store.Timeout = yc.Store.Timeout
	}
	if yc.Store.Retries > 0 {
		c.Store.Retries = yc.Store.Retries
	}
	if yc.Store.MaxConns > 0 {
		c.Store.MaxConns = yc.Store.MaxConns
	}
	if yc.Store.StatementTimeout > 0 {
		c.Store.StatementTimeout = yc.Store.StatementTimeout
	}

	setString(&c.Server.Transport, yc.Server.Transport)
	setString(&c.Server.Host, yc.Server.Host)
	if yc.Server.Port > 0 {
		c.Server.Port = yc.Server.Port
	}
	if len(yc.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = yc.Server.CORSOrigins
	}

	return c.Validate()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyEnv fills connection settings from the environment. Values already
// set by flags win.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v
			}
		}
		return ""
	}
	if c.DSN == "" {
		c.DSN = first("SUPABASE_DB_URL", "DATABASE_URL")
	}
	if c.RestURL == "" {
		c.RestURL = first("SUPABASE_URL")
	}
	if c.RestKey == "" {
		c.RestKey = first("SUPABASE_KEY", "SUPABASE_ANON_KEY")
	}
	if v := first("MCP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := first("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks enumerated fields and table overrides.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverREST, DriverFixture:
	default:
		return fmt.Errorf("unknown driver %q (want postgres, rest or fixture)", c.Driver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.AnsweredPolicy {
	case "", "nonzero", "nonnull":
	default:
		return fmt.Errorf("unknown answered_policy %q", c.AnsweredPolicy)
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q", c.Server.Transport)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	for name := range c.Tables {
		if _, ok := model.KindByName(name); !ok {
			return fmt.Errorf("unknown assessment kind %q in tables", name)
		}
	}
	if c.PatientColumn == "" || c.DateColumn == "" {
		return fmt.Errorf("patient_column and date_column must be set")
	}
	return nil
}

// ValidateStore checks the connection settings the chosen driver needs.
func (c *Config) ValidateStore() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Driver {
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("--dsn or SUPABASE_DB_URL is required for the postgres driver")
		}
	case DriverREST:
		if c.RestURL == "" || c.RestKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the rest driver")
		}
	case DriverFixture:
		if c.FixturePath == "" {
			return fmt.Errorf("--fixtures is required for the fixture driver")
		}
		if _, err := os.Stat(c.FixturePath); err != nil {
			return fmt.Errorf("fixture file not accessible: %w", err)
		}
	}
	return nil
}
