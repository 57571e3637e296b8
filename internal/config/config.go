package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Write modes for the read-modify-write of shared index and summary keys.
const (
	// WriteModeLockFree lets concurrent ingestions race; the last store write wins.
	WriteModeLockFree = "lockfree"
	// WriteModeSerialized guards each shared key with an in-process mutex.
	WriteModeSerialized = "serialized"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config contains runtime configuration required by the service.
// It is built once at startup and passed explicitly to every component.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	StoreBackend string        `yaml:"store_backend"`
	DBURL        string        `yaml:"db_url"`
	SQLitePath   string        `yaml:"sqlite_path"`
	StoreName    string        `yaml:"store_name"`
	StoreTimeout time.Duration `yaml:"store_timeout"`

	IngestSecrets []string `yaml:"ingest_secrets"`
	SessionSecret string   `yaml:"session_secret"`

	DefaultAccount   string `yaml:"default_account"`
	IndexMaxLen      int    `yaml:"index_max_len"`
	SeriesCap        int    `yaml:"series_cap"`
	RecentDefault    int    `yaml:"recent_default"`
	RecentMax        int    `yaml:"recent_max"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
	WriteMode        string `yaml:"write_mode"`

	CRMBaseURL    string        `yaml:"crm_base_url"`
	CRMToken      string        `yaml:"crm_token"`
	CRMTimeout    time.Duration `yaml:"crm_timeout"`
	FieldCacheTTL time.Duration `yaml:"field_cache_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		StoreName:        "telemetry",
		StoreTimeout:     3 * time.Second,
		DefaultAccount:   "ACX",
		IndexMaxLen:      1000,
		SeriesCap:        120,
		RecentDefault:    20,
		RecentMax:        200,
		FetchConcurrency: 16,
		WriteMode:        WriteModeLockFree,
		CRMTimeout:       10 * time.Second,
		FieldCacheTTL:    10 * time.Minute,
		KafkaTopic:       "telemetry-events",
		LogLevel:         "info",
		LogFormat:        "text",
		SQLitePath:       "telemetry.db",
	}
}

// Load reads CONFIG_FILE (optional YAML) and then environment variables, env winning.
// INGEST_SECRETS and KAFKA_BROKERS are comma separated.
func Load() (Config, error) {
	cfg, err := load(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadStore reads the same sources as Load but only validates the store settings.
// Offline tools use it; they never serve ingestion.
func LoadStore() (Config, error) {
	cfg, err := load(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateStore(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func load(getenv func(string) string) (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("CONFIG_FILE %s: %w", path, err)
		}
	}

	env := envReader{getenv: getenv}
	env.str("HTTP_ADDR", &cfg.HTTPAddr)
	env.str("STORE_BACKEND", &cfg.StoreBackend)
	env.str("DB_URL", &cfg.DBURL)
	env.str("SQLITE_PATH", &cfg.SQLitePath)
	env.str("STORE_NAME", &cfg.StoreName)
	env.duration("STORE_TIMEOUT", &cfg.StoreTimeout)
	env.list("INGEST_SECRETS", &cfg.IngestSecrets)
	env.str("SESSION_SECRET", &cfg.SessionSecret)
	env.str("DEFAULT_ACCOUNT", &cfg.DefaultAccount)
	env.integer("INDEX_MAX_LEN", &cfg.IndexMaxLen)
	env.integer("SERIES_CAP", &cfg.SeriesCap)
	env.integer("RECENT_DEFAULT", &cfg.RecentDefault)
	env.integer("RECENT_MAX", &cfg.RecentMax)
	env.integer("FETCH_CONCURRENCY", &cfg.FetchConcurrency)
	env.str("WRITE_MODE", &cfg.WriteMode)
	env.str("CRM_BASE_URL", &cfg.CRMBaseURL)
	env.str("CRM_TOKEN", &cfg.CRMToken)
	env.duration("CRM_TIMEOUT", &cfg.CRMTimeout)
	env.duration("FIELD_CACHE_TTL", &cfg.FieldCacheTTL)
	env.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("KAFKA_TOPIC", &cfg.KafkaTopic)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("LOG_FORMAT", &cfg.LogFormat)
	if env.err != nil {
		return Config{}, env.err
	}

	if cfg.StoreBackend == "" {
		// Local dev fallback so the service runs out-of-the-box.
		cfg.StoreBackend = BackendMemory
		if cfg.DBURL != "" {
			cfg.StoreBackend = BackendPostgres
		}
	}

	return cfg, nil
}

// Validate checks bounds and enumerations.
func (c Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}

	switch c.WriteMode {
	case WriteModeLockFree, WriteModeSerialized:
	default:
		return fmt.Errorf("WRITE_MODE must be %q or %q (got %q)", WriteModeLockFree, WriteModeSerialized, c.WriteMode)
	}

	if len(c.IngestSecrets) == 0 {
		return errors.New("INGEST_SECRETS required")
	}
	if c.IndexMaxLen < 1 {
		return errors.New("INDEX_MAX_LEN must be >= 1")
	}
	if c.SeriesCap < 1 {
		return errors.New("SERIES_CAP must be >= 1")
	}
	if c.RecentMax < 1 || c.RecentDefault < 1 || c.RecentDefault > c.RecentMax {
		return errors.New("RECENT_DEFAULT must be within [1, RECENT_MAX]")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be >= 1")
	}
	return nil
}

func (c Config) validateStore() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL required for postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH required for sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, sqlite, memory (got %q)", c.StoreBackend)
	}
	if c.StoreName == "" {
		return errors.New("STORE_NAME must not be empty")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	return nil
}

// ClampLimit bounds a caller-supplied recent limit; zero or negative means default.
func (c Config) ClampLimit(n int) int {
	if n <= 0 {
		return c.RecentDefault
	}
	if n > c.RecentMax {
		return c.RecentMax
	}
	return n
}

// envReader applies non-empty env values and remembers the first parse error.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) raw(name string) (string, bool) {
	v := strings.TrimSpace(e.getenv(name))
	return v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.raw(name); ok {
		*dst = v
	}
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.raw(name)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.raw(name)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s must be an integer (got %q)", name, v)
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.raw(name)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s must be a duration (got %q)", name, v)
		return
	}
	*dst = d
}
