// Package config loads and validates configuration from YAML files with
// environment-variable overrides. It provides typed structs for the index,
// query execution, the HTTP server and the external services (Postgres,
// Kafka, Redis) the commands talk to.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexConfig controls where segments live and how they are built.
// An empty DataDir keeps every segment in memory.
type IndexConfig struct {
	Name            string        `yaml:"name"`
	DataDir         string        `yaml:"dataDir"`
	MemoryBudget    int64         `yaml:"memoryBudget"`
	CommitInterval  time.Duration `yaml:"commitInterval"`
	Compression     string        `yaml:"compression"`
	ColumnBlockSize int           `yaml:"columnBlockSize"`
	MetaBackend     string        `yaml:"metaBackend"`
	ReadOnly        bool          `yaml:"readOnly"`
	// SchemaFile is a JSON field list. Empty selects the built-in events
	// schema.
	SchemaFile string `yaml:"schemaFile"`
}

// SearchConfig controls query planning and result limits.
type SearchConfig struct {
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	Strategy       string        `yaml:"strategy"`
	SkipIndex      bool          `yaml:"skipIndex"`
	ReloadInterval time.Duration `yaml:"reloadInterval"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rateLimit"`
	RateBurst      int           `yaml:"rateBurst"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	DocumentTopic string   `yaml:"documentTopic"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for local development.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Name:            "default",
			DataDir:         "data/index",
			MemoryBudget:    64 * 1024 * 1024,
			CommitInterval:  5 * time.Second,
			Compression:     "lz4",
			ColumnBlockSize: 1024,
			MetaBackend:     "file",
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			MaxResults:     100,
			Strategy:       "auto",
			SkipIndex:      true,
			ReloadInterval: 2 * time.Second,
			Timeout:        10 * time.Second,
			RateLimit:      200,
			RateBurst:      50,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "rangesearch",
			User:            "rangesearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "rangesearch-indexer",
			DocumentTopic: "documents",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects values the index cannot act on.
func (c *Config) Validate() error {
	switch c.Index.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("index.compression: unknown codec %q", c.Index.Compression)
	}
	switch c.Index.MetaBackend {
	case "file", "postgres":
	default:
		return fmt.Errorf("index.metaBackend: unknown backend %q", c.Index.MetaBackend)
	}
	switch c.Search.Strategy {
	case "auto", "inverted", "columnar":
	default:
		return fmt.Errorf("search.strategy: unknown strategy %q", c.Search.Strategy)
	}
	if c.Index.ColumnBlockSize <= 0 {
		return fmt.Errorf("index.columnBlockSize must be positive, got %d", c.Index.ColumnBlockSize)
	}
	if c.Index.MetaBackend == "postgres" && c.Index.DataDir == "" {
		return fmt.Errorf("index.metaBackend postgres requires index.dataDir")
	}
	return nil
}

// applyEnvOverrides reads RS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS_INDEX_NAME"); v != "" {
		cfg.Index.Name = v
	}
	if v, ok := os.LookupEnv("RS_INDEX_DATA_DIR"); ok {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("RS_INDEX_SCHEMA_FILE"); v != "" {
		cfg.Index.SchemaFile = v
	}
	if v := os.Getenv("RS_INDEX_COMPRESSION"); v != "" {
		cfg.Index.Compression = v
	}
	if v := os.Getenv("RS_INDEX_META_BACKEND"); v != "" {
		cfg.Index.MetaBackend = v
	}
	if v := os.Getenv("RS_INDEX_COMMIT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Index.CommitInterval = d
		}
	}
	if v := os.Getenv("RS_SEARCH_STRATEGY"); v != "" {
		cfg.Search.Strategy = v
	}
	if v := os.Getenv("RS_SEARCH_SKIP_INDEX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.SkipIndex = b
		}
	}
	if v := os.Getenv("RS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RS_KAFKA_DOCUMENT_TOPIC"); v != "" {
		cfg.Kafka.DocumentTopic = v
	}
	if v := os.Getenv("RS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
