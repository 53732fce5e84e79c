// Package config loads and validates service configuration. Two file
// formats are accepted: the flat "key=value" format used by the build and
// serving tools (one key per line, '#' comments), and YAML. Values can be
// overridden with GOSO_* environment variables, and every key has a
// built-in default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Recommend RecommendConfig `yaml:"recommend"`
	Search    SearchConfig    `yaml:"search"`
	Simhash   SimhashConfig   `yaml:"simhash"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
}

// ServerConfig holds the TCP listener and worker-pool settings.
type ServerConfig struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	ThreadNum int    `yaml:"threadNum"`
	QueueSize int    `yaml:"queueSize"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// DataConfig locates the on-disk artifacts and stop-word files.
type DataConfig struct {
	DataDir         string `yaml:"dataDir"`
	EnStopwordsFile string `yaml:"enStopwordsFile"`
	CnStopwordsFile string `yaml:"cnStopwordsFile"`
	SegmenterDict   string `yaml:"segmenterDict"`
}

// ArtifactPath returns the path of a named artifact under DataDir.
func (d DataConfig) ArtifactPath(name string) string {
	return filepath.Join(d.DataDir, name)
}

// RecommendConfig controls the keyword recommendation engine.
type RecommendConfig struct {
	MaxEditDistance       int `yaml:"maxEditDistance"`
	DefaultK              int `yaml:"defaultK"`
	CacheSize             int `yaml:"cacheSize"`
	EditDistanceCacheSize int `yaml:"editDistanceCacheSize"`
}

// SearchConfig controls the web-page search engine.
type SearchConfig struct {
	DefaultTopN      int `yaml:"defaultTopN"`
	MaxSummaryLength int `yaml:"maxSummaryLength"`
	CacheSize        int `yaml:"cacheSize"`
}

// SimhashConfig controls near-duplicate detection during page ingest.
type SimhashConfig struct {
	TopK      int `yaml:"topK"`
	Threshold int `yaml:"threshold"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RedisConfig holds the optional second-level result cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the optional query-analytics event stream settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PostgresConfig holds the optional analytics aggregate store settings.
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslMode"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Load reads the config file at path (flat key=value unless the extension
// is .yaml/.yml) and applies environment overrides. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		default:
			if err := parseFlat(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	applyEnvOverrides(cfg)
	if cfg.Server.ThreadNum <= 0 {
		cfg.Server.ThreadNum = runtime.NumCPU()
	}
	return cfg, nil
}

// defaultConfig returns a Config with the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:        "0.0.0.0",
			Port:      8080,
			ThreadNum: 0,
			QueueSize: 100,
		},
		Data: DataConfig{
			DataDir:         "data",
			EnStopwordsFile: "data/stopwords_en.txt",
			CnStopwordsFile: "data/stopwords_cn.txt",
		},
		Recommend: RecommendConfig{
			MaxEditDistance:       3,
			DefaultK:              10,
			CacheSize:             500,
			EditDistanceCacheSize: 2000,
		},
		Search: SearchConfig{
			DefaultTopN:      5,
			MaxSummaryLength: 200,
			CacheSize:        200,
		},
		Simhash: SimhashConfig{
			TopK:      10000,
			Threshold: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "query-events",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "goso",
			User:     "goso",
			SSLMode:  "disable",
		},
	}
}

// parseFlat applies "key=value" lines onto cfg. Unknown keys are ignored so
// that configs can be shared across tool versions.
func parseFlat(data string, cfg *Config) error {
	for lineno, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("line %d: expected key=value, got %q", lineno+1, line)
		}
		if err := applyFlatKey(cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("line %d: %w", lineno+1, err)
		}
	}
	return nil
}

func applyFlatKey(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "server_ip":
		cfg.Server.IP = value
	case "server_port":
		cfg.Server.Port, err = strconv.Atoi(value)
	case "thread_num":
		cfg.Server.ThreadNum, err = strconv.Atoi(value)
	case "queue_size":
		cfg.Server.QueueSize, err = strconv.Atoi(value)
	case "data_dir":
		cfg.Data.DataDir = value
	case "en_stopwords_file":
		cfg.Data.EnStopwordsFile = value
	case "cn_stopwords_file":
		cfg.Data.CnStopwordsFile = value
	case "segmenter_dict":
		cfg.Data.SegmenterDict = value
	case "max_edit_distance":
		cfg.Recommend.MaxEditDistance, err = strconv.Atoi(value)
	case "default_recommend_k":
		cfg.Recommend.DefaultK, err = strconv.Atoi(value)
	case "default_search_top_n":
		cfg.Search.DefaultTopN, err = strconv.Atoi(value)
	case "max_summary_length":
		cfg.Search.MaxSummaryLength, err = strconv.Atoi(value)
	case "simhash_top_k":
		cfg.Simhash.TopK, err = strconv.Atoi(value)
	case "simhash_threshold":
		cfg.Simhash.Threshold, err = strconv.Atoi(value)
	case "recommend_cache_size":
		cfg.Recommend.CacheSize, err = strconv.Atoi(value)
	case "edit_distance_cache_size":
		cfg.Recommend.EditDistanceCacheSize, err = strconv.Atoi(value)
	case "search_cache_size":
		cfg.Search.CacheSize, err = strconv.Atoi(value)
	case "log_level":
		cfg.Logging.Level = value
	case "log_format":
		cfg.Logging.Format = value
	case "metrics_enabled":
		cfg.Metrics.Enabled, err = strconv.ParseBool(value)
	case "metrics_port":
		cfg.Metrics.Port, err = strconv.Atoi(value)
	case "redis_enabled":
		cfg.Redis.Enabled, err = strconv.ParseBool(value)
	case "redis_addr":
		cfg.Redis.Addr = value
	case "redis_password":
		cfg.Redis.Password = value
	case "redis_db":
		cfg.Redis.DB, err = strconv.Atoi(value)
	case "redis_cache_ttl":
		cfg.Redis.CacheTTL, err = time.ParseDuration(value)
	case "kafka_enabled":
		cfg.Kafka.Enabled, err = strconv.ParseBool(value)
	case "kafka_brokers":
		cfg.Kafka.Brokers = strings.Split(value, ",")
	case "kafka_topic":
		cfg.Kafka.Topic = value
	case "postgres_enabled":
		cfg.Postgres.Enabled, err = strconv.ParseBool(value)
	case "postgres_host":
		cfg.Postgres.Host = value
	case "postgres_port":
		cfg.Postgres.Port, err = strconv.Atoi(value)
	case "postgres_database":
		cfg.Postgres.Database = value
	case "postgres_user":
		cfg.Postgres.User = value
	case "postgres_password":
		cfg.Postgres.Password = value
	case "postgres_sslmode":
		cfg.Postgres.SSLMode = value
	default:
		// ignore unrecognized keys
	}
	if err != nil {
		return fmt.Errorf("key %s: invalid value %q: %w", key, value, err)
	}
	return nil
}

// applyEnvOverrides reads GOSO_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOSO_SERVER_IP"); v != "" {
		cfg.Server.IP = v
	}
	if v := os.Getenv("GOSO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GOSO_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv("GOSO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GOSO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GOSO_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GOSO_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("GOSO_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("GOSO_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
