package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	Host             string `json:"host" yaml:"host"`
	Port             uint64 `json:"port" yaml:"port"`
	Username         string `json:"username" yaml:"username"`
	Password         string `json:"password" yaml:"password"`
	Database         string `json:"database" yaml:"database"`
	UseTLS           bool   `json:"use_tls" yaml:"use_tls"`
	ConnectTimeout   string `json:"connect_timeout" yaml:"connect_timeout"`
	SocketTimeout    string `json:"socket_timeout" yaml:"socket_timeout"`
	OperationTimeout string `json:"operation_timeout" yaml:"operation_timeout"`
	MinPoolSize      uint64 `json:"min_pool_size" yaml:"min_pool_size"`
	MaxPoolSize      uint64 `json:"max_pool_size" yaml:"max_pool_size"`
}

type StoreConfig struct {
	// Type is "memory" or "mongo".
	Type  string      `json:"type" yaml:"type"`
	Mongo MongoConfig `json:"mongo" yaml:"mongo"`
}

type InfluxDBConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	URL           string `json:"url" yaml:"url"`
	Token         string `json:"token" yaml:"token"`
	Org           string `json:"org" yaml:"org"`
	Bucket        string `json:"bucket" yaml:"bucket"`
	BatchSize     int    `json:"batch_size" yaml:"batch_size"`
	FlushInterval int    `json:"flush_interval" yaml:"flush_interval"`
}

type Config struct {
	AppName string `json:"app_name" yaml:"app_name"`
	Bind    string `json:"bind" yaml:"bind"`
	Port    int    `json:"port" yaml:"port"`
	// Timeout is the idle timeout of a connection in seconds, 0 disables it.
	Timeout int `json:"timeout" yaml:"timeout"`
	// PollInterval is in milliseconds.
	PollInterval    int            `json:"poll_interval" yaml:"poll_interval"`
	User            string         `json:"user" yaml:"user"`
	Password        string         `json:"password" yaml:"password"`
	IgnorePings     bool           `json:"ignore_pings" yaml:"ignore_pings"`
	RouterType      string         `json:"router_type" yaml:"router_type"`
	DebugMode       bool           `json:"debug_mode" yaml:"debug_mode"`
	LogDir          string         `json:"log_dir" yaml:"log_dir"`
	ObjectCacheSize int            `json:"object_cache_size" yaml:"object_cache_size"`
	Store           StoreConfig    `json:"store" yaml:"store"`
	InfluxDB        InfluxDBConfig `json:"influxdb" yaml:"influxdb"`
}

const (
	DefaultPort            = 1883
	DefaultTimeout         = 300
	DefaultPollInterval    = 5000
	DefaultLogDir          = "logs"
	DefaultObjectCacheSize = 4096
	DefaultAppName         = "router-telemetry-broker"
)

// Default returns a Config with every default applied.
func Default() Config {
	cfg := Config{Timeout: DefaultTimeout}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. Timeout is left alone because 0 disables it.
func (c *Config) ApplyDefaults() {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.ObjectCacheSize <= 0 {
		c.ObjectCacheSize = DefaultObjectCacheSize
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Store.Type == "mongo" {
		m := &c.Store.Mongo
		if m.Port == 0 {
			m.Port = 27017
		}
		if m.Database == "" {
			m.Database = "router_telemetry"
		}
		if m.ConnectTimeout == "" {
			m.ConnectTimeout = "10s"
		}
		if m.SocketTimeout == "" {
			m.SocketTimeout = "30s"
		}
		if m.OperationTimeout == "" {
			m.OperationTimeout = "5s"
		}
		if m.MaxPoolSize == 0 {
			m.MaxPoolSize = 20
		}
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Type {
	case "memory":
	case "mongo":
		if c.Store.Mongo.Host == "" {
			return fmt.Errorf("%w: store.mongo.host is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store type %q", ErrInvalidConfig, c.Store.Type)
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("%w: influxdb.url is required when influxdb is enabled", ErrInvalidConfig)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func marshal(path string, cfg Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "\t")
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// ReadConfig loads the file at path. A missing file is created with the
// defaults and ErrConfigNotFound is returned so the operator can edit it.
func ReadConfig(path string) (Config, error) {
	cfg := Default()

	bytes, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		data, merr := marshal(path, cfg)
		if merr == nil {
			_ = os.WriteFile(path, data, 0644)
		}
		return cfg, fmt.Errorf("%w: %s has been created, edit it and start again", ErrConfigNotFound, path)
	}

	if err := unmarshal(path, bytes, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
