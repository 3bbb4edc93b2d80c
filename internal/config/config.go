package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string          `mapstructure:"env"`
	Server   Server          `mapstructure:"server"`
	Database Database        `mapstructure:"database"`
	Logger   Logger          `mapstructure:"logger"`
	Cluster  ClusterSettings `mapstructure:"cluster"`
	PQL      PQL             `mapstructure:"pql"`
	Webhook  Webhook         `mapstructure:"webhook"`
}

// PQL points the query executor at the data cluster's PPL endpoint.
type PQL struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	Burst          int     `mapstructure:"burst"`
}

// Webhook configures the single reference Notifier destination.
type Webhook struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Server struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	TimeZone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
}


type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	// File, when set, additionally writes rotated log output via lumberjack
	// alongside stdout. Left empty, logging stays stdout-only.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ClusterSettings holds the alert-engine cluster settings. Unlike
// Database/Server, these are read on every monitor run and sweep via
// Store.Current(), so a value swapped in with Store.Set takes effect on the
// next run or sweep. Nothing in this repository calls Set or watches the
// config file: the values loaded at startup stay in effect until restart.
type ClusterSettings struct {
	HistoryEnabled            bool          `mapstructure:"history_enabled"`
	HistoryRolloverPeriod     time.Duration `mapstructure:"history_rollover_period"`
	HistoryIndexMaxAge        time.Duration `mapstructure:"history_index_max_age"`
	HistoryMaxDocs            int           `mapstructure:"history_max_docs"`
	HistoryRetentionPeriod    time.Duration `mapstructure:"history_retention_period"`
	QueryResultsMaxDatarows   int           `mapstructure:"query_results_max_datarows"`
	QueryResultsMaxSizeBytes  int           `mapstructure:"query_results_max_size_bytes"`
	PerResultTriggerMaxAlerts int           `mapstructure:"per_result_trigger_max_alerts"`
}

// Store wraps a loaded ClusterSettings behind a mutex so a config-reload
// goroutine can swap it in while the monitor runner and sweeper read it
// concurrently on every run.
type Store struct {
	mu       sync.RWMutex
	settings ClusterSettings
}

func NewStore(initial ClusterSettings) *Store {
	return &Store{settings: initial}
}

func (s *Store) Current() ClusterSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) Set(settings ClusterSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetDefault("env", "development")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("server.idle_timeout", 60)
	
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "alertengine")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.dbname", "alertengine")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.timezone", "UTC")
	viper.SetDefault("database.max_idle_conns", 25)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.conn_max_idle_time", 1800)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.file", "")
	viper.SetDefault("logger.max_size_mb", 100)
	viper.SetDefault("logger.max_backups", 5)
	viper.SetDefault("logger.max_age_days", 28)
	viper.SetDefault("logger.compress", true)

	viper.SetDefault("cluster.history_enabled", true)
	viper.SetDefault("cluster.history_rollover_period", "12h")
	viper.SetDefault("cluster.history_index_max_age", "720h")
	viper.SetDefault("cluster.history_max_docs", 1000)
	viper.SetDefault("cluster.history_retention_period", "720h")
	viper.SetDefault("cluster.query_results_max_datarows", 10000)
	viper.SetDefault("cluster.query_results_max_size_bytes", 1048576)
	viper.SetDefault("cluster.per_result_trigger_max_alerts", 10)

	viper.SetDefault("pql.base_url", "http://localhost:9200")
	viper.SetDefault("pql.timeout_seconds", 30)
	viper.SetDefault("pql.rate_limit", 20)
	viper.SetDefault("pql.burst", 20)

	viper.SetDefault("webhook.url", "")
	viper.SetDefault("webhook.timeout_seconds", 30)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}