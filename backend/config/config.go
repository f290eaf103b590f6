package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host string
	Port int
}

type DB struct {
	Host string
	Port int
	User string
	Pass string
	Name string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type JWT struct {
	Secret string
	Issuer string
	ExpMin int
}

// Command holds the dispatch subsystem knobs: how long an agent gets to
// report back, how often the monitor sweeps, and the retention windows of
// the Redis structures.
type Command struct {
	DefaultTimeout    int // seconds an agent has to report back
	DefaultMaxRetries int
	FetchLimit        int // hard cap on commands handed out per poll
	MonitorInterval   time.Duration
	ReconcileEvery    int // monitor cycles between reconciliation sweeps
	QueueRetention    time.Duration
	ResultTTL         time.Duration
	ProgressTTL       time.Duration
}

type Config struct {
	HTTP     HTTP
	DB       DB
	Redis    Redis
	JWT      JWT
	Command  Command
	LogLevel string
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("backend.http.host", "127.0.0.1")
	v.SetDefault("backend.http.port", 9400)
	v.SetDefault("backend.db.host", "127.0.0.1")
	v.SetDefault("backend.db.port", 3306)
	v.SetDefault("backend.db.user", "root")
	v.SetDefault("backend.db.pass", "")
	v.SetDefault("backend.db.name", "agent_manage")
	v.SetDefault("backend.redis.addr", "127.0.0.1:6379")
	v.SetDefault("backend.redis.password", "")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.log_level", "info")
	v.SetDefault("backend.command.default_timeout", 300)
	v.SetDefault("backend.command.default_max_retries", 3)
	v.SetDefault("backend.command.fetch_limit", 50)
	v.SetDefault("backend.command.monitor_interval", "10s")
	v.SetDefault("backend.command.reconcile_every", 6)
	v.SetDefault("backend.command.queue_retention", "24h")
	v.SetDefault("backend.command.result_ttl", "24h")
	v.SetDefault("backend.command.progress_ttl", "1h")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		HTTP:  HTTP{Host: v.GetString("backend.http.host"), Port: v.GetInt("backend.http.port")},
		DB:    DB{Host: v.GetString("backend.db.host"), Port: v.GetInt("backend.db.port"), User: v.GetString("backend.db.user"), Pass: v.GetString("backend.db.pass"), Name: v.GetString("backend.db.name")},
		Redis: Redis{Addr: v.GetString("backend.redis.addr"), Password: v.GetString("backend.redis.password"), DB: v.GetInt("backend.redis.db")},
		Command: Command{
			DefaultTimeout:    v.GetInt("backend.command.default_timeout"),
			DefaultMaxRetries: v.GetInt("backend.command.default_max_retries"),
			FetchLimit:        v.GetInt("backend.command.fetch_limit"),
			MonitorInterval:   v.GetDuration("backend.command.monitor_interval"),
			ReconcileEvery:    v.GetInt("backend.command.reconcile_every"),
			QueueRetention:    v.GetDuration("backend.command.queue_retention"),
			ResultTTL:         v.GetDuration("backend.command.result_ttl"),
			ProgressTTL:       v.GetDuration("backend.command.progress_ttl"),
		},
		LogLevel: v.GetString("backend.log_level"),
	}
	cfg.JWT.Secret = v.GetString("backend.jwt.secret")
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	cfg.JWT.Issuer = v.GetString("backend.jwt.issuer")
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "agent-manage"
	}
	cfg.JWT.ExpMin = v.GetInt("backend.jwt.exp_min")
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	if cfg.Command.MonitorInterval <= 0 {
		cfg.Command.MonitorInterval = 10 * time.Second
	}
	if cfg.Command.FetchLimit <= 0 || cfg.Command.FetchLimit > 50 {
		cfg.Command.FetchLimit = 50
	}
	if cfg.Command.DefaultTimeout <= 0 {
		cfg.Command.DefaultTimeout = 300
	}
	if cfg.Command.DefaultMaxRetries < 0 {
		cfg.Command.DefaultMaxRetries = 3
	}
	return cfg, nil
}

// WatchLevel re-reads the log level whenever the config file changes.
func WatchLevel(path string, apply func(level string)) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		if lvl := v.GetString("backend.log_level"); lvl != "" {
			apply(lvl)
		}
	})
	v.WatchConfig()
	return nil
}
