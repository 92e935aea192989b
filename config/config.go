package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Remote     RemoteConfig     `yaml:"remote"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// RemoteConfig describes the realtime store the monitor synchronizes with.
type RemoteConfig struct {
	BaseURL         string        `yaml:"base_url"`
	AuthToken       string        `yaml:"auth_token"`
	HTTPProxy       string        `yaml:"http_proxy"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	Paths           RemotePaths   `yaml:"paths"`
}

// RemotePaths lists the store locations the monitor reads and writes.
type RemotePaths struct {
	Occupancy    string `yaml:"occupancy"`
	Users        string `yaml:"users"`
	Transactions string `yaml:"transactions"`
	ClosingInfo  string `yaml:"closing_info"`
	Notices      string `yaml:"notices"`
	Incidents    string `yaml:"incidents"`
}

// SessionConfig carries the per-dashboard-session settings: role flags,
// workflow targets, and timer intervals. The hosting page treats all of
// these as immutable for the session.
type SessionConfig struct {
	CanEdit          bool   `yaml:"can_edit"`
	CanAssign        bool   `yaml:"can_assign"`
	IsAdmin          bool   `yaml:"is_admin"`
	SaveURL          string `yaml:"save_url"`
	ResolveURL       string `yaml:"resolve_url"`
	AdminLabel       string `yaml:"admin_label"`
	HoverDwellMS     int    `yaml:"hover_dwell_ms"`
	CountdownTickSec int    `yaml:"countdown_tick_sec"`
	NoticeMaxLen     int    `yaml:"notice_max_len"`

	HoverDwell    time.Duration `yaml:"-"`
	CountdownTick time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Remote.IntervalSeconds <= 0 {
		cfg.Remote.IntervalSeconds = 5
	}
	cfg.Remote.Interval = time.Duration(cfg.Remote.IntervalSeconds) * time.Second

	if cfg.Remote.Paths.Occupancy == "" {
		cfg.Remote.Paths.Occupancy = "/configurations/layout/occupied"
	}
	if cfg.Remote.Paths.Users == "" {
		cfg.Remote.Paths.Users = "/users"
	}
	if cfg.Remote.Paths.Transactions == "" {
		cfg.Remote.Paths.Transactions = "/transactions"
	}
	if cfg.Remote.Paths.ClosingInfo == "" {
		cfg.Remote.Paths.ClosingInfo = "/closing"
	}
	if cfg.Remote.Paths.Notices == "" {
		cfg.Remote.Paths.Notices = "/notices"
	}
	if cfg.Remote.Paths.Incidents == "" {
		cfg.Remote.Paths.Incidents = "/incidents"
	}

	if cfg.Session.HoverDwellMS <= 0 {
		cfg.Session.HoverDwellMS = 1500
	}
	cfg.Session.HoverDwell = time.Duration(cfg.Session.HoverDwellMS) * time.Millisecond

	if cfg.Session.CountdownTickSec <= 0 {
		cfg.Session.CountdownTickSec = 30
	}
	cfg.Session.CountdownTick = time.Duration(cfg.Session.CountdownTickSec) * time.Second

	if cfg.Session.NoticeMaxLen <= 0 {
		cfg.Session.NoticeMaxLen = 50
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
