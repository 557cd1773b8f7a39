package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/tagsched/pkg/dispatch"
	"github.com/mash-protocol/tagsched/pkg/service"
)

// Config is the server configuration. Flags override the file.
type Config struct {
	Listen    string `yaml:"listen"`
	Tags      string `yaml:"tags"`
	LogLevel  string `yaml:"log_level"`
	EventLog  string `yaml:"event_log"`
	Namespace string `yaml:"metrics_namespace"`
	Snapshot  string `yaml:"snapshot_file"`

	Redis struct {
		Addr      string `yaml:"addr"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Scheduler struct {
		PendingTimeout      time.Duration `yaml:"pending_timeout"`
		ReapInterval        time.Duration `yaml:"reap_interval"`
		MinimumPeriod       time.Duration `yaml:"minimum_period"`
		ReadTimeout         time.Duration `yaml:"read_timeout"`
		DetectConcurrentUse bool          `yaml:"detect_concurrent_use"`
	} `yaml:"scheduler"`

	Advertise struct {
		Enabled   bool          `yaml:"enabled"`
		Name      string        `yaml:"name"`
		Interface string        `yaml:"interface"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"advertise"`

	Interactive bool `yaml:"-"`
}

func defaultConfig() Config {
	var c Config
	c.Listen = ":8090"
	c.Tags = "tags.yaml"
	c.LogLevel = "info"
	c.Scheduler.PendingTimeout = service.DefaultPendingTimeout
	c.Scheduler.ReapInterval = service.DefaultReapInterval
	c.Scheduler.MinimumPeriod = dispatch.DefaultMinimumPeriod
	c.Scheduler.ReadTimeout = dispatch.DefaultReadTimeout
	return c
}

// loadConfig parses flags, reads the optional config file and applies flags
// that were set explicitly on top of it.
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("tagsched", pflag.ContinueOnError)
	configFile := fs.String("config", "", "configuration file (YAML)")
	tags := fs.String("tags", cfg.Tags, "tag catalog file (YAML)")
	listen := fs.String("listen", cfg.Listen, "HTTP listen address for /metrics and /status")
	redisAddr := fs.String("redis", "", "Redis address for the value cache (empty: in-memory cache)")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	eventLog := fs.String("event-log", "", "write CBOR engine events to this file")
	snapshot := fs.String("snapshot", "", "write a scheduler snapshot to this file on shutdown")
	advertise := fs.Bool("advertise", false, "announce the server over mDNS")
	interactive := fs.BoolP("interactive", "i", false, "start the interactive console")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", *configFile, err)
		}
	}

	if fs.Changed("tags") {
		cfg.Tags = *tags
	}
	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("redis") {
		cfg.Redis.Addr = *redisAddr
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("event-log") {
		cfg.EventLog = *eventLog
	}
	if fs.Changed("snapshot") {
		cfg.Snapshot = *snapshot
	}
	if fs.Changed("advertise") {
		cfg.Advertise.Enabled = *advertise
	}
	cfg.Interactive = *interactive

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// serviceConfig maps the file configuration onto the server's.
func (c Config) serviceConfig() service.Config {
	sc := service.DefaultConfig()
	sc.PendingTimeout = c.Scheduler.PendingTimeout
	sc.ReapInterval = c.Scheduler.ReapInterval
	sc.DetectConcurrentUse = c.Scheduler.DetectConcurrentUse
	sc.Dispatch.MinimumPeriod = c.Scheduler.MinimumPeriod
	sc.Dispatch.ReadTimeout = c.Scheduler.ReadTimeout
	return sc
}
