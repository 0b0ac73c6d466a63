package appconf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wtcops/resyncd/internal/runner"
	"github.com/wtcops/resyncd/internal/task"

	"gopkg.in/gcfg.v1"
)

const DefaultConfigFile = "/etc/resyncd/resyncd.ini"

type ServerParams struct {
	Listen         string   `gcfg:"listen"`
	TrustedProxies []string `gcfg:"trusted-proxy"`
	APIKey         string   `gcfg:"api-key"`
	AllowedIPs     []string `gcfg:"allowed-ip"`

	// In seconds
	HeartbeatInterval int `gcfg:"heartbeat-interval"`
	// In milliseconds
	StreamEndDelay int `gcfg:"stream-end-delay"`
}

func (p *ServerParams) Heartbeat() time.Duration {
	return time.Duration(p.HeartbeatInterval) * time.Second
}

func (p *ServerParams) EndDelay() time.Duration {
	return time.Duration(p.StreamEndDelay) * time.Millisecond
}

type TasksParams struct {
	MaxRecords    int    `gcfg:"max-records"`
	VersionOffset int    `gcfg:"version-offset"`
	Project       string `gcfg:"project"`
	Shell         string `gcfg:"shell"`
}

// PathsParams contains locations of the resource trees and the tool scripts.
type PathsParams struct {
	Home  string `gcfg:"home"`
	Match string `gcfg:"match"`
	Nginx string `gcfg:"nginx"`
}

type MetricsParams struct {
	Enable bool `gcfg:"enable"`
	// In seconds
	Interval int `gcfg:"interval"`
}

// Config represents the resyncd configuration
type Config struct {
	Server  ServerParams
	Tasks   TasksParams
	Paths   PathsParams
	Metrics MetricsParams
}

func defaultConfig() Config {
	return Config{
		Server: ServerParams{
			Listen:            "0.0.0.0:3000",
			HeartbeatInterval: 30,
			StreamEndDelay:    1000,
		},
		Tasks: TasksParams{
			MaxRecords:    task.DefaultMaxRecords,
			VersionOffset: 2,
			Project:       "wtc",
			Shell:         runner.DefaultShell,
		},
		Metrics: MetricsParams{
			Interval: 60,
		},
	}
}

// NewConfig reads and parses the configuration file and returns
// a new instance of Config on success.
//
// Environment variables RESYNCD_LISTEN, RESYNCD_API_KEY and RESYNCD_ALLOWED_IPS
// (comma separated) take precedence over the file values.
func NewConfig(p string) (*Config, error) {
	cfg := defaultConfig()

	if err := gcfg.ReadFileInto(&cfg, p); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %s", err)
	}

	return finalize(&cfg)
}

// ParseConfig is the same as NewConfig but reads the configuration from a string.
func ParseConfig(s string) (*Config, error) {
	cfg := defaultConfig()

	if err := gcfg.ReadStringInto(&cfg, s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %s", err)
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	if v, ok := os.LookupEnv("RESYNCD_LISTEN"); ok && len(v) > 0 {
		cfg.Server.Listen = v
	}

	if v, ok := os.LookupEnv("RESYNCD_API_KEY"); ok {
		cfg.Server.APIKey = v
	}

	if v, ok := os.LookupEnv("RESYNCD_ALLOWED_IPS"); ok {
		cfg.Server.AllowedIPs = splitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case len(c.Paths.Home) == 0:
		return fmt.Errorf("paths: home directory is not set")
	case len(c.Paths.Match) == 0:
		return fmt.Errorf("paths: match directory is not set")
	case len(c.Paths.Nginx) == 0:
		return fmt.Errorf("paths: nginx directory is not set")
	case len(c.Tasks.Project) == 0:
		return fmt.Errorf("tasks: empty project name")
	case c.Tasks.MaxRecords <= 0:
		return fmt.Errorf("tasks: max-records must be positive: %d", c.Tasks.MaxRecords)
	case c.Tasks.VersionOffset < 0:
		return fmt.Errorf("tasks: version-offset must not be negative: %d", c.Tasks.VersionOffset)
	case c.Server.HeartbeatInterval <= 0:
		return fmt.Errorf("server: heartbeat-interval must be positive: %d", c.Server.HeartbeatInterval)
	case c.Server.StreamEndDelay < 0:
		return fmt.Errorf("server: stream-end-delay must not be negative: %d", c.Server.StreamEndDelay)
	case c.Metrics.Enable && c.Metrics.Interval <= 0:
		return fmt.Errorf("metrics: interval must be positive: %d", c.Metrics.Interval)
	}

	return nil
}

func splitList(s string) []string {
	items := make([]string, 0)

	for _, x := range strings.Split(s, ",") {
		if x = strings.TrimSpace(x); len(x) > 0 {
			items = append(items, x)
		}
	}

	return items
}
