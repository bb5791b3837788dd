// Package config loads runtime settings for the relay and client binaries.
// Precedence, lowest to highest: built-in defaults, JSON config file,
// environment, command-line flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
)

// Client holds the sync client binary's settings.
type Client struct {
	Endpoint             string
	Origin               string
	SyncRadiusMeters     float64
	PublishInterval      time.Duration
	StaleAfter           time.Duration
	SweepInterval        time.Duration
	DialTimeout          time.Duration
	MaxReconnectAttempts int
	FlagDBPath           string
	Discover             bool
	Log                  logger.Config
}

// DefaultClient returns the reference defaults.
func DefaultClient() *Client {
	return &Client{
		SyncRadiusMeters:     500,
		PublishInterval:      2 * time.Second,
		StaleAfter:           30 * time.Second,
		SweepInterval:        10 * time.Second,
		DialTimeout:          5 * time.Second,
		MaxReconnectAttempts: 5,
		Log:                  logger.DefaultConfig(),
	}
}

type clientFile struct {
	Endpoint             string   `json:"endpoint"`
	Origin               string   `json:"origin"`
	SyncRadiusMeters     *float64 `json:"sync_radius_meters"`
	PublishIntervalMS    *int     `json:"publish_interval_ms"`
	StaleAfterMS         *int     `json:"stale_after_ms"`
	SweepIntervalMS      *int     `json:"sweep_interval_ms"`
	DialTimeoutMS        *int     `json:"dial_timeout_ms"`
	MaxReconnectAttempts *int     `json:"max_reconnect_attempts"`
	FlagDB               string   `json:"flag_db"`
	Discover             *bool    `json:"discover"`
	Debug                *bool    `json:"debug"`
}

// LoadClient builds the client configuration from args (usually os.Args[1:]).
func LoadClient(args []string) (*Client, error) {
	cfg := DefaultClient()

	path := configPath(args)
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	fs := flag.NewFlagSet("eldritch-client", flag.ContinueOnError)
	fs.String("config", path, "path to JSON config file")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "relay websocket URL (overrides origin resolution)")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "page origin to resolve the relay endpoint from")
	fs.Float64Var(&cfg.SyncRadiusMeters, "radius", cfg.SyncRadiusMeters, "advisory sync radius in meters")
	fs.DurationVar(&cfg.PublishInterval, "publish-interval", cfg.PublishInterval, "how often to publish local state")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "evict peers silent for longer than this")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "staleness sweep period")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "relay connect timeout")
	fs.IntVar(&cfg.MaxReconnectAttempts, "max-retries", cfg.MaxReconnectAttempts, "reconnect attempt budget")
	fs.StringVar(&cfg.FlagDBPath, "flags-db", cfg.FlagDBPath, "path to the owned-flags database (empty disables persistence)")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "browse mDNS for a LAN relay instead of using an endpoint")
	fs.BoolVar(&cfg.Log.Debug, "debug", cfg.Log.Debug, "enable debug logging")
	fs.BoolVar(&cfg.Log.Pretty, "pretty", cfg.Log.Pretty, "human-readable log output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Endpoint == "" && cfg.Origin == "" && !cfg.Discover {
		return nil, fmt.Errorf("config: no endpoint, origin, or discovery configured")
	}
	return cfg, nil
}

func (c *Client) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file clientFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if file.Endpoint != "" {
		c.Endpoint = file.Endpoint
	}
	if file.Origin != "" {
		c.Origin = file.Origin
	}
	if file.SyncRadiusMeters != nil {
		c.SyncRadiusMeters = *file.SyncRadiusMeters
	}
	if file.PublishIntervalMS != nil {
		c.PublishInterval = time.Duration(*file.PublishIntervalMS) * time.Millisecond
	}
	if file.StaleAfterMS != nil {
		c.StaleAfter = time.Duration(*file.StaleAfterMS) * time.Millisecond
	}
	if file.SweepIntervalMS != nil {
		c.SweepInterval = time.Duration(*file.SweepIntervalMS) * time.Millisecond
	}
	if file.DialTimeoutMS != nil {
		c.DialTimeout = time.Duration(*file.DialTimeoutMS) * time.Millisecond
	}
	if file.MaxReconnectAttempts != nil {
		c.MaxReconnectAttempts = *file.MaxReconnectAttempts
	}
	if file.FlagDB != "" {
		c.FlagDBPath = file.FlagDB
	}
	if file.Discover != nil {
		c.Discover = *file.Discover
	}
	if file.Debug != nil {
		c.Log.Debug = *file.Debug
	}
	return nil
}

func (c *Client) applyEnv() {
	if v := os.Getenv("ELDRITCH_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("ELDRITCH_ORIGIN"); v != "" {
		c.Origin = v
	}
	if v := os.Getenv("ELDRITCH_FLAGS_DB"); v != "" {
		c.FlagDBPath = v
	}
}

// configPath pre-scans args for the config flag so the file can be applied
// before flag parsing, keeping flags the highest-precedence source.
func configPath(args []string) string {
	for i, arg := range args {
		switch arg {
		case "-config", "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		for _, prefix := range []string{"-config=", "--config="} {
			if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
				return arg[len(prefix):]
			}
		}
	}
	return os.Getenv("ELDRITCH_CONFIG")
}
