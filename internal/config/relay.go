package config

import (
	"flag"
	"os"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
)

// Relay holds the relay binary's settings.
type Relay struct {
	Addr            string
	HeartbeatWindow time.Duration
	Advertise       bool
	Instance        string
	Log             logger.Config
}

// DefaultRelay returns the reference defaults.
func DefaultRelay() *Relay {
	return &Relay{
		Addr:            ":8080",
		HeartbeatWindow: 30 * time.Second,
		Instance:        "eldritch-relay",
		Log:             logger.DefaultConfig(),
	}
}

// LoadRelay builds the relay configuration from args.
func LoadRelay(args []string) (*Relay, error) {
	cfg := DefaultRelay()

	if v := os.Getenv("ELDRITCH_RELAY_ADDR"); v != "" {
		cfg.Addr = v
	}

	fs := flag.NewFlagSet("eldritch-relay", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.DurationVar(&cfg.HeartbeatWindow, "heartbeat-window", cfg.HeartbeatWindow, "drop subscribers silent for longer than this")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "advertise the relay on the LAN via mDNS")
	fs.StringVar(&cfg.Instance, "instance", cfg.Instance, "mDNS instance name")
	fs.BoolVar(&cfg.Log.Debug, "debug", cfg.Log.Debug, "enable debug logging")
	fs.BoolVar(&cfg.Log.Pretty, "pretty", cfg.Log.Pretty, "human-readable log output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
