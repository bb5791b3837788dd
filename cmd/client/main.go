// Command client is the terminal sync client: a simulated walker publishing
// position and flags to a relay, rendering peers to the console. It is the
// reference harness for testing a relay without a browser.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/config"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/discovery"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/flagstore"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/multiplayer"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
)

// Default start position: Helsinki harbor, the game's home turf.
const (
	startLat = 60.1699
	startLng = 24.9384
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Endpoint == "" && cfg.Discover {
		browseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		endpoint, err := discovery.Browse(browseCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("relay discovery failed")
		}
		cfg.Endpoint = endpoint
		log.Info().Str("endpoint", endpoint).Msg("discovered relay")
	}

	var flags []state.Decoration
	var store *flagstore.Store
	if cfg.FlagDBPath != "" {
		store, err = flagstore.Open(cfg.FlagDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot open flag store")
		}
		defer store.Close()
		flags, err = store.All()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot load stored flags")
		}
		log.Info().Int("count", len(flags)).Msg("loaded owned flags")
	}

	source := newWalker(startLat, startLng, "wanderer", flags)
	view := newConsoleView(log)

	client, err := multiplayer.New(multiplayer.Options{
		Endpoint:             cfg.Endpoint,
		Origin:               cfg.Origin,
		SyncRadiusMeters:     cfg.SyncRadiusMeters,
		PublishInterval:      cfg.PublishInterval,
		StaleAfter:           cfg.StaleAfter,
		SweepInterval:        cfg.SweepInterval,
		DialTimeout:          cfg.DialTimeout,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, source, view, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build sync client")
	}

	// A fresh install plants one flag at the start position so there is
	// something to re-announce after reconnects.
	if store != nil && len(flags) == 0 {
		d := source.PlantFlag(client.PeerID())
		if err := store.Put(d); err != nil {
			log.Warn().Err(err).Msg("failed to persist planted flag")
		} else {
			log.Info().Str("flagId", d.Key()).Msg("planted a flag")
		}
	}

	if err := client.Connect(context.Background()); err != nil {
		// Transient: the bounded reconnect policy is already running.
		log.Warn().Err(err).Msg("initial connect failed, retrying in background")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-interrupt

	log.Info().Msg("shutting down")
	client.Disconnect()
}
