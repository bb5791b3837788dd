package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/config"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/discovery"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/relay"
)

func main() {
	cfg, err := config.LoadRelay(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hub := relay.NewHub(relay.Config{HeartbeatWindow: cfg.HeartbeatWindow}, log)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	if cfg.Advertise {
		port, err := listenPort(cfg.Addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("cannot advertise without a numeric port")
		}
		server, err := discovery.Advertise(cfg.Instance, port)
		if err != nil {
			log.Fatal().Err(err).Msg("mDNS advertisement failed")
		}
		defer server.Shutdown()
		log.Info().Str("instance", cfg.Instance).Int("port", port).Msg("advertising relay on the LAN")
	}

	log.Info().Str("addr", cfg.Addr).Msg("relay listening")
	if err := http.ListenAndServe(cfg.Addr, relay.NewRouter(hub)); err != nil {
		log.Fatal().Err(err).Msg("relay server failed")
	}
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
