// Package discovery advertises and locates a LAN relay over mDNS. It exists
// for the local development loop; clients with an explicit endpoint never
// touch it.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
)

const (
	Service = "_eldritch-relay._tcp"
	Domain  = "local."
)

// ErrNoRelayFound is returned when browsing times out with no answer.
var ErrNoRelayFound = errors.New("discovery: no relay found on the LAN")

// Advertise registers the relay instance on the LAN. Callers shut the
// returned server down on exit.
func Advertise(instance string, port int) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instance, Service, Domain, port, []string{"path=/ws"}, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: advertise %s: %w", instance, err)
	}
	return server, nil
}

// Browse looks for the first advertised relay and returns its websocket
// endpoint. The context bounds the wait.
func Browse(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("discovery: create resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return "", fmt.Errorf("discovery: browse: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNoRelayFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoRelayFound
			}
			if endpoint := EndpointFor(entry); endpoint != "" {
				return endpoint, nil
			}
		}
	}
}

// EndpointFor maps a service entry to a websocket endpoint, preferring IPv4.
func EndpointFor(entry *zeroconf.ServiceEntry) string {
	if entry == nil {
		return ""
	}
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return ""
	}
	return fmt.Sprintf("ws://%s/ws", net.JoinHostPort(host, fmt.Sprintf("%d", entry.Port)))
}
