// Package discovery advertises and finds canvas relays on the local
// network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_collabcanvas._tcp"

// Relay is one advertised relay.
type Relay struct {
	Addr   string
	Boards []string
}

func service(port int, ips []net.IP, boards []string) (*mdns.MDNSService, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	info := []string{"boards=" + strings.Join(boards, ",")}
	svc, err := mdns.NewMDNSService(host, ServiceType, "", "", port, ips, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return svc, nil
}

// Advertise announces a relay listening on port until the returned server
// is shut down.
func Advertise(port int, boards []string) (*mdns.Server, error) {
	svc, err := service(port, nil, boards)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse collects relays answering within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Relay, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var found []Relay
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if r, ok := relayOf(e); ok {
				found = append(found, r)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		// Query returns by itself once the timeout passes
		err = ctx.Err()
		<-errc
	}
	close(entries)
	<-done
	if err != nil {
		return found, fmt.Errorf("failed to browse: %w", err)
	}
	slog.Debug("browsed for relays", "found", len(found))
	return found, nil
}

func relayOf(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Relay{}, false
	}
	r := Relay{Addr: fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)}
	for _, field := range e.InfoFields {
		if v, ok := strings.CutPrefix(field, "boards="); ok && v != "" {
			r.Boards = strings.Split(v, ",")
		}
	}
	return r, true
}
