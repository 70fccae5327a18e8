// internal/nat/natmap.go
package nat

import (
	"fmt"
	"log"
	"time"

	gonat "github.com/fd/go-nat"
)

type Mapper struct {
	nat gonat.NAT
	// keep what we mapped so we can clean up
	maps []mapping
	stop chan struct{}
}

// Purpose labels why a port is mapped, so refresh/close logging reads as
// pipeline activity rather than an opaque port number.
type Purpose string

const (
	// PurposeIngest marks a mapping feeding udp_source a multicast relay
	// tunneled in from behind this host's NAT boundary.
	PurposeIngest Purpose = "udp-ingest"
	// PurposeICE marks a mapping exposing rtcsink's ICE candidate port.
	PurposeICE Purpose = "ice"
)

type mapping struct {
	Proto       string
	Internal    int
	External    int
	Description string
	TTL         time.Duration
}

func Discover() (*Mapper, string, error) {
	n, err := gonat.DiscoverGateway()
	if err != nil {
		return nil, "", fmt.Errorf("nat discovery: %w", err)
	}
	if n == nil {
		return nil, "", fmt.Errorf("no NAT device found")
	}

	ip, err := n.GetExternalAddress()
	if err != nil {
		return nil, "", fmt.Errorf("external ip: %w", err)
	}
	return &Mapper{nat: n, stop: make(chan struct{})}, ip.String(), nil
}

// MapUDP maps a UDP port under the given purpose. The gateway chooses the
// external port; it is logged and recorded with the mapping.
func (m *Mapper) MapUDP(internal int, purpose Purpose, ttl time.Duration) error {
	if m == nil || m.nat == nil {
		return fmt.Errorf("nat mapper not ready")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	desc := "composite-dsp-" + string(purpose)
	if external, err := m.nat.AddPortMapping("udp", internal, desc, ttl); err != nil {
		return err
	} else {
		log.Printf("[nat] mapped udp %d->%d (%s) ttl %s", internal, external, desc, ttl)
		m.maps = append(m.maps, mapping{
			Proto: "udp", Internal: internal, External: external, Description: desc, TTL: ttl,
		})
	}
	return nil
}

// MapIngestPort is the udp_source-facing entry point: it maps port under
// PurposeIngest with a 1-hour TTL and starts a refresher so a long-running
// capture session outlives the gateway's lease.
func (m *Mapper) MapIngestPort(port int) error {
	if err := m.MapUDP(port, PurposeIngest, 1*time.Hour); err != nil {
		return err
	}
	m.StartRefresher(10 * time.Minute)
	return nil
}

// Start a refresher that renews all mappings before TTL expiry.
func (m *Mapper) StartRefresher(interval time.Duration) {
	if m == nil || m.nat == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-t.C:
				for i := range m.maps {
					mp := &m.maps[i]
					// re-add to extend TTL
					if external, err := m.nat.AddPortMapping(mp.Proto, mp.Internal, mp.Description, mp.TTL); err != nil {
						log.Printf("[nat] refresh %s %d->%d failed: %v", mp.Proto, mp.Internal, mp.External, err)
					} else {
						mp.External = external // in case it changed
					}
				}
			}
		}
	}()
}

func (m *Mapper) Close() {
	log.Printf("[nat] closing")
	if m == nil || m.nat == nil {
		return
	}
	close(m.stop)
	for _, mp := range m.maps {
		log.Printf("[nat] removing %s %d->%d", mp.Proto, mp.Internal, mp.External)
		if err := m.nat.DeletePortMapping(mp.Proto, mp.Internal); err != nil {
			log.Printf("[nat] delete %s %d->%d failed: %v", mp.Proto, mp.Internal, mp.External, err)
		}
	}
}
