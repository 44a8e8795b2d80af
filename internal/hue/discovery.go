package hue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// Source finds bridges by one discovery mechanism.
type Source interface {
	Name() string
	Find(ctx context.Context) ([]BridgeInfo, error)
}

// Discoverer runs discovery sources in order and merges their results.
type Discoverer struct {
	sources []Source
}

// NewDiscoverer creates a discoverer over the given sources.
func NewDiscoverer(sources ...Source) *Discoverer {
	return &Discoverer{sources: sources}
}

// Discover returns every bridge found, de-duplicated by address in
// first-seen order. A failing source is logged and skipped; an error is
// returned only if all sources failed.
func (d *Discoverer) Discover(ctx context.Context) ([]BridgeInfo, error) {
	if len(d.sources) == 0 {
		return nil, errors.New("no discovery sources enabled")
	}

	seen := make(map[string]bool)
	var bridges []BridgeInfo
	var errs []error

	for _, src := range d.sources {
		if err := ctx.Err(); err != nil {
			return bridges, err
		}

		found, err := src.Find(ctx)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("Bridge discovery failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		for _, b := range found {
			if b.Address == "" || seen[b.Address] {
				continue
			}
			seen[b.Address] = true
			if b.Source == "" {
				b.Source = src.Name()
			}
			bridges = append(bridges, b)
		}
		log.Debug().Str("source", src.Name()).Int("found", len(found)).Msg("Discovery source finished")

		// Later sources are fallbacks only.
		if len(bridges) > 0 {
			break
		}
	}

	if len(bridges) == 0 && len(errs) == len(d.sources) {
		return nil, errors.Join(errs...)
	}
	return bridges, nil
}

// MDNSSource browses for _hue._tcp services on the local network.
type MDNSSource struct {
	Timeout time.Duration
}

func (s MDNSSource) Name() string { return "mdns" }

func (s MDNSSource) Find(ctx context.Context) ([]BridgeInfo, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	entries := make(chan *mdns.ServiceEntry, 10)
	errCh := make(chan error, 1)

	go func() {
		params := &mdns.QueryParam{
			Service:             "_hue._tcp",
			Domain:              "local",
			Timeout:             timeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		}
		errCh <- mdns.Query(params)
		close(entries)
	}()

	var bridges []BridgeInfo
	for entry := range entries {
		if ctx.Err() != nil {
			// drain so the query goroutine can finish
			continue
		}
		if entry.AddrV4 == nil {
			continue
		}
		log.Debug().Str("name", entry.Name).Str("addr", entry.AddrV4.String()).Msg("mDNS entry")
		bridges = append(bridges, BridgeInfo{
			ID:      txtValue(entry.InfoFields, "bridgeid"),
			Address: entry.AddrV4.String(),
		})
	}

	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return bridges, nil
}

func txtValue(fields []string, key string) string {
	for _, f := range fields {
		if k, v, ok := strings.Cut(f, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// CloudSource asks the meethue N-UPnP endpoint which bridges registered
// from this network.
type CloudSource struct{}

func (CloudSource) Name() string { return "cloud" }

func (CloudSource) Find(ctx context.Context) ([]BridgeInfo, error) {
	found, err := huego.DiscoverAllContext(ctx)
	if err != nil {
		return nil, err
	}

	bridges := make([]BridgeInfo, 0, len(found))
	for _, b := range found {
		bridges = append(bridges, BridgeInfo{ID: b.ID, Address: b.Host})
	}
	return bridges, nil
}
