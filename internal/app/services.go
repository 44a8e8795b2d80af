package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/command"
	"github.com/dokzlo13/lamplighter/internal/config"
	"github.com/dokzlo13/lamplighter/internal/db"
	"github.com/dokzlo13/lamplighter/internal/hue"
	"github.com/dokzlo13/lamplighter/internal/ledger"
	"github.com/dokzlo13/lamplighter/internal/pairing"
	"github.com/dokzlo13/lamplighter/internal/session"
)

// Services is a container for everything an invocation needs.
// Fields are exported so tests can substitute collaborators.
type Services struct {
	Store      SessionStore
	Discoverer pairing.Discoverer
	Registrar  pairing.Registrar
	Waiter     pairing.Waiter

	// NewBridge creates the bridge client for an established session.
	NewBridge func(sess session.Session) command.Bridge

	// Ledger is nil when the ledger is disabled; Recorder is then a no-op.
	DB       *db.DB
	Ledger   *ledger.Ledger
	Recorder ledger.Recorder
}

// SessionStore loads and saves the persisted session.
type SessionStore interface {
	Load() (session.Session, error)
	Save(sess session.Session) error
	Path() string
}

// NewServices creates the production services from configuration.
func NewServices(cfg *config.Config, paths config.Paths) (*Services, error) {
	hueOpts := hue.Options{
		Timeout:      cfg.Hue.Timeout.Duration(),
		RateLimitRPS: cfg.Hue.RateLimitRPS,
	}

	var sources []hue.Source
	if cfg.Discovery.UseMDNS() {
		sources = append(sources, hue.MDNSSource{Timeout: cfg.Discovery.Timeout.Duration()})
	}
	if cfg.Discovery.UseCloud() {
		sources = append(sources, hue.CloudSource{})
	}

	s := &Services{
		Store:      session.NewStore(paths.Session),
		Discoverer: hue.NewDiscoverer(sources...),
		Registrar:  hue.Registrar{Options: hueOpts},
		Waiter:     pairing.Sleep,
		NewBridge: func(sess session.Session) command.Bridge {
			return hue.NewClient(sess.BridgeAddress, sess.Credential, hueOpts)
		},
		Recorder: ledger.Nop{},
	}

	if cfg.Ledger.IsEnabled() {
		path := cfg.Ledger.Path
		if path == "" {
			path = paths.Ledger
		}
		database, err := db.Open(path)
		if err != nil {
			// The ledger is an audit aid; commands still work without it.
			log.Warn().Err(err).Str("path", path).Msg("Ledger unavailable")
		} else {
			s.DB = database
			s.Ledger = ledger.New(database.DB)
			s.Recorder = s.Ledger

			if n, err := s.Ledger.DeleteOlderThan(context.Background(), cfg.Ledger.Retention.Duration()); err != nil {
				log.Warn().Err(err).Msg("Failed to prune ledger")
			} else if n > 0 {
				log.Debug().Int64("deleted", n).Msg("Pruned ledger")
			}
		}
	}

	return s, nil
}

// Close releases resources held by the services.
func (s *Services) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
