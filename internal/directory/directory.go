// Package directory resolves human supplied light names to bridge ids.
package directory

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/hue"
)

// Lister fetches the live light listing from the bridge.
type Lister interface {
	GetLights(ctx context.Context) ([]hue.Light, error)
}

// Resolution is the result of a name lookup.
// FetchErr is set when the listing itself could not be fetched; such a
// lookup is reported as not found.
type Resolution struct {
	ID       int
	Found    bool
	FetchErr error
}

// Find returns the id of the first light whose name matches
// case-insensitively, in listing order. Duplicate names resolve to the
// earliest entry without warning.
func Find(lights []hue.Light, name string) (int, bool) {
	for _, l := range lights {
		if strings.EqualFold(l.Name, name) {
			return l.ID, true
		}
	}
	return 0, false
}

// Resolver looks names up against a fresh listing on every call.
type Resolver struct {
	lister Lister
}

// NewResolver creates a resolver over lister.
func NewResolver(lister Lister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve fetches the listing and finds name in it.
func (r *Resolver) Resolve(ctx context.Context, name string) Resolution {
	lights, err := r.lister.GetLights(ctx)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Error getting lights")
		return Resolution{FetchErr: err}
	}

	id, ok := Find(lights, name)
	if !ok {
		log.Debug().Str("name", name).Int("lights", len(lights)).Msg("No light matches name")
		return Resolution{}
	}
	return Resolution{ID: id, Found: true}
}
