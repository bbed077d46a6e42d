package dedup

import (
	"context"
	"fmt"
	"time"

	"waterlog/geo"
	"waterlog/models"
)

const (
	// DefaultTolerance is the half-width of the duplicate box in degrees (~20m).
	DefaultTolerance = 0.0002
	// DefaultWindow is how far back an unresolved report counts as a duplicate.
	DefaultWindow = 12 * time.Hour
)

// Store is the read query the guard needs from the report store.
type Store interface {
	// FindUnresolvedInBox returns any report not Resolved, created after since,
	// whose coordinates fall inside box. It returns nil when there is none.
	FindUnresolvedInBox(ctx context.Context, box geo.Box, since time.Time) (*models.Report, error)
}

// Guard detects repeat reports of one incident by space, time and status.
// The check and the later insert are not atomic: two simultaneous submissions
// to the same spot can both pass.
type Guard struct {
	store     Store
	tolerance float64
	window    time.Duration
	now       func() time.Time
}

type Option func(*Guard)

func WithTolerance(deg float64) Option {
	return func(g *Guard) { g.tolerance = deg }
}

func WithWindow(d time.Duration) Option {
	return func(g *Guard) { g.window = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store Store, opts ...Option) *Guard {
	g := &Guard{
		store:     store,
		tolerance: DefaultTolerance,
		window:    DefaultWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FindDuplicate returns an unresolved report inside the tolerance box around
// (lat, lng) created within the window, or nil if there is none.
func (g *Guard) FindDuplicate(ctx context.Context, lat, lng float64) (*models.Report, error) {
	box := geo.BoxAround(lat, lng, g.tolerance)
	since := g.now().Add(-g.window)
	r, err := g.store.FindUnresolvedInBox(ctx, box, since)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	return r, nil
}
