package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/geo"
	"waterlog/models"
)

// memStore applies the same box, time and status rules as the SQL query.
type memStore struct {
	reports []models.Report
	err     error
	box     geo.Box
	since   time.Time
}

func (s *memStore) FindUnresolvedInBox(_ context.Context, box geo.Box, since time.Time) (*models.Report, error) {
	s.box, s.since = box, since
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.reports {
		r := &s.reports[i]
		if box.Contains(r.Lat, r.Lng) && r.CreatedAt.After(since) && r.Status != models.StatusResolved {
			return r, nil
		}
	}
	return nil, nil
}

func TestFindDuplicate(t *testing.T) {
	now := time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC)
	existing := func(lat, lng float64, age time.Duration, status models.Status) models.Report {
		return models.Report{ID: 1, Lat: lat, Lng: lng, CreatedAt: now.Add(-age), Status: status}
	}

	testCases := []struct {
		name     string
		existing models.Report
		lat, lng float64
		want     bool
	}{
		{"same spot one hour later", existing(28.6328, 77.2250, time.Hour, models.StatusOpen), 28.6328, 77.2250, true},
		{"within tolerance", existing(28.6328, 77.2250, time.Hour, models.StatusOpen), 28.63299, 77.22519, true},
		{"in progress still counts", existing(28.6328, 77.2250, time.Hour, models.StatusInProgress), 28.6328, 77.2250, true},
		{"outside tolerance", existing(28.6328, 77.2250, time.Hour, models.StatusOpen), 28.6331, 77.2250, false},
		{"older than window", existing(28.6328, 77.2250, 13*time.Hour, models.StatusOpen), 28.6328, 77.2250, false},
		{"resolved report", existing(28.6328, 77.2250, time.Hour, models.StatusResolved), 28.6328, 77.2250, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{reports: []models.Report{tc.existing}}
			g := NewGuard(store, WithClock(func() time.Time { return now }))

			r, err := g.FindDuplicate(context.Background(), tc.lat, tc.lng)
			require.NoError(t, err)
			if tc.want {
				require.NotNil(t, r)
				assert.Equal(t, int64(1), r.ID)
			} else {
				assert.Nil(t, r)
			}
			assert.Equal(t, now.Add(-DefaultWindow), store.since)
		})
	}
}

func TestFindDuplicateBox(t *testing.T) {
	store := &memStore{}
	g := NewGuard(store, WithTolerance(0.001), WithWindow(time.Hour))

	_, err := g.FindDuplicate(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.InDelta(t, 9.999, store.box.LatMin, 1e-9)
	assert.InDelta(t, 10.001, store.box.LatMax, 1e-9)
	assert.InDelta(t, 19.999, store.box.LngMin, 1e-9)
	assert.InDelta(t, 20.001, store.box.LngMax, 1e-9)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), store.since, time.Minute)
}

func TestFindDuplicateStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	g := NewGuard(&memStore{err: boom})

	r, err := g.FindDuplicate(context.Background(), 28.6, 77.2)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, boom)
}
