package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/dedup"
	"waterlog/geo"
	"waterlog/models"
	"waterlog/moderation"
)

// memStore is an in-memory report store with the same duplicate semantics as
// the SQL query.
type memStore struct {
	mu        sync.Mutex
	now       func() time.Time
	reports   []models.Report
	insertErr error
	findErr   error
}

func (s *memStore) FindUnresolvedInBox(_ context.Context, box geo.Box, since time.Time) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for i := range s.reports {
		r := s.reports[i]
		if box.Contains(r.Lat, r.Lng) && r.CreatedAt.After(since) && r.Status != models.StatusResolved {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertReport(_ context.Context, sub models.Submission) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	r := models.Report{
		ID:                  int64(len(s.reports) + 1),
		ReporterID:          sub.ReporterID,
		Title:               sub.Title,
		Description:         sub.Description,
		Severity:            sub.Severity,
		Status:              models.StatusOpen,
		AssignedAuthorityID: sub.AssignedAuthorityID,
		Lat:                 sub.Lat,
		Lng:                 sub.Lng,
		CreatedAt:           s.now(),
	}
	if sub.Image != nil {
		r.ImageURL = &sub.Image.URL
	}
	s.reports = append(s.reports, r)
	return &r, nil
}

type fakeFiles struct {
	deleted []string
	err     error
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

// scriptedLLM answers every prompt with a fixed reply or error.
type scriptedLLM struct {
	reply string
	err   error
}

func (c scriptedLLM) Generate(context.Context, string) (string, error) { return c.reply, c.err }
func (c scriptedLLM) SourceName() string                               { return "scripted" }

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(eventType string, _ *models.Report) {
	n.events = append(n.events, eventType)
}

var now = time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	files    *fakeFiles
	notifier *recordingNotifier
	pipeline *Pipeline
}

func newFixture(llmReply string, llmErr error) *fixture {
	f := &fixture{
		store:    &memStore{now: func() time.Time { return now }},
		files:    &fakeFiles{},
		notifier: &recordingNotifier{},
	}
	moderator := moderation.NewModerator(scriptedLLM{reply: llmReply, err: llmErr}, time.Second)
	guard := dedup.NewGuard(f.store, dedup.WithClock(func() time.Time { return now }))
	f.pipeline = NewPipeline(moderator, guard, f.store, f.files, WithNotifier(f.notifier))
	return f
}

const acceptReply = "```json\n{\"is_valid\": true, \"reason\": \"\"}\n```"

func civicCentre() models.Submission {
	return models.Submission{
		Title:               "Waterlogging near Civic Centre",
		Description:         "Large puddle blocking path",
		Severity:            models.SeverityMedium,
		Lat:                 28.6328,
		Lng:                 77.2250,
		ReporterID:          7,
		AssignedAuthorityID: 1,
		Image:               &models.StoredFile{Key: "1721066400000.jpg", URL: "/uploads/1721066400000.jpg"},
	}
}

func TestSubmitPersistsAcceptedReport(t *testing.T) {
	f := newFixture(acceptReply, nil)

	r, err := f.pipeline.Submit(context.Background(), civicCentre())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, r.Status)
	assert.Equal(t, "Waterlogging near Civic Centre", r.Title)
	assert.Len(t, f.store.reports, 1)
	assert.Empty(t, f.files.deleted)
	assert.Equal(t, []string{models.EventReportCreated}, f.notifier.events)
}

func TestSubmitRejectsDuplicateWithinWindow(t *testing.T) {
	f := newFixture(acceptReply, nil)
	first, err := f.pipeline.Submit(context.Background(), civicCentre())
	require.NoError(t, err)

	// One hour later the first report is still Open.
	f.store.reports[0].CreatedAt = now.Add(-time.Hour)

	second := civicCentre()
	second.Image = &models.StoredFile{Key: "second.jpg", URL: "/uploads/second.jpg"}
	_, err = f.pipeline.Submit(context.Background(), second)

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, first.ID, dup.ExistingReportID)
	assert.Len(t, f.store.reports, 1, "no second report for the same incident")
	assert.Equal(t, []string{"second.jpg"}, f.files.deleted)
}

func TestSubmitRejectsGibberish(t *testing.T) {
	f := newFixture(`{"is_valid": false, "reason": "gibberish"}`, nil)
	sub := civicCentre()
	sub.Title = "asdkjaskjd"

	r, err := f.pipeline.Submit(context.Background(), sub)
	assert.Nil(t, r)

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, ErrContentRejected)
	assert.Equal(t, "gibberish", rej.Reason)
	assert.Empty(t, f.store.reports)
	assert.Equal(t, []string{sub.Image.Key}, f.files.deleted)
	assert.Empty(t, f.notifier.events)
}

func TestSubmitFailsOpenWhenModelUnavailable(t *testing.T) {
	f := newFixture("", errors.New("all models failed"))

	r, err := f.pipeline.Submit(context.Background(), civicCentre())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, r.Status)
}

func TestSubmitCleanupFailureKeepsRejection(t *testing.T) {
	f := newFixture(`{"is_valid": false, "reason": "abusive"}`, nil)
	f.files.err = errors.New("permission denied")

	_, err := f.pipeline.Submit(context.Background(), civicCentre())
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "abusive", rej.Reason)
}

func TestSubmitRejectionWithoutUpload(t *testing.T) {
	f := newFixture(`{"is_valid": false, "reason": "spam"}`, nil)
	sub := civicCentre()
	sub.Image = nil

	_, err := f.pipeline.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrContentRejected)
	assert.Empty(t, f.files.deleted)
}

func TestSubmitAcceptsOutsideWindowOrBox(t *testing.T) {
	testCases := []struct {
		name    string
		age     time.Duration
		status  models.Status
		dLat    float64
		wantDup bool
	}{
		{name: "One hour old", age: time.Hour, status: models.StatusOpen, wantDup: true},
		{name: "In progress counts", age: time.Hour, status: models.StatusInProgress, wantDup: true},
		{name: "Thirteen hours old", age: 13 * time.Hour, status: models.StatusOpen},
		{name: "Resolved", age: time.Hour, status: models.StatusResolved},
		{name: "Outside box", age: time.Hour, status: models.StatusOpen, dLat: 0.00025},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(acceptReply, nil)
			f.store.reports = []models.Report{{
				ID: 99, Lat: 28.6328, Lng: 77.2250, Status: tc.status, CreatedAt: now.Add(-tc.age),
			}}
			sub := civicCentre()
			sub.Lat += tc.dLat

			_, err := f.pipeline.Submit(context.Background(), sub)
			if tc.wantDup {
				assert.ErrorIs(t, err, ErrDuplicate)
				assert.Len(t, f.store.reports, 1)
			} else {
				assert.NoError(t, err)
				assert.Len(t, f.store.reports, 2)
			}
		})
	}
}

func TestSubmitStorageFailures(t *testing.T) {
	t.Run("duplicate query", func(t *testing.T) {
		f := newFixture(acceptReply, nil)
		f.store.findErr = errors.New("connection refused")
		_, err := f.pipeline.Submit(context.Background(), civicCentre())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
		assert.NotErrorIs(t, err, ErrContentRejected)
	})
	t.Run("insert", func(t *testing.T) {
		f := newFixture(acceptReply, nil)
		f.store.insertErr = errors.New("deadlock")
		_, err := f.pipeline.Submit(context.Background(), civicCentre())
		require.Error(t, err)
		assert.Empty(t, f.notifier.events)
	})
}
