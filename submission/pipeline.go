package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"waterlog/geo"
	"waterlog/metrics"
	"waterlog/models"
)

type Moderator interface {
	Moderate(ctx context.Context, title, description string) models.Verdict
}

type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, lat, lng float64) (*models.Report, error)
}

type ReportStore interface {
	InsertReport(ctx context.Context, sub models.Submission) (*models.Report, error)
}

// FileRemover deletes an upload by key.
type FileRemover interface {
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	Notify(eventType string, r *models.Report)
}

// Pipeline admits a submission only after it passes moderation and the
// duplicate check, in that order. Rejected submissions lose their upload.
type Pipeline struct {
	moderator Moderator
	guard     DuplicateFinder
	store     ReportStore
	files     FileRemover
	notifier  Notifier
}

type Option func(*Pipeline)

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func NewPipeline(moderator Moderator, guard DuplicateFinder, store ReportStore, files FileRemover, opts ...Option) *Pipeline {
	p := &Pipeline{moderator: moderator, guard: guard, store: store, files: files}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs a submission through moderation, the duplicate check and the
// insert. It returns *RejectionError, *DuplicateError, or a storage error.
func (p *Pipeline) Submit(ctx context.Context, sub models.Submission) (*models.Report, error) {
	start := time.Now()
	logger := log.WithFields(log.Fields{
		"reporter_id": sub.ReporterID,
		"lat":         sub.Lat,
		"lng":         sub.Lng,
	})

	outcome := "error"
	defer func() {
		metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
		metrics.SubmissionDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	verdict := p.moderator.Moderate(ctx, sub.Title, sub.Description)
	if !verdict.Accepted {
		outcome = "rejected_content"
		logger.Infof("Report rejected by moderation: %s", verdict.Reason)
		p.discardUpload(ctx, sub)
		return nil, &RejectionError{Reason: verdict.Reason}
	}

	existing, err := p.guard.FindDuplicate(ctx, sub.Lat, sub.Lng)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		outcome = "rejected_duplicate"
		logger.WithField("distance_m", geo.DistanceMeters(sub.Lat, sub.Lng, existing.Lat, existing.Lng)).
			Infof("Duplicate of report %d", existing.ID)
		p.discardUpload(ctx, sub)
		return nil, &DuplicateError{ExistingReportID: existing.ID}
	}

	report, err := p.store.InsertReport(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}
	outcome = "persisted"
	logger.WithField("report_id", report.ID).Info("Report persisted")

	if p.notifier != nil {
		p.notifier.Notify(models.EventReportCreated, report)
	}
	return report, nil
}

// discardUpload removes the upload of a rejected submission. Failures are
// logged only; the rejection stands either way.
func (p *Pipeline) discardUpload(ctx context.Context, sub models.Submission) {
	if sub.Image == nil || p.files == nil {
		return
	}
	if err := p.files.Delete(context.WithoutCancel(ctx), sub.Image.Key); err != nil {
		metrics.UploadCleanupErrorsTotal.Inc()
		log.Errorf("Failed to delete rejected upload %s: %v", sub.Image.Key, err)
	}
}
