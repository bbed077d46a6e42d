package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"waterlog/common"
	"waterlog/geo"
	"waterlog/models"
)

const reportSelect = `
	SELECT r.id, r.reporter_id, r.title, r.description, r.severity, r.status,
		r.assigned_authority_id, r.lat, r.lng, r.image_url, r.resolution_note,
		r.resolution_proof_image, r.resolved_at, r.created_at,
		COALESCE(u.full_name, ''), COALESCE(a.name, ''),
		(SELECT COUNT(*) FROM upvotes v WHERE v.report_id = r.id)
	FROM reports r
	LEFT JOIN users u ON r.reporter_id = u.id
	LEFT JOIN authorities a ON r.assigned_authority_id = a.id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*models.Report, error) {
	var (
		r                          models.Report
		imageURL, note, proofImage sql.NullString
		resolvedAt                 sql.NullTime
	)
	err := s.Scan(&r.ID, &r.ReporterID, &r.Title, &r.Description, &r.Severity, &r.Status,
		&r.AssignedAuthorityID, &r.Lat, &r.Lng, &imageURL, &note,
		&proofImage, &resolvedAt, &r.CreatedAt,
		&r.ReporterName, &r.AuthorityName, &r.Upvotes)
	if err != nil {
		return nil, err
	}
	r.ImageURL = nullString(imageURL)
	r.ResolutionNote = nullString(note)
	r.ResolutionProofImage = nullString(proofImage)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// FindUnresolvedInBox returns the first report inside box created after since
// that is not Resolved, or nil.
func (d *Database) FindUnresolvedInBox(ctx context.Context, box geo.Box, since time.Time) (*models.Report, error) {
	row := d.db.QueryRowContext(ctx, reportSelect+`
		WHERE r.lat BETWEEN ? AND ?
			AND r.lng BETWEEN ? AND ?
			AND r.created_at > ?
			AND r.status <> 'Resolved'
		LIMIT 1`,
		box.LatMin, box.LatMax, box.LngMin, box.LngMax, since)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby reports: %w", err)
	}
	return r, nil
}

// InsertReport persists an accepted submission with status Open in a single
// insert and returns the stored row.
func (d *Database) InsertReport(ctx context.Context, sub models.Submission) (*models.Report, error) {
	var imageURL interface{}
	if sub.Image != nil {
		imageURL = sub.Image.URL
	}
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO reports (reporter_id, title, description, severity, status,
			assigned_authority_id, lat, lng, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ReporterID, sub.Title, sub.Description, sub.Severity, models.StatusOpen,
		sub.AssignedAuthorityID, sub.Lat, sub.Lng, imageURL)
	common.LogResult("InsertReport", res, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read report id: %w", err)
	}
	return d.GetReport(ctx, id)
}

func (d *Database) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	r, err := scanReport(d.db.QueryRowContext(ctx, reportSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}
	return r, nil
}

// ListReports returns reports newest first, optionally narrowed by authority
// and status.
func (d *Database) ListReports(ctx context.Context, f models.ReportFilter) ([]models.Report, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.AuthorityID != 0 {
		where = append(where, "r.assigned_authority_id = ?")
		args = append(args, f.AuthorityID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	query := reportSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// UpdateStatus moves a report forward to next. Resolution goes through
// ResolveReport so its metadata is written together with the status.
func (d *Database) UpdateStatus(ctx context.Context, id int64, next models.Status) (*models.Report, error) {
	if next == models.StatusResolved {
		return nil, ErrInvalidTransition
	}
	cur, err := d.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	// The status guard makes a concurrent change lose instead of overwrite.
	res, err := d.db.ExecContext(ctx,
		"UPDATE reports SET status = ? WHERE id = ? AND status = ?", next, id, cur.Status)
	common.LogResult("UpdateStatus", res, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to update report status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrInvalidTransition
	}
	return d.GetReport(ctx, id)
}

// ResolveReport sets a report Resolved and records its resolution metadata.
// It succeeds at most once per report.
func (d *Database) ResolveReport(ctx context.Context, id int64, res models.Resolution) (*models.Report, error) {
	var proof interface{}
	if res.ProofImage != nil {
		proof = res.ProofImage.URL
	}
	result, err := d.db.ExecContext(ctx, `
		UPDATE reports
		SET status = 'Resolved', resolved_at = ?, resolution_proof_image = ?, resolution_note = ?
		WHERE id = ? AND status <> 'Resolved'`,
		d.now(), proof, res.Note, id)
	common.LogResult("ResolveReport", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve report: %w", err)
	}
	if n == 0 {
		if _, err := d.GetReport(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyResolved
	}
	return d.GetReport(ctx, id)
}

// ReportsInViewport returns one map point per report inside vp.
func (d *Database) ReportsInViewport(ctx context.Context, vp models.ViewPort) ([]models.MapPoint, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, lat, lng, severity, status FROM reports
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		vp.LatMin, vp.LatMax, vp.LngMin, vp.LngMax)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewport reports: %w", err)
	}
	defer rows.Close()

	points := []models.MapPoint{}
	for rows.Next() {
		p := models.MapPoint{Count: 1}
		if err := rows.Scan(&p.ReportID, &p.Lat, &p.Lng, &p.Severity, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan map point: %w", err)
		}
		if models.Status(p.Status).Active() {
			p.Active = 1
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
