package database

import (
	"context"
	"database/sql"
	"fmt"

	"waterlog/common"
	"waterlog/models"
)

// Upvote records a user's upvote. Repeat upvotes are ignored.
func (d *Database) Upvote(ctx context.Context, reportID, userID int64) error {
	res, err := d.db.ExecContext(ctx,
		"INSERT IGNORE INTO upvotes (report_id, user_id) VALUES (?, ?)", reportID, userID)
	common.LogResult("Upvote", res, err, false)
	if err != nil {
		return fmt.Errorf("failed to upvote report %d: %w", reportID, err)
	}
	return nil
}

func (d *Database) CountUpvotes(ctx context.Context, reportID int64) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM upvotes WHERE report_id = ?", reportID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return n, nil
}

func (d *Database) AddComment(ctx context.Context, reportID, userID int64, text string) (*models.Comment, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO comments (report_id, user_id, comment_text) VALUES (?, ?, ?)", reportID, userID, text)
	common.LogResult("AddComment", res, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read comment id: %w", err)
	}
	c := models.Comment{ID: id, ReportID: reportID, UserID: userID, Text: text}
	if err := d.db.QueryRowContext(ctx,
		"SELECT created_at FROM comments WHERE id = ?", id).Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to read comment: %w", err)
	}
	return &c, nil
}

// ListComments returns a report's comments oldest first with author names.
func (d *Database) ListComments(ctx context.Context, reportID int64) ([]models.Comment, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.id, c.report_id, c.user_id, c.comment_text, c.created_at, u.full_name
		FROM comments c JOIN users u ON c.user_id = u.id
		WHERE c.report_id = ?
		ORDER BY c.created_at ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.UserID, &c.Text, &c.CreatedAt, &c.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (d *Database) ListHotspots(ctx context.Context) ([]models.Hotspot, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name, lat, lng, severity, description FROM hotspots")
	if err != nil {
		return nil, fmt.Errorf("failed to list hotspots: %w", err)
	}
	defer rows.Close()

	hotspots := []models.Hotspot{}
	for rows.Next() {
		var (
			h    models.Hotspot
			desc sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Lat, &h.Lng, &h.Severity, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan hotspot: %w", err)
		}
		h.Description = nullString(desc)
		hotspots = append(hotspots, h)
	}
	return hotspots, rows.Err()
}
