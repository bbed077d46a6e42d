package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"waterlog/geo"
	"waterlog/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var testNow = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

func testDatabase() *Database {
	d := NewDatabase(db)
	d.now = func() time.Time { return testNow }
	return d
}

var reportColumns = []string{"id", "reporter_id", "title", "description", "severity", "status",
	"assigned_authority_id", "lat", "lng", "image_url", "resolution_note",
	"resolution_proof_image", "resolved_at", "created_at", "reporter_name", "authority_name", "upvotes"}

func reportRow(id int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows(reportColumns).AddRow(id, 7, "Flooded underpass", "Knee deep water near the metro gate",
		"High", status, 2, 28.6328, 77.2250, "/uploads/1.jpg", nil, nil, nil, testNow, "Asha", "PWD", 3)
}

func TestFindUnresolvedInBox(t *testing.T) {
	box := geo.BoxAround(28.6328, 77.2250, 0.0002)
	since := testNow.Add(-12 * time.Hour)
	query := regexp.QuoteMeta("WHERE r.lat BETWEEN ? AND ?") + ".*" + regexp.QuoteMeta("r.status <> 'Resolved'")

	it(func() {
		testCases := []struct {
			name   string
			rows   *sqlmock.Rows
			err    error
			wantID int64
			isErr  bool
		}{
			{
				name:   "Match found",
				rows:   reportRow(42, "Open"),
				wantID: 42,
			}, {
				name: "No match",
				rows: sqlmock.NewRows(reportColumns),
			}, {
				name:  "Query error",
				err:   errors.New("connection reset"),
				isErr: true,
			},
		}

		for _, tc := range testCases {
			setUp()
			e := mock.ExpectQuery(query).
				WithArgs(box.LatMin, box.LatMax, box.LngMin, box.LngMax, since)
			if tc.err != nil {
				e.WillReturnError(tc.err)
			} else {
				e.WillReturnRows(tc.rows)
			}

			r, err := testDatabase().FindUnresolvedInBox(context.Background(), box, since)
			if tc.isErr != (err != nil) {
				t.Errorf("%s: expected error %v, got %v", tc.name, tc.isErr, err)
			}
			if tc.wantID == 0 && r != nil {
				t.Errorf("%s: expected no report, got %d", tc.name, r.ID)
			}
			if tc.wantID != 0 {
				if r == nil {
					t.Fatalf("%s: expected report %d, got nil", tc.name, tc.wantID)
				}
				if r.ID != tc.wantID || r.Status != models.StatusOpen || r.Upvotes != 3 {
					t.Errorf("%s: unexpected report %+v", tc.name, r)
				}
				if r.ImageURL == nil || *r.ImageURL != "/uploads/1.jpg" {
					t.Errorf("%s: unexpected image url %v", tc.name, r.ImageURL)
				}
				if r.ResolvedAt != nil || r.ResolutionNote != nil {
					t.Errorf("%s: unexpected resolution fields", tc.name)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", tc.name, err)
			}
			tearDown()
		}
	})
}

func TestReportsInViewport(t *testing.T) {
	vp := models.ViewPort{LatMin: 28.60, LngMin: 77.20, LatMax: 28.66, LngMax: 77.26}
	it(func() {
		rows := sqlmock.NewRows([]string{"id", "lat", "lng", "severity", "status"}).
			AddRow(1, 28.6328, 77.2250, "High", "Open").
			AddRow(2, 28.6330, 77.2251, "Critical", "In Progress").
			AddRow(3, 28.6400, 77.2300, "Low", "Resolved")
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, lat, lng, severity, status FROM reports")).
			WithArgs(vp.LatMin, vp.LatMax, vp.LngMin, vp.LngMax).
			WillReturnRows(rows)

		points, err := testDatabase().ReportsInViewport(context.Background(), vp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []models.MapPoint{
			{Lat: 28.6328, Lng: 77.2250, Count: 1, Active: 1, ReportID: 1, Severity: "High", Status: "Open"},
			{Lat: 28.6330, Lng: 77.2251, Count: 1, Active: 1, ReportID: 2, Severity: "Critical", Status: "In Progress"},
			{Lat: 28.6400, Lng: 77.2300, Count: 1, Active: 0, ReportID: 3, Severity: "Low", Status: "Resolved"},
		}
		if len(points) != len(want) {
			t.Fatalf("expected %d points, got %d", len(want), len(points))
		}
		for i := range want {
			if points[i] != want[i] {
				t.Errorf("point %d: expected %+v, got %+v", i, want[i], points[i])
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestInsertReport(t *testing.T) {
	it(func() {
		sub := models.Submission{
			Title:               "Flooded underpass",
			Description:         "Knee deep water near the metro gate",
			Severity:            models.SeverityHigh,
			Lat:                 28.6328,
			Lng:                 77.2250,
			ReporterID:          7,
			AssignedAuthorityID: 2,
			Image:               &models.StoredFile{Key: "1.jpg", URL: "/uploads/1.jpg"},
		}
		mock.ExpectExec("INSERT INTO reports").
			WithArgs(int64(7), sub.Title, sub.Description, "High", "Open",
				int64(2), 28.6328, 77.2250, "/uploads/1.jpg").
			WillReturnResult(sqlmock.NewResult(42, 1))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).
			WithArgs(int64(42)).
			WillReturnRows(reportRow(42, "Open"))

		r, err := testDatabase().InsertReport(context.Background(), sub)
		if err != nil {
			t.Fatalf("InsertReport: %v", err)
		}
		if r.ID != 42 || r.Status != models.StatusOpen {
			t.Errorf("unexpected report %+v", r)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestInsertReportWithoutImage(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO reports").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
			WillReturnError(errors.New("disk full"))

		_, err := testDatabase().InsertReport(context.Background(), models.Submission{Title: "t"})
		if err == nil {
			t.Fatal("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestResolveReport(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE reports") + ".*" + regexp.QuoteMeta("WHERE id = ? AND status <> 'Resolved'")

	it(func() {
		testCases := []struct {
			name     string
			affected int64
			exists   bool
			wantErr  error
		}{
			{name: "First resolution", affected: 1, exists: true},
			{name: "Already resolved", affected: 0, exists: true, wantErr: ErrAlreadyResolved},
			{name: "Missing report", affected: 0, exists: false, wantErr: ErrNotFound},
		}

		for _, tc := range testCases {
			setUp()
			mock.ExpectExec(update).
				WithArgs(testNow, "/uploads/proof.jpg", "Drain cleared", int64(42)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			rows := sqlmock.NewRows(reportColumns)
			if tc.exists {
				rows = reportRow(42, "Resolved")
			}
			mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(42)).WillReturnRows(rows)

			r, err := testDatabase().ResolveReport(context.Background(), 42, models.Resolution{
				Note:       "Drain cleared",
				ProofImage: &models.StoredFile{URL: "/uploads/proof.jpg"},
			})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("%s: expected error %v, got %v", tc.name, tc.wantErr, err)
			}
			if tc.wantErr == nil && (r == nil || r.Status != models.StatusResolved) {
				t.Errorf("%s: expected resolved report, got %+v", tc.name, r)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", tc.name, err)
			}
			tearDown()
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	it(func() {
		testCases := []struct {
			name    string
			current string
			next    models.Status
			wantErr error
		}{
			{name: "Open to in progress", current: "Open", next: models.StatusInProgress},
			{name: "Backwards", current: "In Progress", next: models.StatusOpen, wantErr: ErrInvalidTransition},
			{name: "Resolve through status", current: "Open", next: models.StatusResolved, wantErr: ErrInvalidTransition},
		}

		for _, tc := range testCases {
			setUp()
			if tc.next != models.StatusResolved {
				mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(42)).
					WillReturnRows(reportRow(42, tc.current))
			}
			if tc.wantErr == nil {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status = ? WHERE id = ? AND status = ?")).
					WithArgs(string(tc.next), int64(42), tc.current).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = ?")).WithArgs(int64(42)).
					WillReturnRows(reportRow(42, string(tc.next)))
			}

			_, err := testDatabase().UpdateStatus(context.Background(), 42, tc.next)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("%s: expected error %v, got %v", tc.name, tc.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", tc.name, err)
			}
			tearDown()
		}
	})
}

func TestListReportsFilters(t *testing.T) {
	it(func() {
		testCases := []struct {
			name   string
			filter models.ReportFilter
			query  string
			args   int
		}{
			{name: "No filter", query: regexp.QuoteMeta("LEFT JOIN authorities a ON r.assigned_authority_id = a.id ORDER BY r.created_at DESC")},
			{name: "Authority", filter: models.ReportFilter{AuthorityID: 2}, query: regexp.QuoteMeta("WHERE r.assigned_authority_id = ? ORDER BY"), args: 1},
			{name: "Both", filter: models.ReportFilter{AuthorityID: 2, Status: models.StatusOpen}, query: regexp.QuoteMeta("WHERE r.assigned_authority_id = ? AND r.status = ? ORDER BY"), args: 2},
		}

		for _, tc := range testCases {
			setUp()
			e := mock.ExpectQuery(tc.query)
			switch tc.args {
			case 1:
				e.WithArgs(int64(2))
			case 2:
				e.WithArgs(int64(2), "Open")
			}
			e.WillReturnRows(reportRow(1, "Open").AddRow(2, 7, "t", "d", "Low", "Open", 2, 1.0, 2.0, nil, nil, nil, nil, testNow, "", "", 0))

			reports, err := testDatabase().ListReports(context.Background(), tc.filter)
			if err != nil {
				t.Errorf("%s: %v", tc.name, err)
			}
			if len(reports) != 2 {
				t.Errorf("%s: expected 2 reports, got %d", tc.name, len(reports))
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", tc.name, err)
			}
			tearDown()
		}
	})
}

func TestUpvoteIsIdempotent(t *testing.T) {
	it(func() {
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO upvotes")).
			WithArgs(int64(42), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		if err := testDatabase().Upvote(context.Background(), 42, 7); err != nil {
			t.Errorf("Upvote: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestPredictionsForDate(t *testing.T) {
	it(func() {
		cols := []string{"id", "name", "lat", "lng", "severity", "confidence_score", "predicted_rainfall_mm",
			"risk_factors", "radius_meters", "model_version"}
		mock.ExpectQuery(regexp.QuoteMeta("FROM predicted_hotspots")).
			WithArgs("2024-07-15").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(1, "Minto Bridge", []byte("28.6340000"), []byte("77.2270000"), "Critical", []byte("0.9100"), []byte("84.50"),
					[]byte(`{"drainage":"poor"}`), 500, "v2.0.0").
				AddRow(2, "ITO", []byte("28.6280000"), []byte("77.2410000"), "High", []byte("0.7000"), []byte("60.00"),
					nil, 300, "v2.0.0"))

		hotspots, err := testDatabase().PredictionsForDate(context.Background(), "2024-07-15")
		if err != nil {
			t.Fatalf("PredictionsForDate: %v", err)
		}
		if len(hotspots) != 2 {
			t.Fatalf("expected 2 hotspots, got %d", len(hotspots))
		}
		if hotspots[0].Confidence != 0.91 || hotspots[0].PredictedRainfall != 84.5 || hotspots[0].Lat != 28.634 {
			t.Errorf("unexpected decimals %+v", hotspots[0])
		}
		if string(hotspots[1].RiskFactors) != "{}" {
			t.Errorf("expected empty risk factors, got %s", hotspots[1].RiskFactors)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestLatestModelMetricsEmpty(t *testing.T) {
	it(func() {
		mock.ExpectQuery(regexp.QuoteMeta("FROM model_metadata")).
			WillReturnRows(sqlmock.NewRows([]string{"model_version"}))
		_, err := testDatabase().LatestModelMetrics(context.Background())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEnsureSchema(t *testing.T) {
	it(func() {
		for range schema {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		if err := testDatabase().EnsureSchema(context.Background()); err != nil {
			t.Errorf("EnsureSchema: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}
