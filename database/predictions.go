package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"waterlog/models"
)

const incidentLimit = 100

func decimalPtr(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func rawJSON(b []byte, empty string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(empty)
	}
	return json.RawMessage(b)
}

// PredictionsForDate returns the predicted hotspots stored for date, most
// confident first.
func (d *Database) PredictionsForDate(ctx context.Context, date string) ([]models.PredictedHotspot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, lat, lng, severity, confidence_score, predicted_rainfall_mm,
			risk_factors, radius_meters, model_version
		FROM predicted_hotspots
		WHERE prediction_date = ?
		ORDER BY confidence_score DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	hotspots := []models.PredictedHotspot{}
	for rows.Next() {
		var (
			h                              models.PredictedHotspot
			lat, lng, confidence, rainfall decimal.Decimal
			risk                           []byte
		)
		if err := rows.Scan(&h.ID, &h.Name, &lat, &lng, &h.Severity, &confidence, &rainfall,
			&risk, &h.RadiusMeters, &h.ModelVersion); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		h.Lat = lat.InexactFloat64()
		h.Lng = lng.InexactFloat64()
		h.Confidence = confidence.InexactFloat64()
		h.PredictedRainfall = rainfall.InexactFloat64()
		h.RiskFactors = rawJSON(risk, "{}")
		hotspots = append(hotspots, h)
	}
	return hotspots, rows.Err()
}

// ListIncidents returns up to 100 historical incidents, newest first.
func (d *Database) ListIncidents(ctx context.Context, f models.IncidentFilter) ([]models.HistoricalIncident, error) {
	where := []string{"1=1"}
	var args []interface{}
	if f.StartDate != "" {
		where = append(where, "incident_date >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		where = append(where, "incident_date <= ?")
		args = append(args, f.EndDate)
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, f.Severity)
	}
	query := fmt.Sprintf(`
		SELECT id, incident_date, location_name, lat, lng, severity, rainfall_mm, description
		FROM historical_incidents
		WHERE %s
		ORDER BY incident_date DESC LIMIT %d`, strings.Join(where, " AND "), incidentLimit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := []models.HistoricalIncident{}
	for rows.Next() {
		var (
			in       models.HistoricalIncident
			lat, lng decimal.Decimal
			rainfall decimal.NullDecimal
			desc     sql.NullString
		)
		if err := rows.Scan(&in.ID, &in.IncidentDate, &in.LocationName, &lat, &lng,
			&in.Severity, &rainfall, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		in.Lat = lat.InexactFloat64()
		in.Lng = lng.InexactFloat64()
		in.RainfallMM = decimalPtr(rainfall)
		in.Description = nullString(desc)
		incidents = append(incidents, in)
	}
	return incidents, rows.Err()
}

// RainfallForDate returns the station readings recorded on date.
func (d *Database) RainfallForDate(ctx context.Context, date string) ([]models.RainfallStation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT station_name, lat, lng, rainfall_24h, rainfall_1h, rainfall_3h, rainfall_6h,
			temperature_c, humidity_percent
		FROM historical_rainfall
		WHERE record_date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query rainfall: %w", err)
	}
	defer rows.Close()

	stations := []models.RainfallStation{}
	for rows.Next() {
		var (
			s                 models.RainfallStation
			lat, lng, r24     decimal.Decimal
			r1, r3, r6, tempC decimal.NullDecimal
			humidity          sql.NullInt64
		)
		if err := rows.Scan(&s.Name, &lat, &lng, &r24, &r1, &r3, &r6, &tempC, &humidity); err != nil {
			return nil, fmt.Errorf("failed to scan rainfall: %w", err)
		}
		s.Lat = lat.InexactFloat64()
		s.Lng = lng.InexactFloat64()
		s.Rainfall24h = r24.InexactFloat64()
		s.Rainfall1h = decimalPtr(r1)
		s.Rainfall3h = decimalPtr(r3)
		s.Rainfall6h = decimalPtr(r6)
		s.Temperature = decimalPtr(tempC)
		if humidity.Valid {
			h := int(humidity.Int64)
			s.Humidity = &h
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// LatestModelMetrics returns the most recently trained model's metadata, or
// ErrNotFound when no model has been recorded.
func (d *Database) LatestModelMetrics(ctx context.Context) (*models.ModelMetrics, error) {
	var (
		m                  models.ModelMetrics
		acc, prec, rec, f1 decimal.NullDecimal
		samples            sql.NullInt64
		features, sources  []byte
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT model_version, accuracy, precision_score, recall_score, f1_score,
			training_samples, training_date, feature_importance, data_sources
		FROM model_metadata
		ORDER BY training_date DESC LIMIT 1`).
		Scan(&m.CurrentVersion, &acc, &prec, &rec, &f1, &samples, &m.LastTrained, &features, &sources)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model metadata: %w", err)
	}
	m.Accuracy = acc.Decimal.InexactFloat64()
	m.Precision = prec.Decimal.InexactFloat64()
	m.Recall = rec.Decimal.InexactFloat64()
	m.F1Score = f1.Decimal.InexactFloat64()
	m.TrainingSamples = int(samples.Int64)
	m.FeatureImportance = rawJSON(features, "null")
	m.DataSources = rawJSON(sources, "null")
	return &m, nil
}

// PredictionStats summarises stored predictions: distinct dates, counts per
// severity and the ten most recent dates.
func (d *Database) PredictionStats(ctx context.Context) (*models.PredictionStats, error) {
	stats := models.PredictionStats{
		SeverityBreakdown: []models.SeverityCount{},
		RecentPredictions: []models.DateCount{},
	}
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT prediction_date) FROM predicted_hotspots").
		Scan(&stats.TotalPredictionDates); err != nil {
		return nil, fmt.Errorf("failed to count prediction dates: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT severity, COUNT(*) FROM predicted_hotspots GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to query severity breakdown: %w", err)
	}
	for rows.Next() {
		var sc models.SeverityCount
		if err := rows.Scan(&sc.Severity, &sc.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan severity breakdown: %w", err)
		}
		stats.SeverityBreakdown = append(stats.SeverityBreakdown, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.db.QueryContext(ctx, `
		SELECT DATE_FORMAT(prediction_date, '%Y-%m-%d'), COUNT(*)
		FROM predicted_hotspots
		GROUP BY prediction_date
		ORDER BY prediction_date DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent predictions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dc models.DateCount
		if err := rows.Scan(&dc.PredictionDate, &dc.HotspotCount); err != nil {
			return nil, fmt.Errorf("failed to scan recent predictions: %w", err)
		}
		stats.RecentPredictions = append(stats.RecentPredictions, dc)
	}
	return &stats, rows.Err()
}
