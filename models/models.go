package models

import (
	"encoding/json"
	"time"
)

const (
	RoleCitizen   = "citizen"
	RoleAuthority = "authority"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	FullName     string    `json:"full_name"`
	AuthorityID  *int64    `json:"authority_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
	FullName    string `json:"full_name"`
	AuthorityID *int64 `json:"authority_id"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Authority struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	ContactEmail *string `json:"contact_email"`
}

type Comment struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"comment_text"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Hotspot struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Severity    string  `json:"severity"`
	Description *string `json:"description"`
}

type PredictedHotspot struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Lat               float64         `json:"lat"`
	Lng               float64         `json:"lng"`
	Severity          string          `json:"severity"`
	Confidence        float64         `json:"confidence"`
	PredictedRainfall float64         `json:"predicted_rainfall"`
	RiskFactors       json.RawMessage `json:"risk_factors"`
	RadiusMeters      int             `json:"radius_meters"`
	ModelVersion      string          `json:"-"`
}

type PredictionResponse struct {
	Date         string             `json:"date"`
	Hotspots     []PredictedHotspot `json:"hotspots"`
	ModelVersion *string            `json:"model_version"`
	TotalCount   int                `json:"total_count"`
}

type HistoricalIncident struct {
	ID           int64     `json:"id"`
	IncidentDate time.Time `json:"incident_date"`
	LocationName string    `json:"location_name"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Severity     string    `json:"severity"`
	RainfallMM   *float64  `json:"rainfall_mm"`
	Description  *string   `json:"description"`
}

type IncidentFilter struct {
	StartDate string
	EndDate   string
	Severity  string
}

type RainfallStation struct {
	Name        string   `json:"name"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Rainfall24h float64  `json:"rainfall_24h"`
	Rainfall1h  *float64 `json:"rainfall_1h"`
	Rainfall3h  *float64 `json:"rainfall_3h"`
	Rainfall6h  *float64 `json:"rainfall_6h"`
	Temperature *float64 `json:"temperature"`
	Humidity    *int     `json:"humidity"`
}

type ModelMetrics struct {
	CurrentVersion    string          `json:"current_version"`
	Accuracy          float64         `json:"accuracy"`
	Precision         float64         `json:"precision"`
	Recall            float64         `json:"recall"`
	F1Score           float64         `json:"f1_score"`
	TrainingSamples   int             `json:"training_samples"`
	LastTrained       time.Time       `json:"last_trained"`
	FeatureImportance json.RawMessage `json:"feature_importance"`
	DataSources       json.RawMessage `json:"data_sources"`
}

type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

type DateCount struct {
	PredictionDate string `json:"prediction_date"`
	HotspotCount   int    `json:"hotspot_count"`
}

type PredictionStats struct {
	TotalPredictionDates int             `json:"total_prediction_dates"`
	SeverityBreakdown    []SeverityCount `json:"severity_breakdown"`
	RecentPredictions    []DateCount     `json:"recent_predictions"`
}

type RainfallWarning struct {
	Date   string   `json:"date"`
	Risk   string   `json:"risk"`
	Areas  []string `json:"areas"`
	Advice string   `json:"advice"`
}

// MapPoint is a single report or a cluster of reports on the map.
// For a cluster, Severity is the worst member severity and Active counts the
// members that are not Resolved; ReportID and Status are only set on single
// reports.
type MapPoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Count    int64   `json:"count"`
	Active   int64   `json:"active"`
	ReportID int64   `json:"report_id,omitempty"`
	Severity string  `json:"severity,omitempty"`
	Status   string  `json:"status,omitempty"`
}

type ViewPort struct {
	LatMin float64 `form:"latmin"`
	LngMin float64 `form:"lngmin"`
	LatMax float64 `form:"latmax"`
	LngMax float64 `form:"lngmax"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}
