package handlers

import (
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"

	"waterlog/database"
	"waterlog/models"
	"waterlog/prediction"
)

func (h *Handlers) ListAuthorities(c *gin.Context) {
	authorities, err := h.Store.ListAuthorities(c.Request.Context())
	if err != nil {
		storeError(c, err, "Failed to list authorities")
		return
	}
	c.JSON(http.StatusOK, authorities)
}

func (h *Handlers) ListHotspots(c *gin.Context) {
	hotspots, err := h.Store.ListHotspots(c.Request.Context())
	if err != nil {
		storeError(c, err, "Failed to list hotspots")
		return
	}
	c.JSON(http.StatusOK, hotspots)
}

// HotspotsGeoJSON serves known hotspots as a GeoJSON FeatureCollection.
func (h *Handlers) HotspotsGeoJSON(c *gin.Context) {
	hotspots, err := h.Store.ListHotspots(c.Request.Context())
	if err != nil {
		storeError(c, err, "Failed to list hotspots")
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, hs := range hotspots {
		f := geojson.NewPointFeature([]float64{hs.Lng, hs.Lat})
		f.ID = hs.ID
		f.SetProperty("name", hs.Name)
		f.SetProperty("severity", hs.Severity)
		if hs.Description != nil {
			f.SetProperty("description", *hs.Description)
		}
		fc.AddFeature(f)
	}
	c.JSON(http.StatusOK, fc)
}

// PredictionsForDate returns the predicted hotspots for :date, generating them
// on first request. ?format=geojson returns a FeatureCollection instead.
func (h *Handlers) PredictionsForDate(c *gin.Context) {
	date := c.Param("date")
	resp, err := h.Predictions.ForDate(c.Request.Context(), date)
	if errors.Is(err, prediction.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		storeError(c, err, "Failed to fetch predictions")
		return
	}
	if c.Query("format") == "geojson" {
		c.JSON(http.StatusOK, predictionsGeoJSON(resp))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func predictionsGeoJSON(resp *models.PredictionResponse) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, hs := range resp.Hotspots {
		f := geojson.NewPointFeature([]float64{hs.Lng, hs.Lat})
		f.ID = hs.ID
		f.SetProperty("name", hs.Name)
		f.SetProperty("severity", hs.Severity)
		f.SetProperty("confidence", hs.Confidence)
		f.SetProperty("predicted_rainfall", hs.PredictedRainfall)
		f.SetProperty("radius_meters", hs.RadiusMeters)
		fc.AddFeature(f)
	}
	return fc
}

type generateRequest struct {
	Date string `json:"date"`
}

// GeneratePredictions reruns the prediction script for a date.
func (h *Handlers) GeneratePredictions(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date is required"})
		return
	}
	output, err := h.Predictions.Generate(c.Request.Context(), req.Date)
	if errors.Is(err, prediction.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var scriptErr *prediction.ScriptError
	if errors.As(err, &scriptErr) {
		log.Errorf("Prediction generation for %s failed: %v", req.Date, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Prediction generation failed",
			"details": scriptErr.Stderr,
		})
		return
	}
	if err != nil {
		log.Errorf("Prediction generation for %s failed: %v", req.Date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Predictions generated for " + req.Date,
		"output":  output,
	})
}

func (h *Handlers) PredictionStats(c *gin.Context) {
	stats, err := h.Store.PredictionStats(c.Request.Context())
	if err != nil {
		storeError(c, err, "Failed to fetch prediction stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) HistoricalIncidents(c *gin.Context) {
	f := models.IncidentFilter{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Severity:  c.Query("severity"),
	}
	for _, d := range []string{f.StartDate, f.EndDate} {
		if d != "" && prediction.ValidateDate(d) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
			return
		}
	}
	incidents, err := h.Store.ListIncidents(c.Request.Context(), f)
	if err != nil {
		storeError(c, err, "Failed to fetch historical incidents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "total_count": len(incidents)})
}

func (h *Handlers) RainfallForDate(c *gin.Context) {
	date := c.Param("date")
	if err := prediction.ValidateDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stations, err := h.Store.RainfallForDate(c.Request.Context(), date)
	if err != nil {
		storeError(c, err, "Failed to fetch rainfall")
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "stations": stations, "total_stations": len(stations)})
}

const defaultModelVersion = "v2.0.0"

func (h *Handlers) ModelMetrics(c *gin.Context) {
	m, err := h.Store.LatestModelMetrics(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{
			"current_version": defaultModelVersion,
			"message":         "No model metadata available yet",
		})
		return
	}
	if err != nil {
		storeError(c, err, "Failed to fetch model metrics")
		return
	}
	c.JSON(http.StatusOK, m)
}
