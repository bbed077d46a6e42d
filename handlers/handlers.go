package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"waterlog/assistant"
	"waterlog/database"
	"waterlog/models"
	"waterlog/upload"
)

// Store is the slice of the database the HTTP layer reads and writes.
type Store interface {
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListReports(ctx context.Context, f models.ReportFilter) ([]models.Report, error)
	UpdateStatus(ctx context.Context, id int64, next models.Status) (*models.Report, error)
	ResolveReport(ctx context.Context, id int64, res models.Resolution) (*models.Report, error)
	ReportsInViewport(ctx context.Context, vp models.ViewPort) ([]models.MapPoint, error)

	Upvote(ctx context.Context, reportID, userID int64) error
	CountUpvotes(ctx context.Context, reportID int64) (int64, error)
	AddComment(ctx context.Context, reportID, userID int64, text string) (*models.Comment, error)
	ListComments(ctx context.Context, reportID int64) ([]models.Comment, error)

	ListAuthorities(ctx context.Context) ([]models.Authority, error)
	ListHotspots(ctx context.Context) ([]models.Hotspot, error)
	ListIncidents(ctx context.Context, f models.IncidentFilter) ([]models.HistoricalIncident, error)
	RainfallForDate(ctx context.Context, date string) ([]models.RainfallStation, error)
	LatestModelMetrics(ctx context.Context) (*models.ModelMetrics, error)
	PredictionStats(ctx context.Context) (*models.PredictionStats, error)

	Ping(ctx context.Context) error
}

type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (*models.Report, error)
}

type Accounts interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

type Assistant interface {
	PredictAuthority(ctx context.Context, description, location string) (string, error)
	Chat(ctx context.Context, message string, history []assistant.ChatTurn) (string, error)
}

type Predictions interface {
	ForDate(ctx context.Context, date string) (*models.PredictionResponse, error)
	Generate(ctx context.Context, date string) (string, error)
}

type Notifier interface {
	Notify(eventType string, r *models.Report)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store       Store
	Pipeline    Submitter
	Uploads     upload.Store
	Accounts    Accounts
	Assistant   Assistant
	Predictions Predictions
	Notifier    Notifier
	// MaxImageDimension bounds stored photos; zero keeps uploads as sent.
	MaxImageDimension int
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Deps
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

func (h *Handlers) notify(eventType string, r *models.Report) {
	if h.Notifier != nil {
		h.Notifier.Notify(eventType, r)
	}
}

// reportID parses the :id path parameter, writing 400 when it is invalid.
func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report id"})
		return 0, false
	}
	return id, true
}

// storeError maps database errors to responses.
func storeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, database.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Report is already resolved"})
	case errors.Is(err, database.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
	default:
		log.Errorf("%s: %v", msg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}

func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   "waterlog",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Store.Ping(ctx); err != nil {
		log.Warnf("Health check: database unreachable: %v", err)
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
