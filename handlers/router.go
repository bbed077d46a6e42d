package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waterlog/middleware"
	"waterlog/models"
)

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	TrustedProxies []string
	RateLimit      int
	// UploadDir is served at UploadURLPrefix when uploads are stored locally.
	UploadDir       string
	UploadURLPrefix string
	Tokens          middleware.TokenParser
	// LiveFeed serves the websocket feed of report events, when set.
	LiveFeed gin.HandlerFunc
}

func SetupRouter(cfg RouterConfig, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		panic(err)
	}

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.UploadDir != "" && cfg.UploadURLPrefix != "" {
		router.Static(cfg.UploadURLPrefix, cfg.UploadDir)
	}

	requireAuth := middleware.Auth(cfg.Tokens)
	requireAuthority := middleware.RequireRole(models.RoleAuthority)

	api := router.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		api.GET("/authorities", h.ListAuthorities)
		api.GET("/hotspots", h.ListHotspots)
		api.GET("/hotspots/geojson", h.HotspotsGeoJSON)
		api.GET("/rainfall-warnings", h.RainfallWarnings)

		reports := api.Group("/reports")
		{
			reports.GET("", h.ListReports)
			reports.GET("/map", h.ReportsMap)
			reports.GET("/:id", h.GetReport)
			reports.GET("/:id/upvotes", h.CountUpvotes)
			reports.GET("/:id/comments", h.ListComments)

			reports.POST("", requireAuth, middleware.RateLimit(cfg.RateLimit), h.CreateReport)
			reports.POST("/:id/upvote", requireAuth, h.Upvote)
			reports.POST("/:id/comments", requireAuth, h.AddComment)
			reports.PUT("/:id/status", requireAuth, requireAuthority, h.UpdateStatus)
			reports.PUT("/:id/resolve", requireAuth, requireAuthority, h.ResolveReport)
		}

		api.POST("/ai/predict-authority", h.PredictAuthority)
		api.POST("/ai/chat", h.Chat)

		// A missing date runs the prediction script, so both routes share a budget.
		predictLimit := middleware.RateLimit(cfg.RateLimit)
		api.GET("/predictions/date/:date", predictLimit, h.PredictionsForDate)
		api.GET("/predictions/stats", h.PredictionStats)
		api.POST("/predictions/generate", requireAuth, requireAuthority, predictLimit, h.GeneratePredictions)

		api.GET("/historical/incidents", h.HistoricalIncidents)
		api.GET("/rainfall/date/:date", h.RainfallForDate)
		api.GET("/model/metrics", h.ModelMetrics)
	}
	if cfg.LiveFeed != nil {
		// Outside the gzip group: the websocket upgrade needs the raw writer.
		router.GET("/api/ws/reports", cfg.LiveFeed)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return router
}
