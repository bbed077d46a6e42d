package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"waterlog/assistant"
	"waterlog/auth"
	"waterlog/common"
	"waterlog/config"
	"waterlog/database"
	"waterlog/dedup"
	"waterlog/events"
	"waterlog/gemini"
	"waterlog/handlers"
	"waterlog/imaging"
	"waterlog/llm"
	"waterlog/metrics"
	"waterlog/moderation"
	"waterlog/openai"
	"waterlog/prediction"
	"waterlog/rabbitmq"
	"waterlog/stubllm"
	"waterlog/submission"
	"waterlog/upload"
	"waterlog/websocket"
)

func main() {
	cfg := config.Load()

	setLogLevel(cfg.LogLevel)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	conn, err := common.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.NewDatabase(conn)
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	metrics.Register()

	files, err := newUploadStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up uploads: %v", err)
	}

	chain := newModelChain(cfg)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	sinks := []events.Sink{hub}
	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Warnf("Report events will not be published to RabbitMQ: %v", err)
		} else {
			sinks = append(sinks, publisher)
		}
	}
	dispatcher := events.NewDispatcher(sinks...)

	pipeline := submission.NewPipeline(
		moderation.NewModerator(chain, cfg.ModerationTimeout),
		dedup.NewGuard(db),
		db,
		files,
		submission.WithNotifier(dispatcher),
	)

	accounts := auth.NewService(db, cfg.JWTSecret, 0)
	h := handlers.NewHandlers(handlers.Deps{
		Store:             db,
		Pipeline:          pipeline,
		Uploads:           files,
		Accounts:          accounts,
		Assistant:         assistant.New(chain),
		Predictions:       prediction.NewService(db, prediction.NewRunner(cfg.PredictionPython, cfg.PredictionScript, cfg.PredictionTimeout)),
		Notifier:          dispatcher,
		MaxImageDimension: imaging.DefaultMaxDimension,
	})

	routerCfg := handlers.RouterConfig{
		TrustedProxies: cfg.TrustedProxies,
		RateLimit:      cfg.RateLimit,
		Tokens:         accounts,
		LiveFeed:       hub.ServeWS,
	}
	if cfg.UploadBackend != "s3" {
		routerCfg.UploadDir = cfg.UploadDir
		routerCfg.UploadURLPrefix = cfg.UploadURLPrefix
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.SetupRouter(routerCfg, h),
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warnf("Error closing RabbitMQ publisher: %v", err)
		}
	}

	log.Info("Server exited")
}

// setLogLevel applies level, falling back to info when it is not a known level.
func setLogLevel(level string) log.Level {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	return lvl
}

func newUploadStore(ctx context.Context, cfg *config.Config) (upload.Store, error) {
	if cfg.UploadBackend != "s3" {
		return upload.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	}
	s3Store, err := upload.NewS3Store(cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Store, nil
}

// newModelChain orders the configured remote models ahead of the offline
// simulator, which always answers.
func newModelChain(cfg *config.Config) *llm.Chain {
	var clients []llm.Client
	if cfg.GeminiAPIKey != "" {
		for _, c := range gemini.NewClients(cfg.GeminiAPIKey, cfg.GeminiModels) {
			clients = append(clients, c)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		clients = append(clients, openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""))
	}
	if len(clients) == 0 {
		log.Warn("No model API keys configured, using the offline simulator")
	}
	clients = append(clients, stubllm.NewClient())
	return llm.NewChain(clients...)
}
