package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultGeminiModels is the ordered fallback list tried for every prompt.
var DefaultGeminiModels = []string{
	"gemini-2.0-flash-exp",
	"gemini-flash-latest",
	"gemini-pro-latest",
	"gemini-1.5-flash",
}

// Config holds all configuration for the waterlogging report service
type Config struct {
	// Database configuration
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	// Server configuration
	Port           string   `yaml:"port"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	RateLimit      int      `yaml:"rate_limit_per_minute"`

	// Security
	JWTSecret string `yaml:"jwt_secret"`

	// Text generation
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModels      []string      `yaml:"gemini_models"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIModel       string        `yaml:"openai_model"`
	ModerationTimeout time.Duration `yaml:"moderation_timeout"`

	// Uploads
	UploadBackend   string `yaml:"upload_backend"`
	UploadDir       string `yaml:"upload_dir"`
	UploadURLPrefix string `yaml:"upload_url_prefix"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3Region        string `yaml:"s3_region"`

	// RabbitMQ
	AMQPURL        string `yaml:"amqp_url"`
	AMQPExchange   string `yaml:"amqp_exchange"`
	AMQPRoutingKey string `yaml:"amqp_routing_key"`

	// Prediction batch job
	PredictionScript  string        `yaml:"prediction_script"`
	PredictionPython  string        `yaml:"prediction_python"`
	PredictionTimeout time.Duration `yaml:"prediction_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load loads configuration from .env, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			log.Warnf("Failed to read config file %s: %v", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		DBHost:            "localhost",
		DBPort:            "3306",
		DBUser:            "server",
		DBPassword:        "secret_app",
		DBName:            "waterlog",
		Port:              "3000",
		RateLimit:         30,
		JWTSecret:         "",
		GeminiModels:      append([]string(nil), DefaultGeminiModels...),
		OpenAIModel:       "gpt-4o-mini",
		ModerationTimeout: 20 * time.Second,
		UploadBackend:     "local",
		UploadDir:         "public/uploads",
		UploadURLPrefix:   "/uploads",
		S3Region:          "ap-south-1",
		AMQPExchange:      "waterlog",
		PredictionScript:  "scripts/predict_for_date.py",
		PredictionPython:  "python3",
		PredictionTimeout: 5 * time.Minute,
		LogLevel:          "info",
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)

	c.Port = getEnv("PORT", c.Port)
	c.TrustedProxies = getStringSliceEnv("TRUSTED_PROXIES", c.TrustedProxies)
	c.RateLimit = getIntEnv("RATE_LIMIT_PER_MINUTE", c.RateLimit)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModels = getStringSliceEnv("GEMINI_MODELS", c.GeminiModels)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.ModerationTimeout = getDurationEnv("MODERATION_TIMEOUT", c.ModerationTimeout)

	c.UploadBackend = getEnv("UPLOAD_BACKEND", c.UploadBackend)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.UploadURLPrefix = getEnv("UPLOAD_URL_PREFIX", c.UploadURLPrefix)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = getEnv("S3_REGION", c.S3Region)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPRoutingKey = getEnv("AMQP_ROUTING_KEY", c.AMQPRoutingKey)

	c.PredictionScript = getEnv("PREDICTION_SCRIPT", c.PredictionScript)
	c.PredictionPython = getEnv("PREDICTION_PYTHON", c.PredictionPython)
	c.PredictionTimeout = getDurationEnv("PREDICTION_TIMEOUT", c.PredictionTimeout)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getStringSliceEnv gets a comma-separated environment variable as a slice
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
