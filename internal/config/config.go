package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	SMTP       SMTPConfig
	Keys       APIKeys
	Credits    CreditsConfig
	Generation GenerationConfig
	Storage    StorageConfig
	Scheduler  SchedulerConfig
	Tracing    TracingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type APIKeys struct {
	GoogleGemini  string
	GeminiModel   string
	BFL           string // Black Forest Labs (Flux)
	BFLBaseURL    string
	KieAI         string // Runway + Midjourney
	RunwayURL     string
	MidjourneyURL string
	CallbackURL   string
}

type CreditsConfig struct {
	DailyAllotment int
	HistoryLimit   int
}

type GenerationConfig struct {
	PollMaxAttempts      int
	PollInterval         time.Duration
	StaleAfter           time.Duration
	Simulation           bool
	SimulationDuration   time.Duration
	PersistRequiredTiers []string
}

type StorageConfig struct {
	Backend       string // "local", "gcs" or "cdn"
	LocalDir      string
	GCSBucket     string
	GCSCredsFile  string
	CDNUploadURL  string
	CDNAPIKey     string
	CDNFolder     string
	ThumbnailSize int

	// Local files UploadVideo may import; empty disables local video sources.
	VideoImportDir string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
	SampleRatio float64
}

type SchedulerConfig struct {
	Enabled   bool
	DailySpec string
	SweepSpec string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "MediaGen"),
		},
		Keys: APIKeys{
			GoogleGemini:  getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
			BFL:           getEnv("BFL_API_KEY", ""),
			BFLBaseURL:    getEnv("BFL_BASE_URL", "https://api.bfl.ai/v1"),
			KieAI:         getEnv("KIE_API_KEY", ""),
			RunwayURL:     getEnv("RUNWAY_BASE_URL", "https://api.kie.ai/api/v1/runway"),
			MidjourneyURL: getEnv("MIDJOURNEY_BASE_URL", "https://api.kie.ai/api/v1/mj"),
			CallbackURL:   getEnv("PROVIDER_CALLBACK_URL", ""),
		},
		Credits: CreditsConfig{
			DailyAllotment: getEnvAsInt("DAILY_CREDIT_ALLOTMENT", 100),
			HistoryLimit:   getEnvAsInt("CREDIT_HISTORY_LIMIT", 50),
		},
		Generation: GenerationConfig{
			PollMaxAttempts:      getEnvAsInt("POLL_MAX_ATTEMPTS", 60),
			PollInterval:         getEnvAsDuration("POLL_INTERVAL", 3*time.Second),
			StaleAfter:           getEnvAsDuration("GENERATION_STALE_AFTER", 24*time.Hour),
			Simulation:           getEnvAsBool("PROVIDER_SIMULATION", false),
			SimulationDuration:   getEnvAsDuration("PROVIDER_SIMULATION_DURATION", 15*time.Second),
			PersistRequiredTiers: getEnvAsList("PERSIST_REQUIRED_TIERS", []string{"premium"}),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "local"),
			LocalDir:       getEnv("STORAGE_LOCAL_DIR", "./uploads"),
			GCSBucket:      getEnv("GCS_BUCKET", ""),
			GCSCredsFile:   getEnv("GCS_CREDENTIALS_FILE", ""),
			CDNUploadURL:   getEnv("CDN_UPLOAD_URL", ""),
			CDNAPIKey:      getEnv("CDN_API_KEY", ""),
			CDNFolder:      getEnv("CDN_FOLDER", "mediagen"),
			ThumbnailSize:  getEnvAsInt("THUMBNAIL_SIZE", 300),
			VideoImportDir: getEnv("STORAGE_VIDEO_IMPORT_DIR", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getEnvAsBool("SCHEDULER_ENABLED", true),
			DailySpec: getEnv("SCHEDULER_DAILY_SPEC", "0 0 * * *"),
			SweepSpec: getEnv("SCHEDULER_SWEEP_SPEC", "0 */6 * * *"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-mediagen-be"),
			Version:     getEnv("APP_VERSION", "dev"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
