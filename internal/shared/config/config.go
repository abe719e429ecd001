package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	PublicBaseURL   string
	BlobSigningKey  string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool

	ExtractionURL    string
	GenerationURL    string
	ProcessingAPIKey string

	// Zero means unbounded.
	UploadTimeout     time.Duration
	ExtractionTimeout time.Duration
	GenerationTimeout time.Duration
	ArtifactTimeout   time.Duration

	PresignExpiry time.Duration
	// Zero means unlimited.
	MaxBatchFiles       int
	MaxFileBytes        int64
	PipelineConcurrency int

	// Jobs of this process are refreshed every HeartbeatInterval. At startup, unfinished
	// jobs idle for longer than ReconcileStaleAfter are marked as interrupted.
	HeartbeatInterval   time.Duration
	ReconcileStaleAfter time.Duration
	ReconcileOnStart    bool

	BatchQueueURL   string
	BatchWebhookURL string
	RateLimit       bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:            port,
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		BlobSigningKey:  getEnv("BLOB_SIGNING_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:     getEnv("MINIO_BUCKET", ""),
		MinIOUseSSL:     getBool("MINIO_USE_SSL", false),

		ExtractionURL:    getEnv("EXTRACTION_URL", ""),
		GenerationURL:    getEnv("GENERATION_URL", ""),
		ProcessingAPIKey: getEnv("PROCESSING_API_KEY", ""),

		UploadTimeout:     getDuration("UPLOAD_TIMEOUT", 0),
		ExtractionTimeout: getDuration("EXTRACTION_TIMEOUT", 0),
		GenerationTimeout: getDuration("GENERATION_TIMEOUT", 0),
		ArtifactTimeout:   getDuration("ARTIFACT_TIMEOUT", 0),

		PresignExpiry:       getDuration("PRESIGN_EXPIRY", 15*time.Minute),
		MaxBatchFiles:       getInt("MAX_BATCH_FILES", 0),
		MaxFileBytes:        int64(getInt("MAX_FILE_BYTES", 64<<20)),
		PipelineConcurrency: getInt("PIPELINE_CONCURRENCY", 0),

		HeartbeatInterval:   getDuration("JOB_HEARTBEAT_INTERVAL", 30*time.Second),
		ReconcileStaleAfter: getDuration("RECONCILE_STALE_AFTER", 5*time.Minute),
		ReconcileOnStart:    getBool("RECONCILE_ON_START", true),

		BatchQueueURL:   getEnv("BATCH_QUEUE_URL", ""),
		BatchWebhookURL: getEnv("BATCH_WEBHOOK_URL", ""),
		RateLimit:       getBool("RATE_LIMIT_ENABLED", true),
	}

	if cfg.ExtractionURL == "" || cfg.GenerationURL == "" {
		log.Printf("EXTRACTION_URL and GENERATION_URL are not both set; processing calls will fail")
	}
	if cfg.ReconcileStaleAfter > 0 && cfg.HeartbeatInterval > 0 && cfg.ReconcileStaleAfter <= 2*cfg.HeartbeatInterval {
		log.Printf("RECONCILE_STALE_AFTER=%s is not well above JOB_HEARTBEAT_INTERVAL=%s; live jobs may be reconciled", cfg.ReconcileStaleAfter, cfg.HeartbeatInterval)
	}
	return cfg
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return v
}

// getDuration accepts Go duration strings ("30s", "2m") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}
