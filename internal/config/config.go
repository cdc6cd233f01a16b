package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string

	DBDSN         string
	JWTSecret     string
	JWTExpiresMin int
	IDEncryptKey  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadDir   string
	CORSOrigins string

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	LogLevel string
	LogFile  string

	BlobSweepCron  string
	BlobSweepGrace time.Duration
}

func Load() Config {
	expires, _ := strconv.Atoi(get("JWT_EXPIRES_MIN", "10080"))
	redisDB, _ := strconv.Atoi(get("REDIS_DB", "0"))
	smtpPort, _ := strconv.Atoi(get("SMTP_PORT", "587"))
	grace, err := time.ParseDuration(get("BLOB_SWEEP_GRACE", "1h"))
	if err != nil {
		grace = time.Hour
	}

	return Config{
		AppPort:    get("APP_PORT", "8080"),
		AppEnv:     strings.ToLower(get("APP_ENV", "development")),
		AppBaseURL: get("APP_BASE_URL", ""),

		DBDSN:         must("DB_DSN"),
		JWTSecret:     must("JWT_SECRET"),
		JWTExpiresMin: expires,
		IDEncryptKey:  must("ID_ENCRYPT_KEY"),

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		UploadDir:   get("UPLOAD_DIR", "./uploads"),
		CORSOrigins: get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),

		GoogleClientID:  get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:  get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:3000"),

		SMTPHost:     get("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUser:     get("SMTP_USER", ""),
		SMTPPassword: get("SMTP_PASSWORD", ""),
		SMTPFrom:     get("SMTP_FROM", "no-reply@saan.local"),

		LogLevel: get("LOG_LEVEL", "info"),
		LogFile:  get("LOG_FILE", ""),

		BlobSweepCron:  get("BLOB_SWEEP_CRON", "@every 1h"),
		BlobSweepGrace: grace,
	}
}

// Production reports whether secure cookies and JSON logs should be used.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
