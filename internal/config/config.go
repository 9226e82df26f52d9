package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string // tags event_log rows written by this node

	DBDriver string
	DBDSN    string

	AuthHMACSecret  string
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Written-answer pass marks, in percent.
	PracticeThreshold  float64
	InterviewThreshold float64

	// Empty disables the shared lock; sessions are then locked in-process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Empty disables publishing; events still go to event_log.
	RabbitMQURI      string
	RabbitMQExchange string

	LogLevel  string
	LogPretty bool

	StaleAfter    time.Duration // idle time before a session is abandoned
	SweepInterval time.Duration // 0 disables the in-process sweeper
}

// FromEnv reads the process environment, after loading a .env file from the
// working directory when one exists.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	mode := Mode(envOr("MODE", string(ModeOffline)))
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		SiteID:             envOr("SITE_ID", "local"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://prep.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		PracticeThreshold:  envFloat("PRACTICE_THRESHOLD", 80),
		InterviewThreshold: envFloat("INTERVIEW_THRESHOLD", 100),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PWD"),
		RedisDB:            envInt("REDIS_DB", 0),
		LockTTL:            envDuration("LOCK_TTL", 10*time.Second),
		RabbitMQURI:        os.Getenv("RABBITMQ_URI"),
		RabbitMQExchange:   envOr("RABBITMQ_EXCHANGE", "prep.sessions"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogPretty:          envBool("LOG_PRETTY", mode == ModeOffline),
		StaleAfter:         envDuration("STALE_AFTER", 72*time.Hour),
		SweepInterval:      envDuration("SWEEP_INTERVAL", 0),
	}
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	return f
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
