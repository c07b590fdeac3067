package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string // sqlite|postgres|memory
	DBDSN    string

	RedisURL   string // empty keeps results in process
	ResultsTTL time.Duration

	AuthHMACSecret  string
	SessionTokenTTL time.Duration
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOrigins []string

	QuestionBankPath string // empty uses the embedded bank
	EnableMetrics    bool

	// quiz driver timing
	TickInterval      time.Duration
	TransitionDelay   time.Duration
	SyncTimeout       time.Duration
	CompletionTimeout time.Duration
	IdleTimeout       time.Duration
}

// Load reads a .env file when present, then the environment.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defOrigins := "http://localhost:3000"
	if mode == ModeOnline {
		defOrigins = strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
	}
	return Config{
		Mode:      mode,
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		RedisURL:   os.Getenv("REDIS_URL"),
		ResultsTTL: envDuration("RESULTS_TTL", 24*time.Hour),

		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		SessionTokenTTL: envDuration("SESSION_TOKEN_TTL", 24*time.Hour),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOrigins: csvOr("CORS_ORIGINS", defOrigins),

		QuestionBankPath: os.Getenv("QUESTION_BANK_PATH"),
		EnableMetrics:    envBool("ENABLE_METRICS", true),

		TickInterval:      envDuration("TICK_INTERVAL", time.Second),
		TransitionDelay:   envDuration("TRANSITION_DELAY", 400*time.Millisecond),
		SyncTimeout:       envDuration("SYNC_TIMEOUT", 5*time.Second),
		CompletionTimeout: envDuration("COMPLETION_TIMEOUT", 10*time.Second),
		IdleTimeout:       envDuration("IDLE_TIMEOUT", 30*time.Minute),
	}
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
