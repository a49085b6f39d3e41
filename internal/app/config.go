package app

import (
	"time"

	"github.com/yungbote/diveops-backend/internal/data/db"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/modules/content/script"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/deckgen"
	"github.com/yungbote/diveops-backend/internal/platform/envutil"
	"github.com/yungbote/diveops-backend/internal/platform/openai"
)

type Config struct {
	Port        string
	LogMode     string
	ServiceName string
	CORSOrigins []string

	DB       db.Config
	OpenAI   openai.Config
	Deck     deckgen.Config
	Artifact artifacts.Config

	ScriptMode        script.Mode
	SpeechConcurrency int

	RedisAddr string

	IntegrityInterval   time.Duration
	IntegrityOnStartup  bool
	IntegrityBackupPath string
	AlertWebhookURL     string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "diveops-content"),
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		DB: db.Config{
			Driver:   envutil.String("DB_DRIVER", "postgres"),
			DSN:      envutil.String("DATABASE_DSN", ""),
			Host:     envutil.String("POSTGRES_HOST", "localhost"),
			Port:     envutil.String("POSTGRES_PORT", "5432"),
			User:     envutil.String("POSTGRES_USER", "postgres"),
			Password: envutil.String("POSTGRES_PASSWORD", ""),
			Name:     envutil.String("POSTGRES_NAME", "diveops"),
		},
		OpenAI: openai.ConfigFromEnv(),
		Deck:   deckgen.ConfigFromEnv(),
		Artifact: artifacts.Config{
			Root:         envutil.String("ARTIFACT_ROOT", "public"),
			PublicPrefix: envutil.String("ARTIFACT_PUBLIC_PREFIX", ""),
			FetchTimeout: envutil.Seconds("ARTIFACT_FETCH_TIMEOUT_SECONDS", 2*time.Minute),

			PublicFromMirror: envutil.Bool("ARTIFACT_PUBLIC_FROM_MIRROR", false),
		},

		ScriptMode:        script.ParseMode(envutil.String("SCRIPT_MODE", string(script.ModeGenerative))),
		SpeechConcurrency: envutil.Int("SPEECH_CONCURRENCY", 2),

		RedisAddr: envutil.String("REDIS_ADDR", ""),

		IntegrityInterval:   time.Duration(envutil.Int("INTEGRITY_INTERVAL_HOURS", 24)) * time.Hour,
		IntegrityOnStartup:  envutil.Bool("INTEGRITY_ON_STARTUP", true),
		IntegrityBackupPath: envutil.String("INTEGRITY_BACKUP_PATH", ""),
		AlertWebhookURL:     envutil.String("INTEGRITY_ALERT_WEBHOOK_URL", ""),
	}
	if cfg.IntegrityInterval <= 0 {
		cfg.IntegrityInterval = 24 * time.Hour
	}
	if log != nil {
		log.Info("Configuration loaded",
			"port", cfg.Port,
			"db_driver", cfg.DB.Driver,
			"artifact_root", cfg.Artifact.Root,
			"script_mode", cfg.ScriptMode,
			"integrity_interval", cfg.IntegrityInterval.String(),
			"alerts_enabled", cfg.AlertWebhookURL != "",
			"redis_locks", cfg.RedisAddr != "",
		)
	}
	return cfg
}
