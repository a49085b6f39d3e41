package app

import (
	"testing"
	"time"

	"github.com/yungbote/diveops-backend/internal/modules/content/script"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "ARTIFACT_ROOT", "INTEGRITY_INTERVAL_HOURS", "INTEGRITY_ON_STARTUP", "SCRIPT_MODE", "REDIS_ADDR", "INTEGRITY_ALERT_WEBHOOK_URL", "ARTIFACT_PUBLIC_FROM_MIRROR"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())

	if cfg.Port != "8080" {
		t.Fatalf("port: got %q", cfg.Port)
	}
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("driver: got %q", cfg.DB.Driver)
	}
	if cfg.IntegrityInterval != 24*time.Hour {
		t.Fatalf("interval: got %s", cfg.IntegrityInterval)
	}
	if !cfg.IntegrityOnStartup {
		t.Fatalf("startup audit should default on")
	}
	if cfg.ScriptMode != script.ModeGenerative {
		t.Fatalf("script mode: got %q", cfg.ScriptMode)
	}
	if cfg.Artifact.Root != "public" || cfg.Artifact.PublicFromMirror {
		t.Fatalf("artifact config: got %+v", cfg.Artifact)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("INTEGRITY_INTERVAL_HOURS", "6")
	t.Setenv("INTEGRITY_ON_STARTUP", "false")
	t.Setenv("SCRIPT_MODE", "deterministic")
	t.Setenv("SPEECH_CONCURRENCY", "4")
	t.Setenv("ARTIFACT_PUBLIC_FROM_MIRROR", "true")

	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "9000" || cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "file::memory:" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.IntegrityInterval != 6*time.Hour || cfg.IntegrityOnStartup {
		t.Fatalf("unexpected integrity config: %s %v", cfg.IntegrityInterval, cfg.IntegrityOnStartup)
	}
	if cfg.ScriptMode != script.ModeDeterministic || cfg.SpeechConcurrency != 4 {
		t.Fatalf("unexpected generation config: %q %d", cfg.ScriptMode, cfg.SpeechConcurrency)
	}
	if !cfg.Artifact.PublicFromMirror {
		t.Fatalf("expected mirror urls to be enabled")
	}
}

func TestLoadConfigRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("INTEGRITY_INTERVAL_HOURS", "0")
	if cfg := LoadConfig(logger.Nop()); cfg.IntegrityInterval != 24*time.Hour {
		t.Fatalf("expected fallback to 24h, got %s", cfg.IntegrityInterval)
	}
}
