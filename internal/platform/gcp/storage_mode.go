package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/diveops-backend/internal/platform/envutil"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// MirrorConfig configures the artifact mirror bucket. An empty Bucket disables
// mirroring.
type MirrorConfig struct {
	Bucket        string
	Prefix        string
	CDNDomain     string
	Mode          ObjectStorageMode
	EmulatorHost  string
	PublicBaseURL string
}

func (cfg MirrorConfig) Enabled() bool { return strings.TrimSpace(cfg.Bucket) != "" }

func (cfg MirrorConfig) IsEmulatorMode() bool { return cfg.Mode == ObjectStorageModeGCSEmulator }

// MirrorConfigFromEnv reads ARTIFACT_GCS_* and the shared emulator variables.
// Without an explicit mode, a set STORAGE_EMULATOR_HOST selects emulator mode.
func MirrorConfigFromEnv() (MirrorConfig, error) {
	cfg := MirrorConfig{
		Bucket:        envutil.String("ARTIFACT_GCS_BUCKET", ""),
		Prefix:        strings.Trim(envutil.String("ARTIFACT_GCS_PREFIX", ""), "/"),
		CDNDomain:     envutil.String("ARTIFACT_CDN_DOMAIN", ""),
		EmulatorHost:  strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		PublicBaseURL: strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
	}

	rawMode := envutil.String("OBJECT_STORAGE_MODE", "")
	switch ObjectStorageMode(strings.ToLower(rawMode)) {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
		} else {
			cfg.Mode = ObjectStorageModeGCS
		}
	case ObjectStorageModeGCS:
		cfg.Mode = ObjectStorageModeGCS
	case ObjectStorageModeGCSEmulator:
		cfg.Mode = ObjectStorageModeGCSEmulator
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", rawMode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	}
	return cfg, ValidateMirrorConfig(cfg)
}

func ValidateMirrorConfig(cfg MirrorConfig) error {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
	case ObjectStorageModeGCSEmulator:
		if cfg.EmulatorHost == "" {
			return fmt.Errorf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", ObjectStorageModeGCSEmulator)
		}
		if !isAbsoluteURL(cfg.EmulatorHost) {
			return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", cfg.EmulatorHost)
		}
	default:
		return fmt.Errorf("invalid object storage mode %q", cfg.Mode)
	}
	if cfg.PublicBaseURL != "" && !isAbsoluteURL(cfg.PublicBaseURL) {
		return fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", cfg.PublicBaseURL)
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.TrimSpace(u.Scheme) != "" && strings.TrimSpace(u.Host) != ""
}
