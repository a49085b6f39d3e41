package app

import (
	"context"
	"fmt"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/gcp"
)

var (
	mirrorConfigFromEnv = gcp.MirrorConfigFromEnv
	newArtifactMirror   = gcp.NewArtifactMirror
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidConfig StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code   StorageProviderBootstrapErrorCode
	Mode   string
	Bucket string
	Cause  error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "artifact mirror bootstrap failed"
	}
	return fmt.Sprintf(
		"artifact mirror bootstrap failed (code=%s mode=%q bucket=%q): %v",
		e.Code,
		e.Mode,
		e.Bucket,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArtifactMirror returns nil without error when no bucket is configured.
func resolveArtifactMirror(ctx context.Context, log *logger.Logger) (gcp.ArtifactMirror, error) {
	cfg, err := mirrorConfigFromEnv()
	if err != nil {
		bootErr := &StorageProviderBootstrapError{
			Code:   StorageProviderBootstrapErrorInvalidConfig,
			Mode:   string(cfg.Mode),
			Bucket: cfg.Bucket,
			Cause:  err,
		}
		log.Error("Artifact mirror configuration invalid", "error_code", bootErr.Code, "error", bootErr)
		return nil, bootErr
	}
	if !cfg.Enabled() {
		log.Info("Artifact mirror disabled (ARTIFACT_GCS_BUCKET not set)")
		return nil, nil
	}

	log.Info("Selecting artifact mirror", "mode", cfg.Mode, "bucket", cfg.Bucket, "emulator_host", cfg.EmulatorHost)
	mirror, err := newArtifactMirror(ctx, log, cfg)
	if err != nil {
		bootErr := &StorageProviderBootstrapError{
			Code:   StorageProviderBootstrapErrorConnectFailed,
			Mode:   string(cfg.Mode),
			Bucket: cfg.Bucket,
			Cause:  err,
		}
		log.Error("Artifact mirror bootstrap failed", "error_code", bootErr.Code, "error", bootErr)
		return nil, bootErr
	}
	return mirror, nil
}
