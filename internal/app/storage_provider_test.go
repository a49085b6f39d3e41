package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/gcp"
)

type stubMirror struct{}

func (stubMirror) Upload(context.Context, string, []byte) error { return nil }
func (stubMirror) Exists(context.Context, string) (bool, error) { return true, nil }
func (stubMirror) PublicURL(key string) string                  { return "https://cdn.test/" + key }

func swapMirrorBootstrap(t *testing.T, cfg gcp.MirrorConfig, cfgErr error, newErr error) *int {
	t.Helper()
	origCfg, origNew := mirrorConfigFromEnv, newArtifactMirror
	t.Cleanup(func() {
		mirrorConfigFromEnv, newArtifactMirror = origCfg, origNew
	})
	calls := 0
	mirrorConfigFromEnv = func() (gcp.MirrorConfig, error) { return cfg, cfgErr }
	newArtifactMirror = func(context.Context, *logger.Logger, gcp.MirrorConfig) (gcp.ArtifactMirror, error) {
		calls++
		if newErr != nil {
			return nil, newErr
		}
		return stubMirror{}, nil
	}
	return &calls
}

func TestResolveArtifactMirrorDisabledWithoutBucket(t *testing.T) {
	calls := swapMirrorBootstrap(t, gcp.MirrorConfig{Mode: gcp.ObjectStorageModeGCS}, nil, nil)

	m, err := resolveArtifactMirror(context.Background(), logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil mirror")
	}
	if *calls != 0 {
		t.Fatalf("mirror constructor should not run, calls=%d", *calls)
	}
}

func TestResolveArtifactMirrorInvalidConfig(t *testing.T) {
	src := errors.New("invalid OBJECT_STORAGE_MODE")
	swapMirrorBootstrap(t, gcp.MirrorConfig{Bucket: "media"}, src, nil)

	_, err := resolveArtifactMirror(context.Background(), logger.Nop())
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorInvalidConfig {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidConfig, got.Code)
	}
	if !errors.Is(err, src) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestResolveArtifactMirrorConnectFailed(t *testing.T) {
	src := errors.New("dial tcp: refused")
	swapMirrorBootstrap(t, gcp.MirrorConfig{Bucket: "media", Mode: gcp.ObjectStorageModeGCS}, nil, src)

	_, err := resolveArtifactMirror(context.Background(), logger.Nop())
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorConnectFailed || got.Bucket != "media" {
		t.Fatalf("unexpected error fields: %+v", got)
	}
}

func TestResolveArtifactMirrorEnabled(t *testing.T) {
	calls := swapMirrorBootstrap(t, gcp.MirrorConfig{Bucket: "media", Mode: gcp.ObjectStorageModeGCSEmulator}, nil, nil)

	m, err := resolveArtifactMirror(context.Background(), logger.Nop())
	if err != nil || m == nil {
		t.Fatalf("expected mirror, err=%v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected one constructor call, got %d", *calls)
	}
}

func TestStorageProviderBootstrapErrorNilSafe(t *testing.T) {
	var e *StorageProviderBootstrapError
	if e.Error() == "" || e.Unwrap() != nil {
		t.Fatalf("nil error should still describe itself")
	}
}
