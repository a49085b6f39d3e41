package gcp

import "testing"

func clearMirrorEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ARTIFACT_GCS_BUCKET", "ARTIFACT_GCS_PREFIX", "ARTIFACT_CDN_DOMAIN", "OBJECT_STORAGE_MODE", "STORAGE_EMULATOR_HOST", "OBJECT_STORAGE_PUBLIC_BASE_URL"} {
		t.Setenv(k, "")
	}
}

func TestMirrorConfigFromEnvDefaultGCS(t *testing.T) {
	clearMirrorEnv(t)
	t.Setenv("ARTIFACT_GCS_BUCKET", "dive-artifacts")

	cfg, err := MirrorConfigFromEnv()
	if err != nil {
		t.Fatalf("MirrorConfigFromEnv: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS || !cfg.Enabled() {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestMirrorConfigFromEnvDisabledWithoutBucket(t *testing.T) {
	clearMirrorEnv(t)
	cfg, err := MirrorConfigFromEnv()
	if err != nil {
		t.Fatalf("MirrorConfigFromEnv: %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("mirror should be disabled without a bucket")
	}
}

func TestMirrorConfigFromEnvEmulatorFallback(t *testing.T) {
	clearMirrorEnv(t)
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")

	cfg, err := MirrorConfigFromEnv()
	if err != nil {
		t.Fatalf("MirrorConfigFromEnv: %v", err)
	}
	if !cfg.IsEmulatorMode() || cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestMirrorConfigFromEnvInvalid(t *testing.T) {
	clearMirrorEnv(t)
	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	if _, err := MirrorConfigFromEnv(); err == nil {
		t.Fatalf("expected invalid mode error")
	}

	clearMirrorEnv(t)
	t.Setenv("OBJECT_STORAGE_MODE", "gcs_emulator")
	if _, err := MirrorConfigFromEnv(); err == nil {
		t.Fatalf("expected missing emulator host error")
	}

	clearMirrorEnv(t)
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "localhost:4443")
	if _, err := MirrorConfigFromEnv(); err == nil {
		t.Fatalf("expected invalid public base url error")
	}
}
