package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

// ArtifactMirror copies persisted artifacts to a GCS bucket under the same
// category-rooted keys used on local disk.
type ArtifactMirror interface {
	Upload(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	httpClient    *http.Client
	cfg           MirrorConfig
}

func NewArtifactMirror(ctx context.Context, log *logger.Logger, cfg MirrorConfig) (ArtifactMirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("artifact mirror bucket not configured")
	}
	if err := ValidateMirrorConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate mirror config: %w", err)
	}
	serviceLog := log.With("service", "ArtifactMirror")

	stClient, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info(
		"Artifact mirror initialized",
		"mode", cfg.Mode,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"emulator_host", cfg.EmulatorHost,
	)
	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		cfg:           cfg,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg MirrorConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("invalid object storage mode %q", cfg.Mode)
	}
}

func (bs *bucketService) objectName(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.cfg.Prefix == "" {
		return key
	}
	return path.Join(bs.cfg.Prefix, key)
}

func (bs *bucketService) Upload(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := bs.objectName(key)
	w := bs.storageClient.Bucket(bs.cfg.Bucket).Object(name).NewWriter(ctx)
	if ct := contentTypeForKey(name); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *bucketService) Exists(ctx context.Context, key string) (bool, error) {
	name := bs.objectName(key)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if bs.cfg.IsEmulatorMode() {
		return bs.emulatorExists(ctx, name)
	}
	_, err := bs.storageClient.Bucket(bs.cfg.Bucket).Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch GCS object attrs: %w", err)
	}
	return true, nil
}

func (bs *bucketService) emulatorExists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bs.emulatorObjectMetaURL(name), nil)
	if err != nil {
		return false, fmt.Errorf("failed creating emulator attrs request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed emulator attrs request: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("emulator attrs failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (bs *bucketService) emulatorObjectMetaURL(name string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s",
		strings.TrimRight(bs.cfg.EmulatorHost, "/"),
		url.PathEscape(bs.cfg.Bucket),
		url.PathEscape(name),
	)
}

func (bs *bucketService) PublicURL(key string) string {
	name := bs.objectName(key)
	if bs.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cfg.CDNDomain, name)
	}
	if bs.cfg.IsEmulatorMode() {
		base := bs.cfg.PublicBaseURL
		if base == "" {
			base = bs.cfg.EmulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", strings.TrimRight(base, "/"), url.PathEscape(bs.cfg.Bucket), url.PathEscape(name))
	}
	if bs.cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.cfg.PublicBaseURL, bs.cfg.Bucket, name)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.cfg.Bucket, name)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".pptx"):
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
