package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/gcp"
)

var (
	ErrEmptyArtifact = errors.New("artifact is empty")
	ErrFetchFailed   = errors.New("artifact fetch failed")
	ErrInvalidKey    = errors.New("invalid artifact key")
)

// ExportResolver derives a provider export endpoint from an artifact link.
type ExportResolver interface {
	ExportURL(artifactURL, format string) (string, bool)
}

type Config struct {
	Root          string
	PublicPrefix  string
	FetchTimeout  time.Duration
	ExistsTimeout time.Duration
	MaxBytes      int64
	// PublicFromMirror makes Write return the mirror's URL once the upload
	// succeeded, so lessons reference the bucket instead of local disk.
	PublicFromMirror bool
}

// Persister stores generated artifacts under Root and answers whether a
// stored reference still resolves to bytes.
type Persister struct {
	log          *logger.Logger
	root         string
	publicPrefix string
	fromMirror   bool
	maxBytes     int64
	fetchClient  *http.Client
	headClient   *http.Client
	mirror       gcp.ArtifactMirror
}

type Option func(*Persister)

// WithMirror uploads every written artifact to the mirror as well.
func WithMirror(m gcp.ArtifactMirror) Option {
	return func(p *Persister) { p.mirror = m }
}

// WithHTTPClient replaces the client used for downloads and HEAD checks.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Persister) {
		p.fetchClient = c
		p.headClient = c
	}
}

func NewPersister(log *logger.Logger, cfg Config, opts ...Option) (*Persister, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("artifact root required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 2 * time.Minute
	}
	if cfg.ExistsTimeout <= 0 {
		cfg.ExistsTimeout = 5 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 200 << 20
	}
	p := &Persister{
		log:          log.With("service", "ArtifactPersister"),
		root:         absRoot,
		publicPrefix: "/" + strings.Trim(strings.TrimSpace(cfg.PublicPrefix), "/"),
		fromMirror:   cfg.PublicFromMirror,
		maxBytes:     cfg.MaxBytes,
		fetchClient:  &http.Client{Timeout: cfg.FetchTimeout},
		headClient:   &http.Client{Timeout: cfg.ExistsTimeout},
	}
	if p.publicPrefix == "/" {
		p.publicPrefix = ""
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Persister) Root() string { return p.root }

// PublicPath is the canonical reference stored on a lesson for key.
func (p *Persister) PublicPath(key string) string {
	return p.publicPrefix + "/" + strings.TrimLeft(path.Clean("/"+key), "/")
}

// Write stores data at key and returns its public path, or the mirror URL when
// PublicFromMirror is set and the upload went through. The file appears
// atomically; a failed write leaves nothing behind.
func (p *Persister) Write(ctx context.Context, key string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := p.localPathForKey(key)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(dest, data); err != nil {
		return "", pkgerrors.Infrastructure("write artifact", err)
	}

	public := p.PublicPath(key)
	if p.mirror != nil {
		if err := p.mirror.Upload(ctx, key, data); err != nil {
			p.log.Warn("Artifact mirror upload failed", "key", key, "error", err)
		} else if p.fromMirror {
			public = p.mirror.PublicURL(key)
		}
	}

	p.log.Info("Artifact written", "key", key, "path", public, "size_bytes", len(data))
	return public, nil
}

// Download fetches a remote artifact and writes it at key. It tries the URL as
// given, then the URL with export=<format>, then the export endpoint derived by
// resolver, and stops at the first response that looks like the format.
func (p *Persister) Download(ctx context.Context, rawURL, key, format string, resolver ExportResolver) (string, int64, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "pdf"
	}

	candidates := []string{strings.TrimSpace(rawURL)}
	if u := withExportParam(rawURL, format); u != "" {
		candidates = append(candidates, u)
	}
	if resolver != nil {
		if u, ok := resolver.ExportURL(rawURL, format); ok {
			candidates = append(candidates, u)
		}
	}

	var errs []error
	for i, candidate := range candidates {
		data, err := p.fetch(ctx, candidate, format)
		if err != nil {
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			p.log.Debug("Artifact fetch attempt failed", "attempt", i+1, "url", candidate, "error", err)
			errs = append(errs, fmt.Errorf("attempt %d: %w", i+1, err))
			continue
		}
		public, err := p.Write(ctx, key, data)
		if err != nil {
			return "", 0, err
		}
		return public, int64(len(data)), nil
	}
	return "", 0, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, errors.Join(errs...))
}

func (p *Persister) fetch(ctx context.Context, rawURL, format string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.fetchClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", p.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyArtifact
	}
	if !looksLike(format, resp.Header.Get("Content-Type"), data) {
		return nil, fmt.Errorf("response is not %s (content-type %q)", format, resp.Header.Get("Content-Type"))
	}
	return data, nil
}

func looksLike(format, contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	switch format {
	case "pdf":
		return strings.Contains(ct, "application/pdf") || bytes.HasPrefix(data, []byte("%PDF"))
	default:
		return !strings.Contains(ct, "text/html")
	}
}

func withExportParam(rawURL, format string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	q := u.Query()
	if q.Get("export") == format {
		return ""
	}
	q.Set("export", format)
	u.RawQuery = q.Encode()
	return u.String()
}

// Exists reports whether ref resolves to stored bytes. Local references are
// checked on disk, then in the mirror when the file is gone; http(s)
// references with a bounded HEAD request. Only a local filesystem failure
// other than absence is returned as an error.
func (p *Persister) Exists(ctx context.Context, ref string) (bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false, nil
	}
	if isRemote(ref) {
		return p.remoteExists(ctx, ref), nil
	}

	local, err := p.LocalPath(ref)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(local)
	if errors.Is(err, fs.ErrNotExist) {
		return p.mirrorExists(ctx, local), nil
	}
	if err != nil {
		return false, pkgerrors.Infrastructure("stat artifact", err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// mirrorExists asks the mirror for the key behind a local path. Mirror errors
// count as missing.
func (p *Persister) mirrorExists(ctx context.Context, local string) bool {
	if p.mirror == nil {
		return false
	}
	rel, err := filepath.Rel(p.root, local)
	if err != nil {
		return false
	}
	key := filepath.ToSlash(rel)
	ok, err := p.mirror.Exists(ctx, key)
	if err != nil {
		p.log.Warn("Artifact mirror lookup failed", "key", key, "error", err)
		return false
	}
	if ok {
		p.log.Debug("Artifact found in mirror only", "key", key)
	}
	return ok
}

func (p *Persister) remoteExists(ctx context.Context, ref string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref, nil)
	if err != nil {
		return false
	}
	resp, err := p.headClient.Do(req)
	if err != nil {
		p.log.Debug("Artifact HEAD failed", "url", ref, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// LocalPath maps a public path (or a key) to its file under Root.
func (p *Persister) LocalPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if p.publicPrefix != "" {
		ref = strings.TrimPrefix(ref, p.publicPrefix)
	}
	return p.localPathForKey(ref)
}

func (p *Persister) localPathForKey(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", ErrInvalidKey
	}
	full := filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	rel, err := filepath.Rel(p.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidKey
	}
	return full, nil
}

func isRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func writeFileAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", dest, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", dest, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", dest, err)
	}
	return nil
}
