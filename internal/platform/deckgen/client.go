package deckgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/httpx"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/envutil"
)

const providerName = "deckgen"

// Request is one document generation job.
type Request struct {
	Prompt       string `json:"prompt"`
	TemplateID   string `json:"templateId,omitempty"`
	ExportFormat string `json:"exportFormat,omitempty"`
}

// Status is one poll observation, normalized.
type Status struct {
	JobID       string
	State       State
	RawStatus   string
	ArtifactURL string
	Message     string
}

type Result struct {
	JobID       string
	ArtifactURL string
	Attempts    int
}

// Client submits document jobs and waits for their artifact.
type Client interface {
	Submit(ctx context.Context, req Request) (string, error)
	Poll(ctx context.Context, jobID string) (Status, error)
	// Wait polls until the job is terminal or attempts run out.
	Wait(ctx context.Context, jobID string) (Result, error)
	// ExportURL derives the provider's export endpoint for an artifact link.
	ExportURL(artifactURL, format string) (string, bool)
}

type Config struct {
	APIKey          string
	BaseURL         string
	ExportBaseURL   string
	TemplateID      string
	ExportFormat    string
	PollInterval    time.Duration
	MaxPollAttempts int
	SuccessStatuses []string
	FailureStatuses []string
	Timeout         time.Duration
	MaxRetries      int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:          strings.TrimSpace(envutil.String("DECK_API_KEY", "")),
		BaseURL:         envutil.String("DECK_BASE_URL", "https://public-api.gamma.app/v0.2"),
		ExportBaseURL:   envutil.String("DECK_EXPORT_BASE_URL", "https://gamma.app/export"),
		TemplateID:      envutil.String("DECK_TEMPLATE_ID", ""),
		ExportFormat:    envutil.String("DECK_EXPORT_FORMAT", "pdf"),
		PollInterval:    envutil.Seconds("DECK_POLL_INTERVAL_SECONDS", 5*time.Second),
		MaxPollAttempts: envutil.Int("DECK_MAX_POLL_ATTEMPTS", 120),
		SuccessStatuses: envutil.List("DECK_SUCCESS_STATUSES", DefaultSuccessStatuses),
		FailureStatuses: envutil.List("DECK_FAILURE_STATUSES", DefaultFailureStatuses),
		Timeout:         envutil.Seconds("DECK_TIMEOUT_SECONDS", 60*time.Second),
		MaxRetries:      envutil.Int("DECK_MAX_RETRIES", 3),
	}
}

type client struct {
	log        *logger.Logger
	baseURL    string
	exportBase string
	apiKey     string
	templateID string
	format     string
	interval   time.Duration
	attempts   int
	statuses   StatusSet
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing DECK_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing DECK_BASE_URL")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 120
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if strings.TrimSpace(cfg.ExportFormat) == "" {
		cfg.ExportFormat = "pdf"
	}
	return &client{
		log:        log.With("service", "DeckGenClient"),
		baseURL:    baseURL,
		exportBase: strings.TrimRight(strings.TrimSpace(cfg.ExportBaseURL), "/"),
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		format:     cfg.ExportFormat,
		interval:   cfg.PollInterval,
		attempts:   cfg.MaxPollAttempts,
		statuses:   NewStatusSet(cfg.SuccessStatuses, cfg.FailureStatuses),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *client) Submit(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt required", pkgerrors.ErrInvalidArgument)
	}
	if req.TemplateID == "" {
		req.TemplateID = c.templateID
	}
	if req.ExportFormat == "" {
		req.ExportFormat = c.format
	}

	body, err := c.do(ctx, http.MethodPost, "/generations", req)
	if err != nil {
		return "", err
	}
	jobID := extractJobID(body)
	if jobID == "" {
		return "", &pkgerrors.ProviderFailureError{
			Provider: providerName,
			Message:  "submit response missing generation id",
		}
	}
	c.log.Info("Deck job submitted", "job_id", jobID)
	return jobID, nil
}

func (c *client) Poll(ctx context.Context, jobID string) (Status, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Status{}, fmt.Errorf("%w: job id required", pkgerrors.ErrInvalidArgument)
	}
	body, err := c.do(ctx, http.MethodGet, "/generations/"+url.PathEscape(jobID), nil)
	if err != nil {
		return Status{}, err
	}
	raw := extractStatus(body)
	return Status{
		JobID:       jobID,
		State:       c.statuses.Classify(raw),
		RawStatus:   raw,
		ArtifactURL: ExtractArtifactURL(body),
		Message:     extractMessage(body),
	}, nil
}

func (c *client) Wait(ctx context.Context, jobID string) (Result, error) {
	out := Result{JobID: jobID}
	for attempt := 1; attempt <= c.attempts; attempt++ {
		out.Attempts = attempt

		st, err := c.Poll(ctx, jobID)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return out, ctx.Err()
		case httpx.IsRetryableError(err):
			c.log.Warn("Deck poll failed; will poll again", "job_id", jobID, "attempt", attempt, "error", err)
		default:
			return out, err
		}

		if err == nil {
			switch st.State {
			case StateSucceeded:
				if st.ArtifactURL == "" {
					return out, &pkgerrors.ProviderFailureError{
						Provider: providerName,
						JobID:    jobID,
						Status:   st.RawStatus,
						Err:      pkgerrors.ErrArtifactNotFound,
					}
				}
				out.ArtifactURL = st.ArtifactURL
				c.log.Info("Deck job completed", "job_id", jobID, "attempts", attempt)
				return out, nil
			case StateFailed:
				msg := st.Message
				if msg == "" {
					msg = "document generation " + st.RawStatus
				}
				return out, &pkgerrors.ProviderFailureError{
					Provider: providerName,
					JobID:    jobID,
					Status:   st.RawStatus,
					Message:  msg,
				}
			}
		}

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return out, &pkgerrors.ProviderTimeoutError{Provider: providerName, JobID: jobID, Attempts: c.attempts}
}

// ExportURL maps a document link such as https://host/docs/title-abc123 to
// <export base>/abc123?format=pdf.
func (c *client) ExportURL(artifactURL, format string) (string, bool) {
	if c.exportBase == "" {
		return "", false
	}
	id := documentID(artifactURL)
	if id == "" {
		return "", false
	}
	if format == "" {
		format = c.format
	}
	return c.exportBase + "/" + url.PathEscape(id) + "?format=" + url.QueryEscape(format), true
}

func documentID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u == nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if last == "" {
		return ""
	}
	if i := strings.LastIndex(last, "-"); i >= 0 && i < len(last)-1 {
		last = last[i+1:]
	}
	return last
}

func (c *client) doOnce(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, payload any) (map[string]any, error) {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, method, path, payload)
		if err == nil {
			body := map[string]any{}
			if len(bytes.TrimSpace(raw)) == 0 {
				return body, nil
			}
			if uErr := json.Unmarshal(raw, &body); uErr != nil {
				return nil, fmt.Errorf("deckgen decode error: %w", uErr)
			}
			return body, nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			var se *httpx.StatusError
			if errors.As(err, &se) && !httpx.IsRetryableHTTPStatus(se.StatusCode) {
				return nil, &pkgerrors.ProviderFailureError{Provider: providerName, Status: fmt.Sprint(se.StatusCode), Err: err}
			}
			return nil, err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Deck request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("unreachable retry loop")
}
