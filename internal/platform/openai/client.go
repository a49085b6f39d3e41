package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/yungbote/diveops-backend/internal/pkg/httpx"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/envutil"
)

// MaxSpeechInputChars is the per-request input cap of the speech endpoint.
const MaxSpeechInputChars = 4096

var ErrSpeechInputTooLong = errors.New("speech input exceeds 4096 characters")

// Client is the OpenAI API surface used by the content pipeline.
type Client interface {
	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Synthesize renders one chunk of narration to audio bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	SpeechModel    string
	SpeechVoice    string
	SpeechFormat   string
	Timeout        time.Duration
	SpeechTimeout  time.Duration
	MaxRetries     int
	Temperature    *float64
	NoTempModels   []string
	RetryBaseDelay time.Duration
}

// ConfigFromEnv reads OPENAI_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:         strings.TrimSpace(envutil.String("OPENAI_API_KEY", "")),
		BaseURL:        envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:          envutil.String("OPENAI_MODEL", "gpt-4.1-mini"),
		SpeechModel:    envutil.String("OPENAI_TTS_MODEL", "tts-1"),
		SpeechVoice:    envutil.String("OPENAI_TTS_VOICE", "alloy"),
		SpeechFormat:   envutil.String("OPENAI_TTS_FORMAT", "mp3"),
		Timeout:        envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		SpeechTimeout:  envutil.Seconds("OPENAI_TTS_TIMEOUT_SECONDS", 120*time.Second),
		MaxRetries:     envutil.Int("OPENAI_MAX_RETRIES", 4),
		NoTempModels:   envutil.List("OPENAI_NO_TEMPERATURE_MODELS", nil),
		RetryBaseDelay: time.Second,
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		t := envutil.Float("OPENAI_TEMPERATURE", 0.4)
		cfg.Temperature = &t
	}
	return cfg
}

type client struct {
	log          *logger.Logger
	baseURL      string
	apiKey       string
	model        string
	speechModel  string
	speechVoice  string
	speechFormat string
	httpClient   *http.Client
	speechClient *http.Client

	maxRetries int
	retryBase  time.Duration

	temperature *float64

	// Models that rejected temperature once are remembered and sent without it.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = cfg.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if strings.TrimSpace(cfg.SpeechFormat) == "" {
		cfg.SpeechFormat = "mp3"
	}

	noTemp := map[string]bool{}
	for _, m := range cfg.NoTempModels {
		if k := normalizeModelKey(m); k != "" {
			noTemp[k] = true
		}
	}

	return &client{
		log:          log.With("service", "OpenAIClient"),
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		speechModel:  cfg.SpeechModel,
		speechVoice:  cfg.SpeechVoice,
		speechFormat: cfg.SpeechFormat,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		speechClient: &http.Client{Timeout: cfg.SpeechTimeout},
		maxRetries:   cfg.MaxRetries,
		retryBase:    cfg.RetryBaseDelay,
		temperature:  cfg.Temperature,
		noTempSeen:   noTemp,
	}, nil
}

func normalizeModelKey(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

func (c *client) modelIsNoTemp(model string) bool {
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTempSeen[normalizeModelKey(model)]
}

func (c *client) noteNoTempModel(model string) {
	key := normalizeModelKey(model)
	if key == "" {
		return
	}
	c.noTempMu.Lock()
	c.noTempSeen[key] = true
	c.noTempMu.Unlock()
	c.log.Info("Model rejected temperature; omitting from now on", "model", model)
}

func (c *client) applyTemperature(req *responsesRequest) {
	if req == nil || c.temperature == nil {
		return
	}
	if c.modelIsNoTemp(req.Model) {
		return
	}
	req.Temperature = c.temperature
}

func isUnsupportedTemperatureParam(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported parameter", "unknown parameter", "not supported", "does not support", "only the default", "unsupported_value"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if httpClient == nil {
		httpClient = c.httpClient
	}
	resp, err := httpClient.Do(req)
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

// doWithClient sends the request with retry on retryable failures and returns
// the raw response body.
func (c *client) doWithClient(ctx context.Context, httpClient *http.Client, method, path string, body any) ([]byte, error) {
	backoff := c.retryBase

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, httpClient, method, path, body)
		if err == nil {
			return raw, nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
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

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	raw, err := c.doWithClient(ctx, c.httpClient, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
	}
	return nil
}

// doResponsesWithTempFallback retries exactly once without temperature if the model rejects it.
func (c *client) doResponsesWithTempFallback(ctx context.Context, req *responsesRequest, out any) error {
	err := c.doJSON(ctx, http.MethodPost, "/v1/responses", req, out)
	if err == nil {
		return nil
	}
	if req.Temperature == nil || !isUnsupportedTemperatureParam(err) {
		return err
	}
	c.noteNoTempModel(req.Model)
	req.Temperature = nil
	return c.doJSON(ctx, http.MethodPost, "/v1/responses", req, out)
}

// -------------------- Responses API --------------------

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	c.applyTemperature(&req)

	var resp responsesResponse
	if err := c.doResponsesWithTempFallback(ctx, &req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

// -------------------- Audio speech --------------------

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

func (c *client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("speech input required")
	}
	if utf8.RuneCountInString(text) > MaxSpeechInputChars {
		return nil, ErrSpeechInputTooLong
	}

	req := speechRequest{
		Model:          c.speechModel,
		Voice:          c.speechVoice,
		Input:          text,
		ResponseFormat: c.speechFormat,
	}
	raw, err := c.doWithClient(ctx, c.speechClient, http.MethodPost, "/v1/audio/speech", req)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("speech response was empty")
	}
	return raw, nil
}
