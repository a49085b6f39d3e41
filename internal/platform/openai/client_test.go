package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/diveops-backend/internal/pkg/httpx"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	temp := 0.4
	c, err := NewClient(logger.Nop(), Config{
		APIKey:         "sk-test",
		BaseURL:        srv.URL,
		Model:          "test-model",
		SpeechModel:    "tts-test",
		SpeechVoice:    "alloy",
		MaxRetries:     2,
		Temperature:    &temp,
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestSynthesizeSendsSpeechRequest(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	audio, err := newTestClient(t, srv).Synthesize(context.Background(), "Descend slowly.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ID3-audio" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if got.Model != "tts-test" || got.Voice != "alloy" || got.ResponseFormat != "mp3" || got.Input != "Descend slowly." {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSynthesizeRejectsOversizeInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("oversize input must not reach the backend")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Synthesize(context.Background(), strings.Repeat("a", MaxSpeechInputChars+1))
	if !errors.Is(err, ErrSpeechInputTooLong) {
		t.Fatalf("expected ErrSpeechInputTooLong, got %v", err)
	}
}

func TestSynthesizeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv).Synthesize(context.Background(), "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestSynthesizeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad voice"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Synthesize(context.Background(), "hi")
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retries, got %d calls", calls.Load())
	}
}

func TestGenerateTextDropsRejectedTemperature(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls.Add(1)
		if strings.Contains(string(raw), `"temperature"`) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature'"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Welcome aboard."}]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	text, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "Welcome aboard." {
		t.Fatalf("unexpected text %q", text)
	}
	if _, err := c.GenerateText(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("second GenerateText: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected temperature to be remembered, got %d calls", calls.Load())
	}
}
