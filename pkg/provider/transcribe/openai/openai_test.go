package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q, want /audio/transcriptions", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q, want en", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "turn with me to Romans 8:28"}`))
	}))
	defer srv.Close()

	p, err := New("test-key", "", WithBaseURL(srv.URL), WithLanguage("en"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := p.Transcribe(context.Background(), transcribe.Segment{
		WAV:      []byte("RIFFfake"),
		Duration: 6 * time.Second,
	})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if got.Text != "turn with me to Romans 8:28" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Duration != 6*time.Second {
		t.Errorf("Duration = %v, want 6s", got.Duration)
	}
}

func TestTranscribeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit reached", "type": "requests"}}`))
	}))
	defer srv.Close()

	p, err := New("test-key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), transcribe.Segment{WAV: []byte("x")})
	if !errors.Is(err, transcribe.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestLookupTextNotSupported(t *testing.T) {
	p, err := New("test-key", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := p.LookupText(context.Background(), "anything"); !errors.Is(err, transcribe.ErrNotSupported) {
		t.Fatalf("error = %v, want ErrNotSupported", err)
	}
}
