// Package whisperhttp implements [transcribe.Provider] against a
// whisper-server HTTP endpoint that accepts multipart WAV uploads and
// optionally extracts scripture references server-side.
//
// The wire contract is a POST of the audio under the "audio" form field to
// {base}/transcribe, answered with:
//
//	{"text": "...", "bible_references": [{"book": "John", "chapter": 3, "verse": 16, "text": "..."}]}
//
// and a plain-text POST to {base}/lookup for [transcribe.Provider.LookupText].
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// Config holds the connection settings for a whisper-server endpoint.
type Config struct {
	// BaseURL of the server, e.g. "http://localhost:8178".
	BaseURL string

	// Timeout per request. Default: 15s.
	Timeout time.Duration

	// Language hint forwarded with each upload; empty auto-detects.
	Language string

	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// Client is a [transcribe.Provider] backed by a whisper-server endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

var _ transcribe.Provider = (*Client)(nil)

// New creates a Client. Returns an error when the base URL is missing.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("whisperhttp: base URL must not be empty")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, client: client, log: log}, nil
}

// refJSON mirrors the endpoint's reference objects.
type refJSON struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

type transcribeResponse struct {
	Text            string    `json:"text"`
	Language        string    `json:"language"`
	BibleReferences []refJSON `json:"bible_references"`
}

type lookupResponse struct {
	BibleReferences []refJSON `json:"bible_references"`
}

// Transcribe implements [transcribe.Provider]. The segment is uploaded as a
// multipart WAV; endpoint-resolved references ride along in the result.
func (c *Client) Transcribe(ctx context.Context, seg transcribe.Segment) (transcribe.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audio", "segment.wav")
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: building upload: %w", err)
	}
	if _, err := part.Write(seg.WAV); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: building upload: %w", err)
	}
	lang := seg.Language
	if lang == "" {
		lang = c.cfg.Language
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return transcribe.Result{}, fmt.Errorf("whisperhttp: building upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transcribe", &body)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: uploading segment: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: reading response: %w", err)
	}
	if cerr := transcribe.ClassifyStatus(resp.StatusCode, string(payload)); cerr != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: %s/transcribe: %w", c.cfg.BaseURL, cerr)
	}

	var tr transcribeResponse
	if err := json.Unmarshal(payload, &tr); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: decoding response: %w", err)
	}

	c.log.Debug("segment transcribed",
		"chars", len(tr.Text),
		"references", len(tr.BibleReferences),
		"elapsed", time.Since(start))

	return transcribe.Result{
		Text:       strings.TrimSpace(tr.Text),
		Language:   tr.Language,
		Duration:   seg.Duration,
		References: toReferences(tr.BibleReferences),
	}, nil
}

// LookupText implements [transcribe.Provider] via the endpoint's plain-text
// reference extraction route.
func (c *Client) LookupText(ctx context.Context, text string) ([]transcribe.Reference, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("whisperhttp: encoding lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/lookup", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("whisperhttp: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisperhttp: lookup request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("whisperhttp: reading response: %w", err)
	}
	if cerr := transcribe.ClassifyStatus(resp.StatusCode, string(body)); cerr != nil {
		return nil, fmt.Errorf("whisperhttp: %s/lookup: %w", c.cfg.BaseURL, cerr)
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("whisperhttp: decoding response: %w", err)
	}
	return toReferences(lr.BibleReferences), nil
}

func toReferences(refs []refJSON) []transcribe.Reference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]transcribe.Reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, transcribe.Reference{
			Book:    r.Book,
			Chapter: r.Chapter,
			Verse:   r.Verse,
			Text:    r.Text,
		})
	}
	return out
}
