//go:build !whisper

// Stub build for binaries without the whisper.cpp static library. The real
// provider lives behind the "whisper" build tag.
package native

import (
	"context"
	"errors"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

var errNotBuilt = errors.New("native: built without the whisper tag")

// Provider is a placeholder; [New] always fails in this build.
type Provider struct{}

var _ transcribe.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the transcription language hint.
func WithLanguage(string) Option { return func(*Provider) {} }

// WithSampleRate sets the expected PCM sample rate.
func WithSampleRate(int) Option { return func(*Provider) {} }

// WithSilenceThresholdMs sets the streaming silence flush threshold.
func WithSilenceThresholdMs(int) Option { return func(*Provider) {} }

// WithMaxBufferDurationMs caps the streaming speech buffer.
func WithMaxBufferDurationMs(int) Option { return func(*Provider) {} }

// New reports that on-device transcription is unavailable. Rebuild with
// -tags whisper and libwhisper.a on the library path to enable it.
func New(string, ...Option) (*Provider, error) {
	return nil, errNotBuilt
}

// Transcribe implements [transcribe.Provider].
func (p *Provider) Transcribe(context.Context, transcribe.Segment) (transcribe.Result, error) {
	return transcribe.Result{}, errNotBuilt
}

// LookupText implements [transcribe.Provider].
func (p *Provider) LookupText(context.Context, string) ([]transcribe.Reference, error) {
	return nil, errNotBuilt
}

// Close implements io.Closer.
func (p *Provider) Close() error { return nil }
