package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/provider/embeddings"
	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// pipeline dependency. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transcribe map[string]func(TranscribeEntry) (transcribe.Provider, error)
	streaming  map[string]func(TranscribeEntry) (transcribe.StreamingProvider, error)
	embeddings map[string]func(SemanticConfig) (embeddings.Provider, error)
	devices    map[string]func(CaptureConfig) (audio.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcribe: make(map[string]func(TranscribeEntry) (transcribe.Provider, error)),
		streaming:  make(map[string]func(TranscribeEntry) (transcribe.StreamingProvider, error)),
		embeddings: make(map[string]func(SemanticConfig) (embeddings.Provider, error)),
		devices:    make(map[string]func(CaptureConfig) (audio.Device, error)),
	}
}

// RegisterTranscribe registers a segment transcription backend factory under
// name. Subsequent calls with the same name overwrite the previous
// registration.
func (r *Registry) RegisterTranscribe(name string, factory func(TranscribeEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribe[name] = factory
}

// RegisterStreaming registers a streaming transcription backend factory
// under name.
func (r *Registry) RegisterStreaming(name string, factory func(TranscribeEntry) (transcribe.StreamingProvider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaming[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(SemanticConfig) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterDevice registers an audio device factory under name.
func (r *Registry) RegisterDevice(name string, factory func(CaptureConfig) (audio.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[name] = factory
}

// CreateTranscribe instantiates the backend registered under entry.Provider.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateTranscribe(entry TranscribeEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcribe[entry.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcribe/%q", ErrProviderNotRegistered, entry.Provider)
	}
	return factory(entry)
}

// CreateStreaming instantiates the streaming backend registered under
// entry.Provider. [ErrProviderNotRegistered] also covers backends that only
// support segment uploads; callers fall back to the chunked strategy then.
func (r *Registry) CreateStreaming(entry TranscribeEntry) (transcribe.StreamingProvider, error) {
	r.mu.RLock()
	factory, ok := r.streaming[entry.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: streaming/%q", ErrProviderNotRegistered, entry.Provider)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates the embeddings provider registered under
// sem.Provider.
func (r *Registry) CreateEmbeddings(sem SemanticConfig) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[sem.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, sem.Provider)
	}
	return factory(sem)
}

// CreateDevice instantiates the audio device registered under cap.Source.
func (r *Registry) CreateDevice(cap CaptureConfig) (audio.Device, error) {
	r.mu.RLock()
	factory, ok := r.devices[string(cap.Source)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: device/%q", ErrProviderNotRegistered, cap.Source)
	}
	return factory(cap)
}
