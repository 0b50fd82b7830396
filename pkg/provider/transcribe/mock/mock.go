// Package mock provides scriptable in-memory implementations of
// [transcribe.Provider] and [transcribe.StreamingProvider] for unit tests.
//
// All mocks are safe for concurrent use. They record every call so tests can
// assert on call counts and arguments, and expose exported fields controlling
// return values.
package mock

import (
	"context"
	"sync"

	"github.com/versecast/versecast/pkg/provider/transcribe"
)

// ─── Provider ─────────────────────────────────────────────────────────────────

// TranscribeCall records the arguments of one Transcribe invocation.
type TranscribeCall struct {
	Segment transcribe.Segment
}

// Provider is a scripted implementation of [transcribe.Provider] and
// [transcribe.StreamingProvider].
type Provider struct {
	mu sync.Mutex

	// Results are returned by successive Transcribe calls; the last entry
	// repeats once the script is exhausted.
	Results []transcribe.Result

	// Errs are returned by successive Transcribe calls alongside Results;
	// a short slice is padded with nil.
	Errs []error

	// LookupResults is returned by LookupText.
	LookupResults []transcribe.Reference

	// LookupErr is returned by LookupText.
	LookupErr error

	// StartStreamErr makes StartStream fail, simulating a backend that
	// cannot establish sessions.
	StartStreamErr error

	// TranscribeCalls records all Transcribe invocations.
	TranscribeCalls []TranscribeCall

	// LookupCalls records the text arguments of LookupText invocations.
	LookupCalls []string

	// Sessions records every session handed out by StartStream.
	Sessions []*Session

	calls int
}

var (
	_ transcribe.Provider          = (*Provider)(nil)
	_ transcribe.StreamingProvider = (*Provider)(nil)
)

// Transcribe implements [transcribe.Provider]. Returns the scripted result
// and error for this call position.
func (p *Provider) Transcribe(_ context.Context, seg transcribe.Segment) (transcribe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Segment: seg})
	i := p.calls
	p.calls++

	var err error
	if i < len(p.Errs) {
		err = p.Errs[i]
	}
	var res transcribe.Result
	if len(p.Results) > 0 {
		if i >= len(p.Results) {
			i = len(p.Results) - 1
		}
		res = p.Results[i]
	}
	return res, err
}

// TranscribeCallCount reports how many Transcribe calls have happened. Safe
// to poll while the pipeline under test is still uploading.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LookupText implements [transcribe.Provider].
func (p *Provider) LookupText(_ context.Context, text string) ([]transcribe.Reference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LookupCalls = append(p.LookupCalls, text)
	return p.LookupResults, p.LookupErr
}

// StartStream implements [transcribe.StreamingProvider]. Each call hands out
// a fresh [Session] that the test scripts via Emit/Fail.
func (p *Provider) StartStream(context.Context, transcribe.StreamConfig) (transcribe.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := NewSession()
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is a scriptable [transcribe.SessionHandle]. Tests drive it with
// Emit and Fail; the pipeline under test consumes Results.
type Session struct {
	mu sync.Mutex

	// SendAudioErr is returned by SendAudio.
	SendAudioErr error

	// SentChunks records all audio handed to SendAudio.
	SentChunks [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int

	results chan transcribe.Result
	closed  bool
	err     error
}

var _ transcribe.SessionHandle = (*Session)(nil)

// NewSession creates a Session with a buffered result channel.
func NewSession() *Session {
	return &Session{results: make(chan transcribe.Result, 64)}
}

// SendAudio implements [transcribe.SessionHandle].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentChunks = append(s.SentChunks, chunk)
	return s.SendAudioErr
}

// SentChunkCount reports how many chunks SendAudio has received. Safe to
// poll while the pipeline under test is still streaming.
func (s *Session) SentChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SentChunks)
}

// Results implements [transcribe.SessionHandle].
func (s *Session) Results() <-chan transcribe.Result { return s.results }

// Err implements [transcribe.SessionHandle].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements [transcribe.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closeLocked()
	return nil
}

// Emit delivers a result to the pipeline under test.
func (s *Session) Emit(res transcribe.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results <- res
}

// Fail ends the session with err, simulating a mid-stream failure.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.results)
	}
}
