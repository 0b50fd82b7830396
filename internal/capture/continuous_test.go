package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/versecast/versecast/pkg/audio"
	audiomock "github.com/versecast/versecast/pkg/audio/mock"
	"github.com/versecast/versecast/pkg/provider/transcribe"
	transcribemock "github.com/versecast/versecast/pkg/provider/transcribe/mock"
)

// failureRecorder captures onFailure invocations.
type failureRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *failureRecorder) onFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *failureRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}

func startContinuous(t *testing.T, dev *audiomock.Device, provider *transcribemock.Provider, emit FragmentFunc, onFailure func(error)) (*ContinuousRecognizer, *transcribemock.Session) {
	t.Helper()
	rec := NewContinuousRecognizer(dev, provider, ContinuousConfig{}, nil)
	if err := rec.Start(context.Background(), "s1", emit, onFailure); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if len(provider.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(provider.Sessions))
	}
	return rec, provider.Sessions[0]
}

func TestContinuousRecognizerStreamsAudio(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{}
	rec, session := startContinuous(t, dev, provider, func(TranscriptFragment) {}, nil)
	defer rec.Stop()

	dev.Push(audio.AudioFrame{Data: []byte{1, 2, 3, 4}, SampleRate: 16000, Channels: 1})
	dev.Push(audio.AudioFrame{Data: []byte{5, 6, 7, 8}, SampleRate: 16000, Channels: 1})

	waitFor(t, func() bool { return session.SentChunkCount() == 2 },
		"audio never reached the streaming session")
}

func TestContinuousRecognizerEmitsResults(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{}
	sink := &fragmentSink{}
	rec, session := startContinuous(t, dev, provider, sink.emit, nil)
	defer rec.Stop()

	session.Emit(transcribe.Result{}) // empty text, skipped
	session.Emit(transcribe.Result{
		Text:       "turn with me to Romans 8",
		Confidence: 0.95,
		Duration:   3 * time.Second,
		References: []transcribe.Reference{{Book: "Romans", Chapter: 8, Verse: 1}},
	})

	waitFor(t, func() bool { return sink.len() == 1 }, "result never became a fragment")
	frag := sink.get(0)
	if frag.Text != "turn with me to Romans 8" {
		t.Errorf("Text = %q", frag.Text)
	}
	if frag.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", frag.SessionID)
	}
	if frag.Confidence != 0.95 {
		t.Errorf("Confidence = %v", frag.Confidence)
	}
	if len(frag.PreResolved) != 1 || frag.PreResolved[0].Book != "Romans" {
		t.Errorf("PreResolved = %+v", frag.PreResolved)
	}
}

func TestContinuousRecognizerReportsSessionFailureOnce(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{}
	rec := &failureRecorder{}
	recognizer, session := startContinuous(t, dev, provider, func(TranscriptFragment) {}, rec.onFailure)
	defer recognizer.Stop()

	session.Fail(errors.New("stream reset by peer"))

	waitFor(t, func() bool { return rec.count() == 1 }, "session failure never reported")
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("onFailure called %d times, want 1", rec.count())
	}
}

func TestContinuousRecognizerReportsSendFailure(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{}
	rec := &failureRecorder{}
	recognizer, session := startContinuous(t, dev, provider, func(TranscriptFragment) {}, rec.onFailure)
	defer recognizer.Stop()

	session.SendAudioErr = errors.New("connection lost")
	dev.Push(audio.AudioFrame{Data: []byte{1, 2}, SampleRate: 16000, Channels: 1})

	waitFor(t, func() bool { return rec.count() == 1 }, "send failure never reported")
}

func TestContinuousRecognizerStopIsClean(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{}
	rec := &failureRecorder{}
	recognizer, session := startContinuous(t, dev, provider, func(TranscriptFragment) {}, rec.onFailure)

	recognizer.Stop()
	recognizer.Stop() // idempotent

	if dev.CallCountStop != 1 {
		t.Errorf("device stopped %d times, want 1", dev.CallCountStop)
	}
	if session.CallCountClose != 1 {
		t.Errorf("session closed %d times, want 1", session.CallCountClose)
	}
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("clean stop reported %d failures, want 0", rec.count())
	}
}

func TestContinuousRecognizerStreamOpenFailureIsFatal(t *testing.T) {
	dev := audiomock.NewDevice()
	provider := &transcribemock.Provider{StartStreamErr: errors.New("backend unavailable")}
	rec := NewContinuousRecognizer(dev, provider, ContinuousConfig{}, nil)

	if err := rec.Start(context.Background(), "s1", func(TranscriptFragment) {}, nil); err == nil {
		t.Fatal("expected stream open failure to be fatal")
	}
	if dev.CallCountStart != 0 {
		t.Error("device opened despite stream failure")
	}
}

func TestContinuousRecognizerDeviceFailureClosesSession(t *testing.T) {
	dev := audiomock.NewDevice()
	dev.StartError = errors.New("no capture device")
	provider := &transcribemock.Provider{}
	rec := NewContinuousRecognizer(dev, provider, ContinuousConfig{}, nil)

	if err := rec.Start(context.Background(), "s1", func(TranscriptFragment) {}, nil); err == nil {
		t.Fatal("expected device open failure to be fatal")
	}
	if len(provider.Sessions) != 1 || provider.Sessions[0].CallCountClose != 1 {
		t.Error("orphaned streaming session not closed")
	}
}
