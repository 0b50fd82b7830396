package operator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/versecast/versecast/internal/capture"
	"github.com/versecast/versecast/internal/detect"
	"github.com/versecast/versecast/internal/match"
	"github.com/versecast/versecast/internal/projection"
	"github.com/versecast/versecast/internal/verse"
	"github.com/versecast/versecast/pkg/audio"
)

// ─── Fakes ───

type fakeSessions struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func (f *fakeSessions) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSessions) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSessions) State() capture.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capture.SessionState{Active: f.starts > f.stops, SessionID: "session-1"}
}

func (f *fakeSessions) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results []match.Candidate
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]match.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeSink struct {
	mu     sync.Mutex
	frames []audio.AudioFrame
}

func (f *fakeSink) Push(frame audio.AudioFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// ─── Helpers ───

func testVerse() verse.Verse {
	return verse.Verse{
		ID: "43003016", Book: "John", Chapter: 3, VerseNum: 16,
		Text: "For God so loved the world", Translation: "KJV",
	}
}

type testEnv struct {
	sessions *fakeSessions
	searcher *fakeSearcher
	sink     *fakeSink
	coord    *projection.Coordinator
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions: &fakeSessions{},
		searcher: &fakeSearcher{},
		sink:     &fakeSink{},
		coord:    projection.NewCoordinator(),
	}
	server := NewServer(env.sessions, env.searcher, env.coord, WithIngest(env.sink))
	env.srv = httptest.NewServer(server.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

// dialWS connects to path and drains the initial session_state and
// projection events every console receives on connect.
func (env *testEnv) dialWS(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing /ws: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	for _, want := range []string{EventSessionState, EventProjection} {
		ev := readEvent(t, conn)
		if ev.Type != want {
			t.Fatalf("initial event = %q, want %q", ev.Type, want)
		}
	}
	return conn
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	return ev
}

// waitForEvent reads events until one of the given type arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	for range 10 {
		ev := readEvent(t, conn)
		if ev.Type == typ {
			return ev.Payload
		}
	}
	t.Fatalf("no %q event arrived", typ)
	return nil
}

func sendCommand(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	cmd := Command{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encoding payload: %v", err)
		}
		cmd.Payload = data
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("encoding command: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("writing command: %v", err)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ─── Tests ───

func TestStartAndStopListening(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdStartListening, nil)
	waitUntil(t, func() bool { starts, _ := env.sessions.counts(); return starts == 1 })

	sendCommand(t, conn, CmdStopListening, nil)
	waitUntil(t, func() bool { _, stops := env.sessions.counts(); return stops == 1 })
}

func TestStartFailureReportsError(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.startErr = errors.New("no audio device")
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdStartListening, nil)

	var p ErrorWire
	if err := json.Unmarshal(waitForEvent(t, conn, EventError), &p); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if !strings.Contains(p.Message, "no audio device") {
		t.Errorf("error message = %q, want device failure", p.Message)
	}
}

func TestManualSearchRepliesToCaller(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.results = []match.Candidate{
		{Verse: testVerse(), Confidence: 0.9, Strategy: match.StrategyPhrase},
	}
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdManualSearch, ManualSearchPayload{Query: "god so loved"})

	var p SearchResultsWire
	if err := json.Unmarshal(waitForEvent(t, conn, EventSearchResults), &p); err != nil {
		t.Fatalf("decoding search results: %v", err)
	}
	if p.Query != "god so loved" {
		t.Errorf("query = %q", p.Query)
	}
	if len(p.Candidates) != 1 || p.Candidates[0].Verse.ID != "43003016" {
		t.Fatalf("candidates = %+v", p.Candidates)
	}
	if p.Candidates[0].Strategy != "phrase" {
		t.Errorf("strategy = %q", p.Candidates[0].Strategy)
	}
}

func TestSearchFailureReportsError(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.err = match.ErrUnavailable
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdManualSearch, ManualSearchPayload{Query: "anything"})

	var p ErrorWire
	if err := json.Unmarshal(waitForEvent(t, conn, EventError), &p); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if !strings.Contains(p.Message, "search failed") {
		t.Errorf("error message = %q", p.Message)
	}
}

func TestSelectVerseBroadcastsProjection(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdSelectVerse, SelectVersePayload{Verse: testVerse()})

	var snap projection.Snapshot
	if err := json.Unmarshal(waitForEvent(t, conn, EventProjection), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Content.Kind != projection.ContentVerse {
		t.Fatalf("content kind = %v, want verse", snap.Content.Kind)
	}
	if snap.Content.Verse == nil || snap.Content.Verse.ID != "43003016" {
		t.Errorf("verse = %+v", snap.Content.Verse)
	}
}

func TestOverlayAndModeCommands(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdToggleOverlay, OverlayPayload{Overlay: "black"})
	var snap projection.Snapshot
	if err := json.Unmarshal(waitForEvent(t, conn, EventProjection), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Overlay != projection.OverlayBlack {
		t.Fatalf("overlay = %v, want black", snap.Overlay)
	}

	sendCommand(t, conn, CmdSetMode, SetModePayload{Mode: "preview"})
	if err := json.Unmarshal(waitForEvent(t, conn, EventProjection), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Mode != projection.ModePreview {
		t.Fatalf("mode = %v, want preview", snap.Mode)
	}
}

func TestSectionCommandsMoveCursor(t *testing.T) {
	env := newTestEnv(t)
	env.coord.SelectContent(projection.SongContent(projection.Song{
		Title:    "Amazing Grace",
		Sections: []string{"v1", "v2", "v3"},
	}))
	conn := env.dialWS(t)

	sendCommand(t, conn, CmdNextSection, nil)
	var snap projection.Snapshot
	if err := json.Unmarshal(waitForEvent(t, conn, EventProjection), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Cursor != 1 {
		t.Fatalf("cursor = %d, want 1", snap.Cursor)
	}

	sendCommand(t, conn, CmdPrevSection, nil)
	if err := json.Unmarshal(waitForEvent(t, conn, EventProjection), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Cursor != 0 {
		t.Fatalf("cursor = %d, want 0", snap.Cursor)
	}
}

func TestUnknownCommandReportsError(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dialWS(t)

	sendCommand(t, conn, "launch_confetti", nil)

	var p ErrorWire
	if err := json.Unmarshal(waitForEvent(t, conn, EventError), &p); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if !strings.Contains(p.Message, "unknown command") {
		t.Errorf("error message = %q", p.Message)
	}
}

func TestDetectionBroadcastReachesAllConsoles(t *testing.T) {
	env := &testEnv{
		sessions: &fakeSessions{},
		searcher: &fakeSearcher{},
		coord:    projection.NewCoordinator(),
	}
	server := NewServer(env.sessions, env.searcher, env.coord)
	env.srv = httptest.NewServer(server.Handler())
	t.Cleanup(env.srv.Close)

	first := env.dialWS(t)
	second := env.dialWS(t)

	server.BroadcastDetection(detect.DetectionEvent{
		Candidates: []match.Candidate{
			{Verse: testVerse(), Confidence: 1.0, Strategy: match.StrategyReference},
		},
		Fragment:   capture.TranscriptFragment{Text: "turn to john three sixteen", SessionID: "session-1"},
		DetectedAt: time.Now(),
	})

	for _, conn := range []*websocket.Conn{first, second} {
		var p DetectionWire
		if err := json.Unmarshal(waitForEvent(t, conn, EventDetection), &p); err != nil {
			t.Fatalf("decoding detection: %v", err)
		}
		if p.SessionID != "session-1" || len(p.Candidates) != 1 {
			t.Fatalf("detection = %+v", p)
		}
		if p.Candidates[0].Strategy != "reference" {
			t.Errorf("strategy = %q", p.Candidates[0].Strategy)
		}
	}
}

func TestSessionStateBroadcast(t *testing.T) {
	env := &testEnv{
		sessions: &fakeSessions{},
		searcher: &fakeSearcher{},
		coord:    projection.NewCoordinator(),
	}
	server := NewServer(env.sessions, env.searcher, env.coord)
	env.srv = httptest.NewServer(server.Handler())
	t.Cleanup(env.srv.Close)
	conn := env.dialWS(t)

	server.BroadcastSessionState(capture.SessionState{
		Active:    true,
		SessionID: "session-7",
		Strategy:  capture.KindChunked,
	})

	var p SessionStateWire
	if err := json.Unmarshal(waitForEvent(t, conn, EventSessionState), &p); err != nil {
		t.Fatalf("decoding session state: %v", err)
	}
	if !p.Active || p.SessionID != "session-7" || p.Strategy != "chunked-recorder" {
		t.Fatalf("state = %+v", p)
	}
}

func TestIngestSurvivesBadPackets(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ingest"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing /ingest: %v", err)
	}
	defer conn.CloseNow()

	// Text frames are ignored, undecodable binary is dropped; neither must
	// close the stream.
	if err := conn.Write(ctx, websocket.MessageText, []byte("hello")); err != nil {
		t.Fatalf("writing text frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("writing garbage packet: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("still here")); err != nil {
		t.Fatalf("stream closed after bad packet: %v", err)
	}
}
