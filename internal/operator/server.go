// Package operator is the websocket gateway for operator consoles.
//
// A console connects to /ws, sends JSON [Command] messages, and receives
// JSON [Event] messages: detections and session state changes from the
// capture pipeline, projection snapshots from the coordinator, and replies
// to its own searches. Remote audio arrives on /ingest as binary Opus
// packets and is decoded into the capture pipeline. The same mux serves
// Prometheus metrics and health probes.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/versecast/versecast/internal/capture"
	"github.com/versecast/versecast/internal/detect"
	"github.com/versecast/versecast/internal/health"
	"github.com/versecast/versecast/internal/match"
	"github.com/versecast/versecast/internal/observe"
	"github.com/versecast/versecast/internal/projection"
	"github.com/versecast/versecast/pkg/audio"
	"github.com/versecast/versecast/pkg/audio/opus"
)

// SessionController starts and stops the capture session. Implemented by the
// application wiring around [capture.Supervisor], which binds the fragment
// pipeline.
type SessionController interface {
	Start(ctx context.Context) error
	Stop()
	State() capture.SessionState
}

// Searcher resolves manual queries; satisfied by [match.Matcher].
type Searcher interface {
	Search(ctx context.Context, query string) ([]match.Candidate, error)
}

// Presenter is the projection dependency; satisfied by
// [projection.Coordinator].
type Presenter interface {
	RegisterSurface(projection.Surface)
	SetMode(projection.Mode)
	SetOverlay(projection.Overlay)
	ToggleOverlay(projection.Overlay)
	SelectContent(projection.Content)
	NextSection()
	PrevSection()
	Snapshot() projection.Snapshot
}

// AudioSink receives decoded ingest frames; satisfied by the remote audio
// device.
type AudioSink interface {
	Push(audio.AudioFrame)
}

// Server is the operator-facing HTTP surface. Construct with [NewServer],
// mount [Server.Handler], and feed it pipeline events via the Broadcast
// methods.
type Server struct {
	log       *slog.Logger
	metrics   *observe.Metrics
	sessions  SessionController
	searcher  Searcher
	present   Presenter
	ingest    AudioSink
	ingestFmt audio.Format
	health    *health.Handler
	hub       *hub

	// baseCtx scopes capture sessions so they outlive the websocket request
	// that started them.
	baseCtx context.Context
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth registers health probe routes on the server mux.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithIngest enables the /ingest remote audio endpoint.
func WithIngest(sink AudioSink) Option {
	return func(s *Server) { s.ingest = sink }
}

// WithIngestFormat resamples decoded ingest audio to the given format before
// it reaches the sink. The zero value passes frames through as decoded.
func WithIngestFormat(f audio.Format) Option {
	return func(s *Server) { s.ingestFmt = f }
}

// WithBaseContext scopes capture sessions started by operators. Defaults to
// [context.Background].
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.baseCtx = ctx }
}

// NewServer creates a Server and registers itself as a projection surface so
// every state change reaches all connected consoles.
func NewServer(sessions SessionController, searcher Searcher, present Presenter, opts ...Option) *Server {
	s := &Server{
		log:      slog.Default(),
		sessions: sessions,
		searcher: searcher,
		present:  present,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.hub = newHub(s.log, func(delta int) {
		s.metrics.OperatorConnections.Add(context.Background(), int64(delta))
	})
	s.present.RegisterSurface(projection.SurfaceFunc(s.BroadcastProjection))
	return s
}

// Handler returns the full operator mux wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.ingest != nil {
		mux.HandleFunc("GET /ingest", s.handleIngest)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}
	return observe.Middleware(s.metrics)(mux)
}

// BroadcastDetection fans a detection event out to all consoles.
func (s *Server) BroadcastDetection(ev detect.DetectionEvent) {
	s.hub.broadcast(Event{Type: EventDetection, Payload: detectionToWire(ev)})
}

// BroadcastSessionState fans a capture state change out to all consoles.
func (s *Server) BroadcastSessionState(st capture.SessionState) {
	s.hub.broadcast(Event{Type: EventSessionState, Payload: sessionStateToWire(st)})
}

// BroadcastProjection fans a projection snapshot out to all consoles.
func (s *Server) BroadcastProjection(snap projection.Snapshot) {
	s.hub.broadcast(Event{Type: EventProjection, Payload: snap})
}

// handleWS upgrades the connection, sends the current session and projection
// state, then dispatches commands until the console disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	c := s.hub.add(conn)
	defer s.hub.remove(c)
	defer conn.CloseNow()
	s.log.Info("operator connected", "remote", r.RemoteAddr)

	// Late joiners start from the live state, same as everyone else.
	s.hub.sendTo(c, Event{Type: EventSessionState, Payload: sessionStateToWire(s.sessions.State())})
	s.hub.sendTo(c, Event{Type: EventProjection, Payload: s.present.Snapshot()})

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			s.log.Info("operator disconnected", "remote", r.RemoteAddr)
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.sendError(c, fmt.Sprintf("malformed command: %v", err))
			continue
		}
		if err := s.dispatch(r.Context(), c, cmd); err != nil {
			s.log.Warn("command failed", "type", cmd.Type, "error", err)
			s.sendError(c, err.Error())
		}
	}
}

// dispatch executes one command. Errors are reported back to the issuing
// console only; state changes broadcast through the usual listeners.
func (s *Server) dispatch(ctx context.Context, c *client, cmd Command) error {
	switch cmd.Type {
	case CmdStartListening:
		if err := s.sessions.Start(s.baseCtx); err != nil {
			return fmt.Errorf("starting capture: %w", err)
		}
		return nil

	case CmdStopListening:
		s.sessions.Stop()
		return nil

	case CmdManualSearch:
		var p ManualSearchPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("manual_search payload: %w", err)
		}
		cands, err := s.searcher.Search(ctx, p.Query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		s.hub.sendTo(c, Event{Type: EventSearchResults, Payload: SearchResultsWire{
			Query:      p.Query,
			Candidates: candidatesToWire(cands),
		}})
		return nil

	case CmdSelectVerse:
		var p SelectVersePayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("select_verse payload: %w", err)
		}
		s.present.SelectContent(projection.VerseContent(p.Verse))
		return nil

	case CmdSelectContent:
		var p SelectContentPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("select_content payload: %w", err)
		}
		s.present.SelectContent(p.Content)
		return nil

	case CmdSetMode:
		var p SetModePayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("set_mode payload: %w", err)
		}
		mode, err := projection.ParseMode(p.Mode)
		if err != nil {
			return err
		}
		s.present.SetMode(mode)
		return nil

	case CmdSetOverlay, CmdToggleOverlay:
		var p OverlayPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("overlay payload: %w", err)
		}
		overlay, err := projection.ParseOverlay(p.Overlay)
		if err != nil {
			return err
		}
		if cmd.Type == CmdToggleOverlay {
			s.present.ToggleOverlay(overlay)
		} else {
			s.present.SetOverlay(overlay)
		}
		return nil

	case CmdNextSection:
		s.present.NextSection()
		return nil

	case CmdPrevSection:
		s.present.PrevSection()
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func (s *Server) sendError(c *client, msg string) {
	s.hub.sendTo(c, Event{Type: EventError, Payload: ErrorWire{Message: msg}})
}

// handleIngest receives binary Opus packets over a websocket and pushes the
// decoded PCM into the capture pipeline. One decoder per connection; packet
// ordering is the sender's responsibility.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("ingest accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	dec, err := opus.NewDecoder()
	if err != nil {
		s.log.Error("creating ingest decoder", "error", err)
		conn.Close(websocket.StatusInternalError, "decoder unavailable")
		return
	}
	s.log.Info("ingest stream connected", "remote", r.RemoteAddr)

	// Opus decodes at 48kHz; the converter brings each stream down to the
	// pipeline format. One converter per stream.
	var conv *audio.FormatConverter
	if s.ingestFmt != (audio.Format{}) {
		conv = &audio.FormatConverter{Target: s.ingestFmt}
	}

	for {
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			s.log.Info("ingest stream closed", "remote", r.RemoteAddr)
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		frame, err := dec.Decode(data)
		if err != nil {
			// One bad packet does not kill the stream.
			s.log.Warn("dropping undecodable ingest packet", "error", err)
			continue
		}
		if conv != nil {
			frame = conv.Convert(frame)
			if len(frame.Data) == 0 {
				continue
			}
		}
		s.ingest.Push(frame)
	}
}
