package operator

import (
	"encoding/json"
	"time"

	"github.com/versecast/versecast/internal/capture"
	"github.com/versecast/versecast/internal/detect"
	"github.com/versecast/versecast/internal/match"
	"github.com/versecast/versecast/internal/projection"
	"github.com/versecast/versecast/internal/verse"
)

// Command is one operator instruction received over the websocket. Payload
// layout depends on Type; commands without parameters omit it.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command types accepted on /ws.
const (
	CmdStartListening = "start_listening"
	CmdStopListening  = "stop_listening"
	CmdManualSearch   = "manual_search"
	CmdSelectVerse    = "select_verse"
	CmdSelectContent  = "select_content"
	CmdSetMode        = "set_mode"
	CmdSetOverlay     = "set_overlay"
	CmdToggleOverlay  = "toggle_overlay"
	CmdNextSection    = "next_section"
	CmdPrevSection    = "prev_section"
)

// Event is one server-to-operator message. Detection and session state
// events go to every connected operator; search results and errors go only
// to the client whose command produced them.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event types sent on /ws.
const (
	EventDetection     = "detection"
	EventSessionState  = "session_state"
	EventProjection    = "projection"
	EventSearchResults = "search_results"
	EventError         = "error"
)

// ManualSearchPayload carries the free-form query of a manual_search command.
type ManualSearchPayload struct {
	Query string `json:"query"`
}

// SelectVersePayload carries the verse of a select_verse command, usually one
// of the candidates from an earlier detection event.
type SelectVersePayload struct {
	Verse verse.Verse `json:"verse"`
}

// SelectContentPayload carries the content of a select_content command.
type SelectContentPayload struct {
	Content projection.Content `json:"content"`
}

// SetModePayload carries the mode of a set_mode command.
type SetModePayload struct {
	Mode string `json:"mode"`
}

// OverlayPayload carries the overlay of a set_overlay or toggle_overlay
// command.
type OverlayPayload struct {
	Overlay string `json:"overlay"`
}

// CandidateWire is the wire form of a ranked verse candidate.
type CandidateWire struct {
	Verse      verse.Verse `json:"verse"`
	Confidence float64     `json:"confidence"`
	Strategy   string      `json:"strategy"`
}

// DetectionWire is the wire form of a detection event.
type DetectionWire struct {
	Candidates []CandidateWire `json:"candidates"`
	Text       string          `json:"text"`
	SessionID  string          `json:"session_id"`
	DetectedAt time.Time       `json:"detected_at"`
}

// SessionStateWire is the wire form of a capture session snapshot.
type SessionStateWire struct {
	Active            bool      `json:"active"`
	SessionID         string    `json:"session_id,omitempty"`
	Strategy          string    `json:"strategy,omitempty"`
	FallbackAttempted bool      `json:"fallback_attempted"`
	StartedAt         time.Time `json:"started_at,omitzero"`
}

// SearchResultsWire is the wire form of a manual search response.
type SearchResultsWire struct {
	Query      string          `json:"query"`
	Candidates []CandidateWire `json:"candidates"`
}

// ErrorWire is the wire form of an error event.
type ErrorWire struct {
	Message string `json:"message"`
}

func candidatesToWire(cands []match.Candidate) []CandidateWire {
	out := make([]CandidateWire, len(cands))
	for i, c := range cands {
		out[i] = CandidateWire{
			Verse:      c.Verse,
			Confidence: c.Confidence,
			Strategy:   string(c.Strategy),
		}
	}
	return out
}

func detectionToWire(ev detect.DetectionEvent) DetectionWire {
	return DetectionWire{
		Candidates: candidatesToWire(ev.Candidates),
		Text:       ev.Fragment.Text,
		SessionID:  ev.Fragment.SessionID,
		DetectedAt: ev.DetectedAt,
	}
}

func sessionStateToWire(st capture.SessionState) SessionStateWire {
	return SessionStateWire{
		Active:            st.Active,
		SessionID:         st.SessionID,
		Strategy:          string(st.Strategy),
		FallbackAttempted: st.FallbackAttempted,
		StartedAt:         st.StartedAt,
	}
}
