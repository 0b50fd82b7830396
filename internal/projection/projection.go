// Package projection holds the state shown on the output surface: what
// content is up, whether the operator is previewing or live, and which
// overlay covers the output.
//
// The central type is [Coordinator]. Every mutation produces a [Snapshot]
// pushed to all registered surfaces; in Preview mode the pushed snapshot is
// blanked so nothing reaches the audience until the operator goes live.
package projection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/versecast/versecast/internal/verse"
)

// Mode selects whether mutations reach the audience-facing output.
type Mode int

const (
	// ModeLive pushes content straight to the output surface.
	ModeLive Mode = iota

	// ModePreview keeps the output blank while the operator stages content.
	ModePreview
)

// String returns the human-readable name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModePreview:
		return "preview"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the mode as its string name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode from its string name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode converts a mode name to its [Mode] value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "live":
		return ModeLive, nil
	case "preview":
		return ModePreview, nil
	default:
		return 0, fmt.Errorf("projection: unknown mode %q", s)
	}
}

// Overlay covers the projected content. Black and Logo are mutually
// exclusive.
type Overlay int

const (
	// OverlayNone shows the content unobstructed.
	OverlayNone Overlay = iota

	// OverlayBlack blacks out the output.
	OverlayBlack

	// OverlayLogo replaces the output with the house logo.
	OverlayLogo
)

// String returns the human-readable name of the overlay.
func (o Overlay) String() string {
	switch o {
	case OverlayNone:
		return "none"
	case OverlayBlack:
		return "black"
	case OverlayLogo:
		return "logo"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the overlay as its string name.
func (o Overlay) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes an overlay from its string name.
func (o *Overlay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOverlay(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOverlay converts an overlay name to its [Overlay] value.
func ParseOverlay(s string) (Overlay, error) {
	switch s {
	case "none":
		return OverlayNone, nil
	case "black":
		return OverlayBlack, nil
	case "logo":
		return OverlayLogo, nil
	default:
		return 0, fmt.Errorf("projection: unknown overlay %q", s)
	}
}

// ContentKind tags the [Content] union.
type ContentKind int

const (
	// ContentNone is the empty output.
	ContentNone ContentKind = iota

	// ContentVerse shows a single Bible verse.
	ContentVerse

	// ContentSong shows song lyrics, one section at a time.
	ContentSong

	// ContentMedia shows a media item.
	ContentMedia
)

// String returns the human-readable name of the content kind.
func (k ContentKind) String() string {
	switch k {
	case ContentNone:
		return "none"
	case ContentVerse:
		return "verse"
	case ContentSong:
		return "song"
	case ContentMedia:
		return "media"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the content kind as its string name.
func (k ContentKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a content kind from its string name.
func (k *ContentKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*k = ContentNone
	case "verse":
		*k = ContentVerse
	case "song":
		*k = ContentSong
	case "media":
		*k = ContentMedia
	default:
		return fmt.Errorf("projection: unknown content kind %q", s)
	}
	return nil
}

// Song is a lyric sheet split into sections (verse 1, chorus, bridge).
type Song struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

// MediaItem references a displayable asset.
type MediaItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Content is the tagged union of everything projectable. Exactly the field
// matching Kind is set.
type Content struct {
	Kind  ContentKind  `json:"kind"`
	Verse *verse.Verse `json:"verse,omitempty"`
	Song  *Song        `json:"song,omitempty"`
	Media *MediaItem   `json:"media,omitempty"`
}

// VerseContent wraps a verse for projection.
func VerseContent(v verse.Verse) Content {
	return Content{Kind: ContentVerse, Verse: &v}
}

// SongContent wraps a song for projection.
func SongContent(s Song) Content {
	return Content{Kind: ContentSong, Song: &s}
}

// MediaContent wraps a media item for projection.
func MediaContent(m MediaItem) Content {
	return Content{Kind: ContentMedia, Media: &m}
}

// Snapshot is the full projection state pushed to surfaces on every
// mutation.
type Snapshot struct {
	Content Content `json:"content"`
	Mode    Mode    `json:"mode"`
	Overlay Overlay `json:"overlay"`
	Cursor  int     `json:"cursor"`
}

// Surface receives projection snapshots. Implementations must not call back
// into the coordinator from Apply.
type Surface interface {
	Apply(Snapshot)
}

// SurfaceFunc adapts a function to the [Surface] interface.
type SurfaceFunc func(Snapshot)

// Apply implements [Surface].
func (f SurfaceFunc) Apply(s Snapshot) { f(s) }

// Coordinator owns the projection state. All methods are safe for concurrent
// use; surfaces are notified outside the lock.
type Coordinator struct {
	log *slog.Logger

	mu       sync.Mutex
	content  Content
	mode     Mode
	overlay  Overlay
	cursor   int
	surfaces []Surface
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithSurface registers a surface at construction time.
func WithSurface(s Surface) Option {
	return func(c *Coordinator) { c.surfaces = append(c.surfaces, s) }
}

// NewCoordinator creates a Coordinator in Live mode with no content and no
// overlay.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterSurface adds a surface. It immediately receives the current
// snapshot so late joiners render the same output.
func (c *Coordinator) RegisterSurface(s Surface) {
	c.mu.Lock()
	c.surfaces = append(c.surfaces, s)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	s.Apply(snap)
}

// SetMode switches between Live and Preview.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.log.Info("projection mode changed", "mode", m)
	c.pushLocked()
}

// SetOverlay sets the overlay unconditionally.
func (c *Coordinator) SetOverlay(o Overlay) {
	c.mu.Lock()
	c.overlay = o
	c.log.Info("projection overlay changed", "overlay", o)
	c.pushLocked()
}

// ToggleOverlay toggles o: the active overlay kind turns off, any other kind
// is replaced. Black and Logo can never be active at the same time.
func (c *Coordinator) ToggleOverlay(o Overlay) {
	c.mu.Lock()
	if c.overlay == o {
		c.overlay = OverlayNone
	} else {
		c.overlay = o
	}
	c.log.Info("projection overlay toggled", "overlay", c.overlay)
	c.pushLocked()
}

// SelectContent replaces the projected content unconditionally and resets
// the section cursor.
func (c *Coordinator) SelectContent(content Content) {
	c.mu.Lock()
	c.content = content
	c.cursor = 0
	c.log.Info("projection content selected", "kind", content.Kind)
	c.pushLocked()
}

// ShowVerse is shorthand for selecting a single verse.
func (c *Coordinator) ShowVerse(v verse.Verse) {
	c.SelectContent(VerseContent(v))
}

// NextSection advances the song section cursor. Clamped at the last section;
// a no-op for non-song content.
func (c *Coordinator) NextSection() {
	c.mu.Lock()
	if c.content.Kind != ContentSong || c.content.Song == nil {
		c.mu.Unlock()
		return
	}
	if c.cursor < len(c.content.Song.Sections)-1 {
		c.cursor++
	}
	c.pushLocked()
}

// PrevSection moves the song section cursor back. Clamped at zero; a no-op
// for non-song content.
func (c *Coordinator) PrevSection() {
	c.mu.Lock()
	if c.content.Kind != ContentSong || c.content.Song == nil {
		c.mu.Unlock()
		return
	}
	if c.cursor > 0 {
		c.cursor--
	}
	c.pushLocked()
}

// Snapshot returns the current state as pushed to surfaces, including
// preview blanking.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked builds the outward-facing snapshot. In Preview mode both
// content and overlay are blanked so nothing staged reaches the audience.
func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Content: c.content,
		Mode:    c.mode,
		Overlay: c.overlay,
		Cursor:  c.cursor,
	}
	if c.mode == ModePreview {
		snap.Content = Content{Kind: ContentNone}
		snap.Overlay = OverlayNone
		snap.Cursor = 0
	}
	return snap
}

// pushLocked snapshots the state, releases the lock, and notifies surfaces.
// Callers must hold c.mu; it is unlocked on return.
func (c *Coordinator) pushLocked() {
	snap := c.snapshotLocked()
	surfaces := make([]Surface, len(c.surfaces))
	copy(surfaces, c.surfaces)
	c.mu.Unlock()

	for _, s := range surfaces {
		s.Apply(snap)
	}
}
