package overlay

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTolerance is the backward search distance applied to reported positions
const DefaultTolerance = 5

var (
	// ErrInvalidTolerance is returned when a negative tolerance is configured
	ErrInvalidTolerance = errors.New("overlay: tolerance must not be negative")
	// ErrInvalidUnit is returned for an unknown position unit
	ErrInvalidUnit = errors.New("overlay: unknown position unit")
)

// Annotation is a flagged word reported by the grammar service
type Annotation struct {
	Word     string `json:"word"`
	Position int    `json:"position"`
}

// Kind classifies a rendered segment
type Kind int

const (
	// Plain is unstyled text
	Plain Kind = iota
	// Highlighted wraps a located annotation
	Highlighted
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Highlighted:
		return "highlighted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "plain":
		*k = Plain
	case "highlighted":
		*k = Highlighted
	default:
		return fmt.Errorf("overlay: unknown segment kind %q", string(b))
	}
	return nil
}

// Segment is a contiguous run of the original text
type Segment struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Offset int    `json:"offset"` // byte offset into the original text
}

// End returns the byte offset just past the segment
func (s Segment) End() int {
	return s.Offset + len(s.Text)
}

// SkipReason explains why an annotation produced no highlight
type SkipReason string

const (
	// SkipUnlocatable means the word does not occur at or after the search start
	SkipUnlocatable SkipReason = "unlocatable"
	// SkipOverlapping means the match lies inside already emitted text
	SkipOverlapping SkipReason = "overlapping"
	// SkipEmptyWord means the annotation carried no word
	SkipEmptyWord SkipReason = "empty_word"
)

// Skip records an annotation that was dropped
type Skip struct {
	Annotation Annotation `json:"annotation"`
	Reason     SkipReason `json:"reason"`
}

// Result is the outcome of one overlay computation
type Result struct {
	Segments []Segment `json:"segments"`
	Skipped  []Skip    `json:"skipped,omitempty"`
}

// Highlights returns the number of highlighted segments
func (r Result) Highlights() int {
	n := 0
	for _, s := range r.Segments {
		if s.Kind == Highlighted {
			n++
		}
	}
	return n
}

// String concatenates all segment texts
func (r Result) String() string {
	return Join(r.Segments)
}

// Join concatenates the text of the given segments in order
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
