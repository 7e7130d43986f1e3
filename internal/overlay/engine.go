// Package overlay locates grammar annotations in a text and splits the text
// into plain and highlighted segments.
//
// All offsets are resolved against the original text. Highlighting never
// re-measures positions against already transformed output, so earlier
// highlights cannot shift later ones.
package overlay

import (
	"sort"
	"strings"
)

// Engine computes overlays. The zero value is not usable; use NewEngine or
// Default.
type Engine struct {
	tolerance int
	unit      Unit
}

// Option configures an Engine
type Option func(*Engine)

// WithTolerance sets the backward search window, in position units
func WithTolerance(n int) Option {
	return func(e *Engine) { e.tolerance = n }
}

// WithUnit sets the unit in which annotation positions are measured
func WithUnit(u Unit) Option {
	return func(e *Engine) { e.unit = u }
}

// NewEngine creates an engine. The default is a tolerance of
// DefaultTolerance characters measured in runes.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		tolerance: DefaultTolerance,
		unit:      UnitRune,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.tolerance < 0 {
		return nil, ErrInvalidTolerance
	}
	unit, err := ParseUnit(string(e.unit))
	if err != nil {
		return nil, err
	}
	e.unit = unit

	return e, nil
}

var defaultEngine = &Engine{tolerance: DefaultTolerance, unit: UnitRune}

// Default returns the engine with default settings
func Default() *Engine {
	return defaultEngine
}

// Overlay runs the default engine and returns only the segments
func Overlay(text string, annotations []Annotation) []Segment {
	return defaultEngine.Apply(text, annotations).Segments
}

// Tolerance returns the configured backward search window
func (e *Engine) Tolerance() int { return e.tolerance }

// Unit returns the configured position unit
func (e *Engine) Unit() Unit { return e.unit }

// Apply overlays annotations onto text. It never fails: annotations that
// cannot be placed are reported in Result.Skipped.
func (e *Engine) Apply(text string, annotations []Annotation) Result {
	if text == "" {
		res := Result{Segments: []Segment{}}
		for _, a := range annotations {
			reason := SkipUnlocatable
			if a.Word == "" {
				reason = SkipEmptyWord
			}
			res.Skipped = append(res.Skipped, skipFor(a, reason))
		}
		return res
	}
	if len(annotations) == 0 {
		return Result{Segments: []Segment{{Kind: Plain, Text: text}}}
	}

	sorted := make([]Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	var (
		res    Result
		segs   = make([]Segment, 0, 2*len(sorted)+1)
		cursor int
	)

	for _, a := range sorted {
		if a.Word == "" {
			res.Skipped = append(res.Skipped, skipFor(a, SkipEmptyWord))
			continue
		}

		// clamp before subtracting so very negative positions cannot wrap
		from := 0
		if a.Position > e.tolerance {
			from = a.Position - e.tolerance
		}
		start := byteOffset(text, from, e.unit)
		rel := strings.Index(text[start:], a.Word)
		if rel < 0 {
			res.Skipped = append(res.Skipped, skipFor(a, SkipUnlocatable))
			continue
		}

		i := start + rel
		if i < cursor {
			res.Skipped = append(res.Skipped, skipFor(a, SkipOverlapping))
			continue
		}

		if i > cursor {
			segs = append(segs, Segment{Kind: Plain, Text: text[cursor:i], Offset: cursor})
		}
		end := i + len(a.Word)
		segs = append(segs, Segment{Kind: Highlighted, Text: text[i:end], Offset: i})
		cursor = end
	}

	if cursor < len(text) {
		segs = append(segs, Segment{Kind: Plain, Text: text[cursor:], Offset: cursor})
	}

	res.Segments = Merge(segs)
	return res
}

// Merge drops empty segments and joins adjacent plain runs. Adjacent
// highlighted segments stay separate: each one belongs to its own
// annotation.
func Merge(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && s.Kind == Plain && out[n-1].Kind == Plain {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}

func skipFor(a Annotation, reason SkipReason) Skip {
	return Skip{Annotation: a, Reason: reason}
}
