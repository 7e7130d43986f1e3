// Package render serializes overlay segments for a presentation layer.
package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"golang.org/x/net/html"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// Renderer writes segments in a concrete output form
type Renderer interface {
	Render(w io.Writer, segments []overlay.Segment) error
}

// Options configures the built-in renderers
type Options struct {
	HighlightClass string
	MarkerOpen     string
	MarkerClose    string
	Placeholder    string
	Profile        termenv.Profile
}

// New returns the renderer registered under format
func New(format string, opts Options) (Renderer, error) {
	switch format {
	case "html":
		return &HTMLRenderer{Class: opts.HighlightClass, Placeholder: opts.Placeholder}, nil
	case "terminal":
		return &TerminalRenderer{Profile: opts.Profile, Placeholder: opts.Placeholder}, nil
	case "markers":
		return &MarkerRenderer{Open: opts.MarkerOpen, Close: opts.MarkerClose, Placeholder: opts.Placeholder}, nil
	default:
		return nil, fmt.Errorf("unknown render format: %s", format)
	}
}

// String renders segments into a string
func String(r Renderer, segments []overlay.Segment) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, segments); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HTMLRenderer escapes all text and wraps highlights in a span
type HTMLRenderer struct {
	Class       string
	Placeholder string
}

// Render implements Renderer
func (h *HTMLRenderer) Render(w io.Writer, segments []overlay.Segment) error {
	if len(segments) == 0 {
		_, err := io.WriteString(w, html.EscapeString(h.Placeholder))
		return err
	}

	for _, s := range segments {
		text := html.EscapeString(s.Text)
		var err error
		if s.Kind == overlay.Highlighted {
			_, err = fmt.Fprintf(w, `<span class="%s">%s</span>`, html.EscapeString(h.Class), text)
		} else {
			_, err = io.WriteString(w, text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TerminalRenderer styles highlights with ANSI sequences
type TerminalRenderer struct {
	Profile     termenv.Profile
	Placeholder string
}

// Render implements Renderer
func (t *TerminalRenderer) Render(w io.Writer, segments []overlay.Segment) error {
	if len(segments) == 0 {
		_, err := io.WriteString(w, t.Profile.String(t.Placeholder).Faint().String())
		return err
	}

	for _, s := range segments {
		out := s.Text
		if s.Kind == overlay.Highlighted {
			out = t.Profile.String(s.Text).
				Background(t.Profile.Color("#fecaca")).
				Foreground(t.Profile.Color("#991b1b")).
				Underline().
				String()
		}
		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	return nil
}

// MarkerRenderer wraps highlights in plain-text markers
type MarkerRenderer struct {
	Open        string
	Close       string
	Placeholder string
}

// Render implements Renderer
func (m *MarkerRenderer) Render(w io.Writer, segments []overlay.Segment) error {
	if len(segments) == 0 {
		_, err := io.WriteString(w, m.Placeholder)
		return err
	}

	for _, s := range segments {
		out := s.Text
		if s.Kind == overlay.Highlighted {
			out = m.Open + s.Text + m.Close
		}
		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	return nil
}
