package checker

import (
	"sync"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// Document is an editable text whose version increases on every change.
// Annotations are attached to the version they were computed for.
type Document struct {
	mu          sync.RWMutex
	text        string
	version     uint64
	annotations []overlay.Annotation
	annVersion  uint64
	annotated   bool
}

// NewDocument creates a document at version 1
func NewDocument(text string) *Document {
	return &Document{text: text, version: 1}
}

// SetText replaces the text and returns the new version. Setting identical
// text keeps the current version and annotations.
func (d *Document) SetText(text string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text == d.text {
		return d.version
	}
	d.text = text
	d.version++
	d.annotations = nil
	d.annotated = false
	return d.version
}

// Snapshot returns the text and its version as one consistent pair
func (d *Document) Snapshot() (string, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text, d.version
}

// Annotations returns the annotations attached to the current version
func (d *Document) Annotations() ([]overlay.Annotation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.annotated || d.annVersion != d.version {
		return nil, false
	}
	return append([]overlay.Annotation(nil), d.annotations...), true
}

// attach stores annotations computed for version. It reports false when the
// document has moved on.
func (d *Document) attach(version uint64, annotations []overlay.Annotation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if version != d.version {
		return false
	}
	d.annotations = append([]overlay.Annotation(nil), annotations...)
	d.annVersion = version
	d.annotated = true
	return true
}

// current returns text, version and matching annotations under one lock
func (d *Document) current() (string, uint64, []overlay.Annotation) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.annotated || d.annVersion != d.version {
		return d.text, d.version, nil
	}
	return d.text, d.version, d.annotations
}
