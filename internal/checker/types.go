package checker

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// ErrStale is returned when the document changed while a check was running
var ErrStale = errors.New("checker: document changed during check")

// GrammarClient submits text to the grammar service
type GrammarClient interface {
	CheckGrammar(ctx context.Context, token, text string) ([]overlay.Annotation, error)
}

// Sessions provides the bearer token and forgets it when rejected
type Sessions interface {
	Token(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// ResultCache stores annotations by text
type ResultCache interface {
	Get(ctx context.Context, text string) ([]overlay.Annotation, bool)
	Store(ctx context.Context, text string, annotations []overlay.Annotation) error
}

// HistoryRecorder persists completed checks
type HistoryRecorder interface {
	Insert(ctx context.Context, rec *history.Record) error
}

// Publisher receives notifications for live preview clients
type Publisher interface {
	PublishCheck(ev CheckEvent)
	PublishSession(loggedIn bool, reason string)
}

// CheckEvent describes a completed check
type CheckEvent struct {
	Version    uint64            `json:"version"`
	Segments   []overlay.Segment `json:"segments"`
	Skipped    []overlay.Skip    `json:"skipped,omitempty"`
	Highlights int               `json:"highlights"`
	Cached     bool              `json:"cached"`
	Duration   time.Duration     `json:"duration"`
}

// Report is the outcome of one check
type Report struct {
	Version     uint64               `json:"version"`
	Annotations []overlay.Annotation `json:"annotations"`
	Segments    []overlay.Segment    `json:"segments"`
	Skipped     []overlay.Skip       `json:"skipped,omitempty"`
	Cached      bool                 `json:"cached"`
	Duration    time.Duration        `json:"duration"`
}

// Result returns the overlay part of the report
func (r *Report) Result() overlay.Result {
	return overlay.Result{Segments: r.Segments, Skipped: r.Skipped}
}
