// Package langerr defines the structured diagnostic type shared by the
// parser and compiler, and the host error callback they report through (spec.md §6 "Error callback", §7 "Error handling design").
//
// The core never writes to a process stream itself — every error surfaces
// through a single Callback so the embedding host decides how (or whether)
// to display it.
package langerr

import "fmt"

// Stage identifies which pipeline phase raised a Diagnostic.
type Stage int

const (
	Lexical Stage = iota
	Syntactic
	Semantic
	Runtime
	EventStage
)

func (s Stage) String() string {
	switch s {
	case Lexical:
		return "lexical"
	case Syntactic:
		return "syntactic"
	case Semantic:
		return "semantic"
	case Runtime:
		return "runtime"
	case EventStage:
		return "event"
	default:
		return "unknown"
	}
}

// Diagnostic is one user-visible error: where it happened, what stage
// produced it, and a human-readable message.
type Diagnostic struct {
	Stage   Stage
	Line    int
	Column  int
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s error at %d:%d: %s", d.Stage, d.Line, d.Column, d.Message)
}

// Callback is the error surface for parse and compile diagnostics
// (spec.md §6). The parser and compiler invoke it once per diagnostic; it
// never stops execution itself — callers decide whether to treat a
// non-empty diagnostic list as fatal. The VM does not take a Callback: it
// returns runtime errors from Run as error values.
type Callback func(d *Diagnostic)

// Collector accumulates diagnostics in order and optionally forwards each
// one to a Callback as it arrives, mirroring the teacher's accumulated
// `errors []string` pattern but with structured entries.
type Collector struct {
	items []*Diagnostic
	notify Callback
}

// NewCollector creates a Collector. notify may be nil, in which case
// diagnostics are only accumulated, never forwarded.
func NewCollector(notify Callback) *Collector {
	return &Collector{notify: notify}
}

// Add records a diagnostic and forwards it to the callback, if any.
func (c *Collector) Add(stage Stage, line, column int, format string, args ...any) {
	d := &Diagnostic{Stage: stage, Line: line, Column: column, Message: fmt.Sprintf(format, args...)}
	c.items = append(c.items, d)
	if c.notify != nil {
		c.notify(d)
	}
}

// Items returns all diagnostics recorded so far, in order.
func (c *Collector) Items() []*Diagnostic { return c.items }

// HasErrors reports whether any diagnostic has been recorded. A non-zero
// count suppresses compilation (spec.md §4.2 "Error policy").
func (c *Collector) HasErrors() bool { return len(c.items) > 0 }
