package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry of a runtime error's call-stack trace.
type StackFrame struct {
	Name       string // function/handler name, or "main" for the top-level chunk
	SourceLine int    // source line active in this frame when the error occurred
}

// RuntimeError is returned by Run/Call when bytecode execution fails —
// type mismatch, division by zero, index out of range, stack/frame
// overflow, or an unknown global/property (spec.md §7 "Runtime").
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s", frame.Name))
			if frame.SourceLine > 0 {
				b.WriteString(fmt.Sprintf(" [line %d]", frame.SourceLine))
			}
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
