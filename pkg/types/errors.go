package types

import (
	"fmt"
	"strings"
)

// Error tag constants.
const (
	TagStackOverflowError = "StackOverflowError"
	TagBlockError         = "BlockError"
	TagSyntaxError        = "SyntaxError"
	TagBugError           = "BugError"
	TagCancelledError     = "CancelledError"
	TagNotFound           = "NotFound"
	TagConfigError        = "ConfigError"
)

// Frame is one entry of the call stack captured when a run halts.
type Frame struct {
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Source string `json:"source,omitempty"`
}

// EngineError is the error returned when a script run halts.
type EngineError struct {
	Message string   `json:"message"`
	Code    int64    `json:"code"`
	Tags    []string `json:"tags"`
	Line    int      `json:"line,omitempty"`
	Column  int      `json:"column,omitempty"`
	Trigger string   `json:"trigger,omitempty"`
	Stack   []Frame  `json:"stack,omitempty"` // most recent call first
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d, column %d (tags=[%s])", e.Message, e.Line, e.Column, strings.Join(e.Tags, ", "))
	}
	return fmt.Sprintf("%s (tags=[%s])", e.Message, strings.Join(e.Tags, ", "))
}

// HasTag returns true if the error has the specified tag.
func (e *EngineError) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// At returns e with its source position set.
func (e *EngineError) At(line, column int) *EngineError {
	e.Line, e.Column = line, column
	return e
}

// Fatal reports whether the error aborts a run immediately instead of going
// through the bug-check protocol.
func (e *EngineError) Fatal() bool {
	return !e.HasTag(TagBugError)
}

// Common error constructors.

// NewStackOverflowError creates a StackOverflowError for the given depth limit.
func NewStackOverflowError(limit int) *EngineError {
	return &EngineError{
		Message: fmt.Sprintf("Stack Overflow! (Recursion Limit: %d)", limit),
		Code:    1,
		Tags:    []string{TagStackOverflowError},
	}
}

// NewBlockError creates a BlockError for a malformed loop or function block.
func NewBlockError(msg string) *EngineError {
	return &EngineError{Message: msg, Code: 1, Tags: []string{TagBlockError}}
}

// NewSyntaxError creates a SyntaxError.
func NewSyntaxError(msg string) *EngineError {
	return &EngineError{Message: msg, Code: 2, Tags: []string{TagSyntaxError}}
}

// NewBugError creates a BugError from an unchecked bug message.
func NewBugError(msg string) *EngineError {
	return &EngineError{Message: msg, Code: 1, Tags: []string{TagBugError}}
}

// NewCancelledError creates a CancelledError for a run stopped by its context.
func NewCancelledError(cause error) *EngineError {
	msg := "run cancelled"
	if cause != nil {
		msg = "run cancelled: " + cause.Error()
	}
	return &EngineError{Message: msg, Code: 130, Tags: []string{TagCancelledError}}
}

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(msg string) *EngineError {
	return &EngineError{Message: msg, Code: 404, Tags: []string{TagNotFound}}
}

// NewConfigError creates a ConfigError.
func NewConfigError(msg string) *EngineError {
	return &EngineError{Message: msg, Code: 2, Tags: []string{TagConfigError}}
}
