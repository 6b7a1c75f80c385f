package core

import "fmt"

// Error codes returned to clients. These are part of the wire contract
// and must stay stable.
const (
	CodeInvalidSyntax    = "INVALID_PROJECTION_SYNTAX"
	CodeMissingField     = "MISSING_FIELD"
	CodeFieldNotAllowed  = "FIELD_NOT_ALLOWED"
	CodeMaxDepthExceeded = "MAX_DEPTH_EXCEEDED"
	CodeCycleDetected    = "CYCLE_DETECTED"
)

// ProjectionError is implemented by every error in the projection
// taxonomy. Backend errors never implement it and pass through the
// engine untouched.
type ProjectionError interface {
	error
	// Code returns the stable error code.
	Code() string
	// Path returns the dotted field path the error relates to.
	// Empty for syntax errors, which carry a character offset instead.
	Path() string
}

// SyntaxError reports a malformed directive.
// Position is the 0-based offset into the original (pre-trim) input.
type SyntaxError struct {
	Input    string
	Position int
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid projection syntax at position %d: %s. Input: %s", e.Position, e.Reason, e.Input)
}

func (e *SyntaxError) Code() string { return CodeInvalidSyntax }
func (e *SyntaxError) Path() string { return "" }

// MissingFieldError reports a requested field absent from the document.
type MissingFieldError struct {
	FieldPath string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("requested field does not exist in response: %s", e.FieldPath)
}

func (e *MissingFieldError) Code() string { return CodeMissingField }
func (e *MissingFieldError) Path() string { return e.FieldPath }

// FieldNotAllowedError reports a requested field absent from the
// endpoint's allow-list.
type FieldNotAllowedError struct {
	FieldPath string
}

func (e *FieldNotAllowedError) Error() string {
	return fmt.Sprintf("field is not allowed for projection: %s", e.FieldPath)
}

func (e *FieldNotAllowedError) Code() string { return CodeFieldNotAllowed }
func (e *FieldNotAllowedError) Path() string { return e.FieldPath }

// DepthExceededError reports traversal beyond the configured maximum.
type DepthExceededError struct {
	FieldPath string
	MaxDepth  int
	Depth     int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("projection depth %d exceeds maximum allowed depth of %d at path: %s", e.Depth, e.MaxDepth, e.FieldPath)
}

func (e *DepthExceededError) Code() string { return CodeMaxDepthExceeded }
func (e *DepthExceededError) Path() string { return e.FieldPath }

// CycleDetectedError reports revisiting an exact path during one traversal.
type CycleDetectedError struct {
	FieldPath string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cyclic reference detected at path: %s", e.FieldPath)
}

func (e *CycleDetectedError) Code() string { return CodeCycleDetected }
func (e *CycleDetectedError) Path() string { return e.FieldPath }
