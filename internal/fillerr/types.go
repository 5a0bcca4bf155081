package fillerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the single error type produced by the placement engine. Callers
// discriminate on Type to pick an exit code or decide whether to continue.
type Error struct {
	Type    ErrorType `json:"type"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	Page    int       `json:"page"`
	Index   int       `json:"index"`
	Err     error     `json:"-"`
}

// ErrorType enumerates the failure categories of a filling run.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConversion: a page could not be rasterized.
	ErrorTypeConversion
	// ErrorTypeModel: the planning call failed or timed out.
	ErrorTypeModel
	// ErrorTypeParse: one candidate placement from the model was malformed.
	ErrorTypeParse
	// ErrorTypeNotFound: an edit referenced an index that does not exist.
	ErrorTypeNotFound
	// ErrorTypeWrite: the final commit failed.
	ErrorTypeWrite
	// ErrorTypeInvalidCommand: an edit command was malformed or carried invalid values.
	ErrorTypeInvalidCommand
	// ErrorTypeInvalidState: the session cannot accept the operation in its current state.
	ErrorTypeInvalidState
)

const noPosition = -1

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConversion:
		return "CONVERSION"
	case ErrorTypeModel:
		return "MODEL"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeWrite:
		return "WRITE"
	case ErrorTypeInvalidCommand:
		return "INVALID_COMMAND"
	case ErrorTypeInvalidState:
		return "INVALID_STATE"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether the run can continue after an error of this type.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeParse, ErrorTypeNotFound, ErrorTypeInvalidCommand, ErrorTypeInvalidState:
		return true
	default:
		return false
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Type.String())
	b.WriteString("]")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Page != noPosition {
		fmt.Fprintf(&b, " page %d", e.Page)
	}
	if e.Index != noPosition {
		fmt.Fprintf(&b, " index %d", e.Index)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable reports whether this error is absorbed rather than propagated.
func (e *Error) Recoverable() bool {
	return e.Type.IsRecoverable()
}

// New creates an Error without page or index information.
func New(errorType ErrorType, op, message string) *Error {
	return &Error{
		Type:    errorType,
		Op:      op,
		Message: message,
		Page:    noPosition,
		Index:   noPosition,
	}
}

// Wrap wraps err as an Error of the given type.
func Wrap(errorType ErrorType, op string, err error) *Error {
	e := New(errorType, op, "failed")
	e.Err = err
	return e
}

// WithPage adds page information to an existing Error
func (e *Error) WithPage(page int) *Error {
	e.Page = page
	return e
}

// WithIndex adds placement index information to an existing Error
func (e *Error) WithIndex(index int) *Error {
	e.Index = index
	return e
}

// Conversion reports a rasterization failure for page.
func Conversion(page int, err error) *Error {
	return Wrap(ErrorTypeConversion, "rasterize", err).WithPage(page)
}

// Model reports a failed or timed out planning call for page.
func Model(page int, err error) *Error {
	return Wrap(ErrorTypeModel, "plan", err).WithPage(page)
}

// Parse reports a malformed candidate at position candidate of the model response.
func Parse(page, candidate int, message string) *Error {
	return New(ErrorTypeParse, "parse", message).WithPage(page).WithIndex(candidate)
}

// NotFound reports an edit against a missing placement index.
func NotFound(op string, index int) *Error {
	return New(ErrorTypeNotFound, op, "no placement with this index").WithIndex(index)
}

// Write reports a commit failure.
func Write(message string, err error) *Error {
	e := New(ErrorTypeWrite, "commit", message)
	e.Err = err
	return e
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries an Error of the given type anywhere in its chain.
func Is(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// Collection gathers the absorbed per-candidate and per-page errors of a run.
type Collection struct {
	Errors []*Error `json:"errors"`
}

// Add appends err to the collection.
func (c *Collection) Add(err *Error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Count returns the number of collected errors.
func (c *Collection) Count() int {
	return len(c.Errors)
}

// CountType returns the number of collected errors of the given type.
func (c *Collection) CountType(errorType ErrorType) int {
	n := 0
	for _, err := range c.Errors {
		if err.Type == errorType {
			n++
		}
	}
	return n
}

// Summary returns a text summary of the collected errors
func (c *Collection) Summary() string {
	if len(c.Errors) == 0 {
		return "No errors"
	}
	counts := make(map[ErrorType]int)
	order := make([]ErrorType, 0)
	for _, err := range c.Errors {
		if counts[err.Type] == 0 {
			order = append(order, err.Type)
		}
		counts[err.Type]++
	}
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], strings.ToLower(t.String())))
	}
	return fmt.Sprintf("Found %d error(s): %s", len(c.Errors), strings.Join(parts, ", "))
}
