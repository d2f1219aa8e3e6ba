package rag

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrExtraction = errors.New("extraction error")
	ErrFetch      = errors.New("fetch error")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream error")
)

// Error carries a failure kind, the operation that failed and its cause.
type Error struct {
	Kind       error
	Op         string
	Message    string
	StatusCode int // remote HTTP status for fetch errors, 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Validation reports malformed caller input.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Extraction reports a source that parsed but yielded unusable text.
func Extraction(op, message string, err error) error {
	return &Error{Kind: ErrExtraction, Op: op, Message: message, Err: err}
}

// Fetch reports an unreachable URL or a non-success response. statusCode is 0
// when no response was received.
func Fetch(op string, statusCode int, err error) error {
	msg := "website not found or unreachable"
	if statusCode != 0 {
		msg = fmt.Sprintf("website returned status %d", statusCode)
	}
	return &Error{Kind: ErrFetch, Op: op, Message: msg, StatusCode: statusCode, Err: err}
}

// NotFound reports a missing collection.
func NotFound(op, collection string) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: fmt.Sprintf("collection %q not found", collection)}
}

// Upstream wraps a failure of the embedding provider, generative provider or
// vector store. Errors that already carry a kind are returned unchanged.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Kind: ErrUpstream, Op: op, Err: err}
}

// KindOf returns the sentinel kind of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrExtraction, ErrFetch, ErrNotFound, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
