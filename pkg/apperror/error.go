package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so adapters can map it without knowing the operation.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidStateTransition
	KindProductNotAvailable
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case KindProductNotAvailable:
		return "PRODUCT_NOT_AVAILABLE"
	case KindValidation:
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus is the status an HTTP adapter should answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidStateTransition, KindProductNotAvailable:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by domain and application code for every expected rejection.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

// With returns a copy of e carrying an extra context field.
func (e *Error) With(key string, value any) *Error {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	cp := *e
	cp.Fields = fields
	return &cp
}

// LogAttrs flattens the error into slog-style key/value pairs.
func (e *Error) LogAttrs() []any {
	attrs := make([]any, 0, 4+2*len(e.Fields))
	attrs = append(attrs, "kind", e.Kind.String(), "op", e.Op)
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	return attrs
}

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

func InvalidStateTransition(op, format string, args ...any) *Error {
	return New(KindInvalidStateTransition, op, format, args...)
}

func ProductNotAvailable(op, format string, args ...any) *Error {
	return New(KindProductNotAvailable, op, format, args...)
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

// KindOf reports the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
