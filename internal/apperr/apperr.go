// Package apperr defines the domain error kinds surfaced to callers.
// Stores return sentinel errors; services translate them into these kinds,
// and the request boundary maps each kind to a stable response.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a domain error.
type Kind string

const (
	KindInternal        Kind = "internal"
	KindNotFound        Kind = "not_found"
	KindDuplicateEmail  Kind = "duplicate_email"
	KindZoneTaken       Kind = "zone_taken"
	KindUnauthorized    Kind = "unauthorized"
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidTarget   Kind = "invalid_target"
	KindValidation      Kind = "validation"
)

// Error is a domain error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // per-field messages for KindValidation
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + e.Fields[k]
		}
		return e.Message + " (" + strings.Join(parts, "; ") + ")"
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing entity, e.g. NotFound("issue", id).
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// DuplicateEmail reports an email that is already registered.
func DuplicateEmail(email string) *Error {
	return &Error{Kind: KindDuplicateEmail, Message: fmt.Sprintf("email already registered: %s", email)}
}

// ZoneTaken reports a zone that already has a regional official.
func ZoneTaken(zone string) *Error {
	return &Error{Kind: KindZoneTaken, Message: fmt.Sprintf("zone %s already has a regional official", zone)}
}

// Unauthorized reports an authenticated actor acting outside their scope.
func Unauthorized(format string, a ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, a...)}
}

// Unauthenticated reports a request without valid credentials.
func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// InvalidTarget reports a reassignment target that is not a regional official.
func InvalidTarget(format string, a ...any) *Error {
	return &Error{Kind: KindInvalidTarget, Message: fmt.Sprintf(format, a...)}
}

// Internal wraps an unexpected failure. Its message is never shown to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is a domain error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Validator collects per-field validation failures.
type Validator struct {
	fields map[string]string
}

// Require records a failure when value is blank.
func (v *Validator) Require(field, value, msg string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, msg)
	}
}

// Check records msg for field when ok is false.
func (v *Validator) Check(ok bool, field, msg string) {
	if !ok {
		v.Add(field, msg)
	}
}

// Add records a failure for field. The first message per field wins.
func (v *Validator) Add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

// Err returns a KindValidation error with every recorded field, or nil.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: v.fields}
}
